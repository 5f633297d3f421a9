package core

import "encoding/json"

// ManifestEntry describes the built assets for one client entry point.
type ManifestEntry struct {
	Script string   `json:"script"`
	CSS    string   `json:"css,omitempty"`
	Chunks []string `json:"chunks,omitempty"`
}

// Manifest maps entry names to their built assets. It is written to the
// output directory after the client pass and read back by anything that
// needs to reference assets by stable name.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
	Chunks  map[string]string        `json:"chunks,omitempty"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Assets returns the script, stylesheet and chunk references for an entry,
// falling back to conventional /dist paths when the manifest has no entry.
func (m *Manifest) Assets(entryName string) (scriptSrc, cssHref string, chunks []string) {
	if m != nil && m.Entries[entryName].Script != "" {
		entry := m.Entries[entryName]
		return entry.Script, entry.CSS, entry.Chunks
	}
	return "/" + DistDir + "/" + entryName + ".js", "", nil
}
