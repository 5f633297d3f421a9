package bundle

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/skald-labs/skald/internal/core"
)

// GenerateManifest scans the output directory after the client pass and
// records, per entry, the built script, its stylesheet and the chunks it
// references. Duplicate stylesheets are collapsed by content hash.
func GenerateManifest(distDir string, entryNames []string) (*core.Manifest, error) {
	files, err := os.ReadDir(distDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output dir: %w", err)
	}

	chunks := make(map[string]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if strings.HasPrefix(name, "chunk-") && strings.HasSuffix(name, ".js") {
			chunks[name] = "/" + core.DistDir + "/" + name
		}
	}

	entries := make(map[string]core.ManifestEntry)
	cssByHash := make(map[string]string)

	for _, entryName := range entryNames {
		var script, css string
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if !strings.HasPrefix(name, entryName+"-") && !strings.HasPrefix(name, entryName+".") {
				continue
			}
			if strings.HasSuffix(name, ".js") {
				script = "/" + core.DistDir + "/" + name
			} else if strings.HasSuffix(name, ".css") {
				css = "/" + core.DistDir + "/" + name
			}
		}

		if script == "" {
			continue
		}

		if css != "" {
			css = dedupeCSS(distDir, css, cssByHash)
		}

		entries[entryName] = core.ManifestEntry{
			Script: script,
			CSS:    css,
			Chunks: entryChunks(distDir, script, chunks),
		}
	}

	return &core.Manifest{Entries: entries, Chunks: chunks}, nil
}

// WriteManifest serializes the manifest into the output directory.
func WriteManifest(distDir string, man *core.Manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(distDir, "manifest.json"), data, 0o644)
}

// dedupeCSS drops a stylesheet whose content matches one already recorded
// and returns the surviving reference.
func dedupeCSS(distDir, cssRef string, cssByHash map[string]string) string {
	fullPath := filepath.Join(distDir, filepath.Base(cssRef))
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return cssRef
	}

	h := fnv.New64a()
	h.Write(content)
	key := fmt.Sprintf("%x", h.Sum64())

	if existing, ok := cssByHash[key]; ok {
		os.Remove(fullPath)
		return existing
	}
	cssByHash[key] = cssRef
	return cssRef
}

// entryChunks returns the chunk references an entry script actually loads,
// found by scanning the built script for chunk names.
func entryChunks(distDir, scriptRef string, allChunks map[string]string) []string {
	content, err := os.ReadFile(filepath.Join(distDir, filepath.Base(scriptRef)))
	if err != nil {
		return nil
	}

	text := string(content)
	var refs []string
	for name, ref := range allChunks {
		if strings.Contains(text, name) {
			refs = append(refs, ref)
		}
	}
	return refs
}
