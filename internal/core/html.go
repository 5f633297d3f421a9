package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Shell holds everything needed to compose the HTML document that wraps a
// client bundle: the mount point, asset references and optional serialized
// client state.
type Shell struct {
	MountID   string
	ScriptSrc string
	CSSHref   string
	Chunks    []string
	Head      string
	Body      string
	State     map[string]any
}

// RenderShell composes the full HTML document for a page. Body is injected
// into the mount element; State is embedded as a JSON script the client
// entry reads on boot (skipped entirely when the project forces a fresh
// client-side initialization).
func RenderShell(s Shell) (string, error) {
	if s.ScriptSrc == "" {
		return "", fmt.Errorf("missing script src")
	}

	mountID := s.MountID
	if mountID == "" {
		mountID = DefaultMountID
	}

	head := `<meta charset="UTF-8" /><meta name="viewport" content="width=device-width, initial-scale=1.0" />`
	if s.Head != "" {
		head += s.Head
	}
	if s.CSSHref != "" {
		head += fmt.Sprintf(`<link rel="stylesheet" href="%s" />`, s.CSSHref)
	}

	var stateScript string
	if s.State != nil {
		stateJSON, err := json.Marshal(s.State)
		if err != nil {
			return "", fmt.Errorf("failed to serialize client state: %w", err)
		}
		escaped := strings.ReplaceAll(string(stateJSON), "</", "<\\/")
		stateScript = fmt.Sprintf(`    <script id="__SKALD_STATE__" type="application/json">%s</script>`+"\n", escaped)
	}

	var chunkTags strings.Builder
	for _, chunk := range s.Chunks {
		fmt.Fprintf(&chunkTags, `    <script src="%s" type="module" defer></script>`+"\n", chunk)
	}

	html := fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    %s
  </head>
  <body>
    <div id="%s">%s</div>
%s%s    <script src="%s" type="module" defer></script>
  </body>
</html>
`, head, mountID, s.Body, stateScript, chunkTags.String(), s.ScriptSrc)

	return html, nil
}

// EscapeForJS returns the JSON string escaping of text without the
// surrounding quotes, suitable for splicing into a quoted JS literal.
// HTML escaping is off so markup stays readable in the patched output.
func EscapeForJS(text string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.Encode(text)
	quoted := bytes.TrimRight(buf.Bytes(), "\n")
	return string(quoted[1 : len(quoted)-1])
}
