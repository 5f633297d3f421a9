// Package postbuild rewrites the built server bundle after a successful
// production build, splicing the generated HTML into the bundle's
// placeholder so the server can render without the HTML file at runtime.
package postbuild

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/core"
)

// Patch replaces every occurrence of the placeholder token in the server
// bundle with the JSON-escaped content of the built HTML file.
//
// A failed build is a no-op: no partial patch is attempted. A bundle
// without the token is left byte-identical, which makes repeated runs
// idempotent — the first patch consumes the marker. Must run before any
// later build step that transforms the generated HTML.
func Patch(distDir string, res host.BuildResult) error {
	if res.Err != nil {
		slog.Debug("skipping html patch, build failed", "error", res.Err)
		return nil
	}

	bundlePath := core.ServerBundlePath(distDir)
	bundle, err := os.ReadFile(bundlePath)
	if err != nil {
		return fmt.Errorf("failed to read server bundle: %w", err)
	}

	token := []byte(core.HTMLToken)
	count := bytes.Count(bundle, token)
	if count == 0 {
		return nil
	}
	if count != 1 {
		// The template embeds the token once; more than one occurrence
		// means the application source also contains it. Replacement is
		// still global, but flag it.
		slog.Warn("placeholder token found more than once in server bundle", "count", count)
	}

	html, err := os.ReadFile(core.IndexHTMLPath(distDir))
	if err != nil {
		return fmt.Errorf("failed to read built html: %w", err)
	}

	patched := bytes.ReplaceAll(bundle, token, []byte(core.EscapeForJS(string(html))))
	if err := os.WriteFile(bundlePath, patched, 0o644); err != nil {
		return fmt.Errorf("failed to write patched server bundle: %w", err)
	}

	return nil
}
