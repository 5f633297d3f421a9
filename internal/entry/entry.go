// Package entry generates the server-side source files every build starts
// from: a server entry module wired to the project's settings and a
// re-export module bridging to the application's client entry.
package entry

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/skald-labs/skald/internal/config"
	"github.com/skald-labs/skald/internal/core"
)

var (
	//go:embed server-entry.js.tmpl
	serverEntrySource string
	serverEntryTmpl   = template.Must(template.New("server-entry").Parse(serverEntrySource))

	//go:embed client-exports.js.tmpl
	clientExportsSource string
	clientExportsTmpl   = template.Must(template.New("client-exports").Parse(clientExportsSource))
)

// Context carries the per-project values substituted into the templates.
// It is consumed once per generation pass.
type Context struct {
	RendererImport string
	UtilsImport    string
	Stream         bool
	MountID        string
	StaticMarkup   bool
	ForceInitial   bool
	BasePath       string
	Token          string
}

// FromProject builds the template context, resolving the project's entry
// modules to import paths relative to the generation directory.
func FromProject(p config.Project, dir string) (Context, error) {
	rendererImport, err := importPath(dir, p.AppEntry)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve app entry import: %w", err)
	}
	utilsImport, err := importPath(dir, p.UtilsEntry)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve utils entry import: %w", err)
	}

	mountID := p.MountID
	if mountID == "" {
		mountID = core.DefaultMountID
	}

	return Context{
		RendererImport: rendererImport,
		UtilsImport:    utilsImport,
		Stream:         p.SSR.Stream,
		MountID:        mountID,
		StaticMarkup:   p.SSR.StaticMarkup,
		ForceInitial:   p.SSR.ForceInitial,
		BasePath:       p.BasePath,
		Token:          core.HTMLToken,
	}, nil
}

// RenderServerEntry fills the server entry template.
func RenderServerEntry(ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := serverEntryTmpl.Execute(&buf, ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderClientExports fills the re-export template.
func RenderClientExports(ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := clientExportsTmpl.Execute(&buf, ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write generates both source files into dir. Idempotent for an identical
// context; file-system failures propagate and abort the generation pass.
func Write(dir string, ctx Context) error {
	if ctx.RendererImport == "" {
		return fmt.Errorf("missing renderer import")
	}
	if ctx.Token == "" {
		return fmt.Errorf("missing placeholder token")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	serverEntry, err := RenderServerEntry(ctx)
	if err != nil {
		return fmt.Errorf("failed to render server entry: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, core.ServerEntry), serverEntry, 0o644); err != nil {
		return err
	}

	clientExports, err := RenderClientExports(ctx)
	if err != nil {
		return fmt.Errorf("failed to render client exports: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, core.ClientExports), clientExports, 0o644)
}

// importPath resolves target to an import specifier usable from a module
// inside dir.
func importPath(dir, target string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, nil
}
