// Package skald adds server-side rendering to an esbuild-based web
// application build. It plugs into a host build orchestrator through the
// contracts in package host: it registers a configuration schema, generates
// the server entry sources, transforms the bundler configuration for the
// client and server passes, renders pages on the dev server, and patches
// the production server bundle after a successful build.
package skald

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/bundle"
	"github.com/skald-labs/skald/internal/config"
	"github.com/skald-labs/skald/internal/core"
	"github.com/skald-labs/skald/internal/devserver"
	"github.com/skald-labs/skald/internal/entry"
	"github.com/skald-labs/skald/internal/postbuild"
	"github.com/skald-labs/skald/internal/render"
)

// Options are the SSR feature flags (see internal/config).
type Options = config.Options

// Project is the per-project configuration (see internal/config).
type Project = config.Project

// ErrHashRouting is returned by New when the project uses hash routing.
var ErrHashRouting = config.ErrHashRouting

// LoadProject reads skald.yaml (when present) layered with SKALD_*
// environment overrides.
func LoadProject(path string) (Project, error) {
	return config.Load(path)
}

// DefaultProject returns the conventional project settings.
func DefaultProject() Project {
	return config.Defaults()
}

// Plugin is the SSR plugin. One instance serves a whole build or dev
// session; the configuration it was created with never changes.
type Plugin struct {
	project config.Project
	engine  *render.Engine
	isDev   bool
	log     *slog.Logger
}

var (
	_ host.SchemaProvider     = (*Plugin)(nil)
	_ host.EntryGenerator     = (*Plugin)(nil)
	_ host.BundleTransformer  = (*Plugin)(nil)
	_ host.MiddlewareProvider = (*Plugin)(nil)
	_ host.BuildListener      = (*Plugin)(nil)
)

// New validates the project configuration and creates the plugin. Hash
// routing fails immediately: the server never sees fragment routes, so
// nothing could be rendered.
func New(project Project) (*Plugin, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return &Plugin{
		project: project,
		engine:  render.NewEngine(),
		isDev:   config.IsDev(),
		log:     slog.Default(),
	}, nil
}

// Close releases the render engine.
func (p *Plugin) Close() {
	p.engine.Close()
}

// Schema registers the four optional SSR flags with the host.
func (p *Plugin) Schema() host.Schema {
	return host.Schema{Fields: []host.SchemaField{
		{Name: "forceInitial", Kind: host.KindBool, Optional: true},
		{Name: "devServerRender", Kind: host.KindBool, Optional: true},
		{Name: "stream", Kind: host.KindBool, Optional: true},
		{Name: "staticMarkup", Kind: host.KindBool, Optional: true},
	}}
}

// GenerateEntries writes the server entry and client re-export modules
// into the working directory. Runs once per build, before any bundle pass.
func (p *Plugin) GenerateEntries() error {
	ctx, err := entry.FromProject(p.project, core.WorkDir)
	if err != nil {
		return err
	}
	return entry.Write(core.WorkDir, ctx)
}

// TransformBundle applies the pass-specific configuration pipeline.
func (p *Plugin) TransformBundle(cfg host.BundleConfig, pass host.Pass) host.BundleConfig {
	return bundle.ForPass(p.project, pass).Apply(cfg)
}

// DevMiddleware wraps the dev server's handler with per-request rendering.
// When dev-server rendering is not enabled the chain is left untouched.
func (p *Plugin) DevMiddleware(next http.Handler) http.Handler {
	if !p.project.SSR.DevServerRender {
		return next
	}
	return devserver.Middleware(devserver.Options{
		Renderer:          p.engine,
		BundlePath:        core.ServerBundlePath(core.DistDir),
		MountID:           p.project.MountID,
		EvictBeforeRender: p.isDev,
		Logger:            p.log,
	})(next)
}

// AfterBuild patches the built server bundle with the generated HTML. It
// must be registered before any listener that transforms dist HTML.
func (p *Plugin) AfterBuild(res host.BuildResult) error {
	return postbuild.Patch(core.DistDir, res)
}

// Engine exposes the render engine for callers that render outside the
// middleware (the dev command's rebuild hook invalidates through it).
func (p *Plugin) Engine() *render.Engine {
	return p.engine
}

// BaseBundleConfig is the starting configuration both passes derive from.
func (p *Plugin) BaseBundleConfig() host.BundleConfig {
	return host.BundleConfig{
		Entries:   []string{p.project.AppEntry},
		Output:    host.Output{Dir: core.DistDir, Format: host.FormatESModule},
		Splitting: true,
	}
}

// Build runs the full production pipeline standalone:
// files-generated → bundles-built(client, server) → html-written →
// html-patched → done.
func (p *Plugin) Build(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.GenerateEntries(); err != nil {
		return fmt.Errorf("failed to generate entry files: %w", err)
	}

	if err := os.MkdirAll(core.DistDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	base := p.BaseBundleConfig()

	clientCfg := p.TransformBundle(base, host.PassClient)
	if _, err := bundle.Run(clientCfg, host.PassClient); err != nil {
		patchErr := p.AfterBuild(host.BuildResult{Err: err})
		return errors.Join(err, patchErr)
	}

	serverCfg := p.TransformBundle(base, host.PassServer)
	if _, err := bundle.Run(serverCfg, host.PassServer); err != nil {
		patchErr := p.AfterBuild(host.BuildResult{Err: err})
		return errors.Join(err, patchErr)
	}

	if err := p.writeIndexHTML(clientCfg.Splitting); err != nil {
		patchErr := p.AfterBuild(host.BuildResult{Err: err})
		return errors.Join(err, patchErr)
	}

	return p.AfterBuild(host.BuildResult{})
}

// writeIndexHTML generates the manifest and the production HTML document
// referencing the built client assets.
func (p *Plugin) writeIndexHTML(splitting bool) error {
	entryName := core.EntryNameForPath(p.project.AppEntry)

	man, err := bundle.GenerateManifest(core.DistDir, []string{entryName})
	if err != nil {
		return err
	}
	if err := bundle.WriteManifest(core.DistDir, man); err != nil {
		return err
	}

	script, css, chunks := man.Assets(entryName)

	named := make([]string, 0, len(man.Chunks))
	for _, ref := range man.Chunks {
		named = append(named, ref)
	}
	sort.Strings(named)

	tags := bundle.ChunkTags(host.PassClient, chunks, named, splitting)

	var state map[string]any
	if !p.project.SSR.ForceInitial {
		state = map[string]any{}
	}

	html, err := core.RenderShell(core.Shell{
		MountID:   p.project.MountID,
		ScriptSrc: script,
		CSSHref:   css,
		Chunks:    tags,
		State:     state,
	})
	if err != nil {
		return fmt.Errorf("failed to render html shell: %w", err)
	}

	return os.WriteFile(core.IndexHTMLPath(core.DistDir), []byte(html), 0o644)
}
