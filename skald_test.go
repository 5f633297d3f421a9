package skald

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/core"
)

func testPlugin(t *testing.T) *Plugin {
	t.Helper()
	p, err := New(DefaultProject())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestNew(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		p, err := New(DefaultProject())
		if err != nil {
			t.Fatal(err)
		}
		p.Close()
	})

	t.Run("hash routing is fatal", func(t *testing.T) {
		project := DefaultProject()
		project.Routing = "hash"
		if _, err := New(project); !errors.Is(err, ErrHashRouting) {
			t.Errorf("err = %v, want ErrHashRouting", err)
		}
	})

	t.Run("missing app entry is fatal", func(t *testing.T) {
		project := DefaultProject()
		project.AppEntry = ""
		if _, err := New(project); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSchema(t *testing.T) {
	p := testPlugin(t)

	fields := p.Schema().Fields
	want := map[string]bool{
		"forceInitial":    false,
		"devServerRender": false,
		"stream":          false,
		"staticMarkup":    false,
	}
	for _, f := range fields {
		if _, ok := want[f.Name]; !ok {
			t.Errorf("unexpected schema field %q", f.Name)
			continue
		}
		want[f.Name] = true
		if f.Kind != host.KindBool {
			t.Errorf("field %q is not a bool", f.Name)
		}
		if !f.Optional {
			t.Errorf("field %q must be optional", f.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("schema missing field %q", name)
		}
	}
}

func TestTransformBundle(t *testing.T) {
	p := testPlugin(t)
	base := p.BaseBundleConfig()

	server := p.TransformBundle(base, host.PassServer)
	if server.Platform != host.PlatformNode {
		t.Error("server pass must target node")
	}
	if server.Output.File != core.ServerBundle {
		t.Errorf("server output file = %q", server.Output.File)
	}
	if len(server.Entries) != 1 || server.Entries[0] != core.ServerEntryPath() {
		t.Errorf("server entries = %v", server.Entries)
	}

	client := p.TransformBundle(base, host.PassClient)
	if client.Platform != host.PlatformBrowser {
		t.Error("client pass must target browser")
	}
	if len(client.Entries) != 1 || client.Entries[0] != DefaultProject().AppEntry {
		t.Errorf("client entries = %v", client.Entries)
	}
	if !client.Splitting {
		t.Error("client pass must keep splitting")
	}
}

func TestDevMiddleware(t *testing.T) {
	marker := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Next", "reached")
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("disabled rendering leaves the chain untouched", func(t *testing.T) {
		p := testPlugin(t)

		h := p.DevMiddleware(marker)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusTeapot || rec.Header().Get("X-Next") != "reached" {
			t.Error("next handler not reached unchanged")
		}
	})

	t.Run("enabled rendering wraps the chain", func(t *testing.T) {
		project := DefaultProject()
		project.SSR.DevServerRender = true
		p, err := New(project)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(p.Close)

		// Non-HTML responses pass through even with rendering enabled.
		h := p.DevMiddleware(marker)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestAfterBuildSkipsFailedBuilds(t *testing.T) {
	p := testPlugin(t)

	// No dist directory exists; a failed build must still be a no-op.
	if err := p.AfterBuild(host.BuildResult{Err: errors.New("bundle failed")}); err != nil {
		t.Errorf("AfterBuild = %v", err)
	}
}

func setupProjectDir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	writeSource(t, "src/main.js",
		"export function createApp(opts) { return { opts: opts }; }\n")
	writeSource(t, "src/ssr.js",
		"export async function renderToString(app, opts) { return \"<span>ssr</span>\"; }\n"+
			"export async function renderToStream(app) { return \"<span>ssr</span>\"; }\n")
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild(t *testing.T) {
	setupProjectDir(t)
	p := testPlugin(t)

	if err := p.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	html, err := os.ReadFile(core.IndexHTMLPath(core.DistDir))
	if err != nil {
		t.Fatalf("index.html not written: %v", err)
	}
	if !strings.Contains(string(html), `<script src="/dist/src-main-entry.js"`) {
		t.Errorf("index.html missing client script tag:\n%s", html)
	}

	bundle, err := os.ReadFile(core.ServerBundlePath(core.DistDir))
	if err != nil {
		t.Fatalf("server bundle not written: %v", err)
	}
	if bytes.Contains(bundle, []byte(core.HTMLToken)) {
		t.Error("placeholder token survived the post-build patch")
	}
	if !bytes.Contains(bundle, []byte("<!doctype html>")) {
		t.Error("patched bundle does not embed the built html")
	}

	if _, err := os.Stat(filepath.Join(core.DistDir, "manifest.json")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestBuildNotifiesListenerOnHTMLFailure(t *testing.T) {
	setupProjectDir(t)
	p := testPlugin(t)

	// Occupying the html path makes writeIndexHTML fail after both passes
	// succeed.
	if err := os.MkdirAll(core.IndexHTMLPath(core.DistDir), 0o755); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	if err := p.Build(context.Background()); err == nil {
		t.Fatal("expected build error")
	}

	// The build-complete listener must still observe the failed run and
	// decline to patch.
	if !strings.Contains(logs.String(), "skipping html patch") {
		t.Error("listener did not observe the failed build")
	}

	bundle, err := os.ReadFile(core.ServerBundlePath(core.DistDir))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(bundle, []byte(core.HTMLToken)) {
		t.Error("failed build must leave the server bundle unpatched")
	}
}

func TestBaseBundleConfig(t *testing.T) {
	p := testPlugin(t)
	cfg := p.BaseBundleConfig()

	if len(cfg.Entries) != 1 || cfg.Entries[0] != DefaultProject().AppEntry {
		t.Errorf("Entries = %v", cfg.Entries)
	}
	if cfg.Output.Dir != core.DistDir {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
	if !cfg.Splitting {
		t.Error("base config must enable splitting")
	}
}
