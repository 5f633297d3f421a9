package bundle

import (
	"reflect"
	"testing"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/config"
	"github.com/skald-labs/skald/internal/core"
)

func baseConfig() host.BundleConfig {
	return host.BundleConfig{
		Entries:   []string{"./src/main.js"},
		Platform:  host.PlatformBrowser,
		Output:    host.Output{Dir: core.DistDir, Format: host.FormatESModule},
		Externals: []string{"left-pad"},
		Defines:   map[string]string{"FEATURE": "true"},
		Splitting: true,
	}
}

func TestServerPass(t *testing.T) {
	project := config.Defaults()
	out := ServerPass(project)(baseConfig())

	if want := []string{core.ServerEntryPath()}; !reflect.DeepEqual(out.Entries, want) {
		t.Errorf("Entries = %v, want %v", out.Entries, want)
	}
	if out.Platform != host.PlatformNode {
		t.Error("server pass must target node")
	}
	if out.Output.File != core.ServerBundle {
		t.Errorf("Output.File = %q", out.Output.File)
	}
	if out.Output.Format != host.FormatLibrary {
		t.Error("server pass must emit library format")
	}
	if out.Output.GlobalName != core.ServerGlobal {
		t.Errorf("GlobalName = %q", out.Output.GlobalName)
	}
	if out.CSS != host.CSSLocalsOnly {
		t.Error("server pass must resolve CSS to locals only")
	}
	if out.Externals != nil {
		t.Errorf("Externals = %v, want none", out.Externals)
	}
	if out.Splitting {
		t.Error("server pass must not split")
	}
	if out.Metafile {
		t.Error("metafile on without SKALD_SSR_ANALYZE")
	}
	if out.Defines[DefineBasePath] != `"/"` {
		t.Errorf("base path define = %q", out.Defines[DefineBasePath])
	}
	if out.Defines[DefineServerSide] != "true" {
		t.Errorf("server-side define = %q", out.Defines[DefineServerSide])
	}
	if out.Defines["FEATURE"] != "true" {
		t.Error("host defines must be preserved")
	}
}

func TestServerPassAnalyze(t *testing.T) {
	t.Setenv("SKALD_SSR_ANALYZE", "1")
	out := ServerPass(config.Defaults())(baseConfig())
	if !out.Metafile {
		t.Error("metafile off with SKALD_SSR_ANALYZE set")
	}
}

func TestClientPass(t *testing.T) {
	project := config.Defaults()
	project.BasePath = "/admin/"
	in := baseConfig()
	out := ClientPass(project)(in)

	if !reflect.DeepEqual(out.Entries, in.Entries) {
		t.Errorf("client pass must keep entries, got %v", out.Entries)
	}
	if out.Platform != host.PlatformBrowser {
		t.Error("client pass must target browser")
	}
	if out.Output != in.Output {
		t.Errorf("client pass must keep output, got %+v", out.Output)
	}
	if !out.Splitting {
		t.Error("client pass must keep splitting")
	}
	if out.Defines[DefineBasePath] != `"/admin/"` {
		t.Errorf("base path define = %q", out.Defines[DefineBasePath])
	}
	if out.Defines[DefineServerSide] != "false" {
		t.Errorf("server-side define = %q", out.Defines[DefineServerSide])
	}

	t.Run("analyze flag", func(t *testing.T) {
		t.Setenv("SKALD_ANALYZE", "1")
		out := ClientPass(project)(baseConfig())
		if !out.Metafile {
			t.Error("metafile off with SKALD_ANALYZE set")
		}
	})
}

func TestTransformsArePure(t *testing.T) {
	project := config.Defaults()
	in := baseConfig()
	snapshot := in.Clone()

	ServerPass(project)(in)
	ClientPass(project)(in)

	if !reflect.DeepEqual(in, snapshot) {
		t.Errorf("input mutated: %+v", in)
	}
}

func TestPipelineOrder(t *testing.T) {
	var order []string
	p := Pipeline{
		func(cfg host.BundleConfig) host.BundleConfig {
			order = append(order, "first")
			out := cfg.Clone()
			out.Output.Dir = "a"
			return out
		},
		func(cfg host.BundleConfig) host.BundleConfig {
			order = append(order, "second")
			if cfg.Output.Dir != "a" {
				t.Errorf("second transform did not see first's output, dir = %q", cfg.Output.Dir)
			}
			out := cfg.Clone()
			out.Output.Dir = "b"
			return out
		},
	}

	out := p.Apply(host.BundleConfig{})
	if !reflect.DeepEqual(order, []string{"first", "second"}) {
		t.Errorf("order = %v", order)
	}
	if out.Output.Dir != "b" {
		t.Errorf("final dir = %q", out.Output.Dir)
	}
}

func TestForPass(t *testing.T) {
	project := config.Defaults()

	server := ForPass(project, host.PassServer).Apply(baseConfig())
	if server.Platform != host.PlatformNode {
		t.Error("ForPass(server) did not apply the server pipeline")
	}

	client := ForPass(project, host.PassClient).Apply(baseConfig())
	if client.Platform != host.PlatformBrowser {
		t.Error("ForPass(client) did not apply the client pipeline")
	}
}

func TestChunkTags(t *testing.T) {
	tests := []struct {
		name        string
		pass        host.Pass
		entryChunks []string
		namedChunks []string
		splitting   bool
		want        []string
	}{
		{
			name:        "server pass contributes nothing",
			pass:        host.PassServer,
			entryChunks: []string{"/dist/chunk-A.js"},
			namedChunks: []string{"/dist/chunk-B.js"},
			splitting:   true,
			want:        nil,
		},
		{
			name:        "entry chunks deduplicated",
			pass:        host.PassClient,
			entryChunks: []string{"/dist/chunk-A.js", "/dist/chunk-A.js", "/dist/chunk-B.js"},
			want:        []string{"/dist/chunk-A.js", "/dist/chunk-B.js"},
		},
		{
			name:        "named chunks appended when splitting",
			pass:        host.PassClient,
			entryChunks: []string{"/dist/chunk-A.js"},
			namedChunks: []string{"/dist/chunk-A.js", "/dist/chunk-C.js"},
			splitting:   true,
			want:        []string{"/dist/chunk-A.js", "/dist/chunk-C.js"},
		},
		{
			name:        "named chunks ignored without splitting",
			pass:        host.PassClient,
			entryChunks: []string{"/dist/chunk-A.js"},
			namedChunks: []string{"/dist/chunk-C.js"},
			splitting:   false,
			want:        []string{"/dist/chunk-A.js"},
		},
		{
			name: "empty input",
			pass: host.PassClient,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkTags(tt.pass, tt.entryChunks, tt.namedChunks, tt.splitting)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChunkTags() = %v, want %v", got, tt.want)
			}
		})
	}
}
