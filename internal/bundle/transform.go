// Package bundle owns the two bundler passes of an SSR build: the ordered
// configuration transforms applied to the host's in-progress bundle config,
// the mapping of that config onto esbuild, and the asset manifest written
// after the client pass.
package bundle

import (
	"strconv"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/config"
	"github.com/skald-labs/skald/internal/core"
)

// Define keys injected into the server bundle at build time.
const (
	DefineBasePath   = "__BASE_PATH__"
	DefineServerSide = "__SKALD_SSR__"
)

// Transform derives a new configuration from its input. Transforms never
// mutate the input; each is pure with respect to its predecessor's output,
// so pipeline ordering stays explicit.
type Transform func(host.BundleConfig) host.BundleConfig

// Pipeline applies transforms in order.
type Pipeline []Transform

func (p Pipeline) Apply(cfg host.BundleConfig) host.BundleConfig {
	for _, t := range p {
		cfg = t(cfg)
	}
	return cfg
}

// ServerPass rewires a configuration for the server bundle: the generated
// server entry becomes the only entry point, output targets the server
// runtime as a single library-format file, stylesheets resolve to locals
// only, externalization is disabled, and the compile-time constants are
// injected. The analyzer runs only under the server analyze flag so its
// output never collides with a client analysis.
func ServerPass(project config.Project) Transform {
	return func(cfg host.BundleConfig) host.BundleConfig {
		out := cfg.Clone()
		out.Entries = []string{core.ServerEntryPath()}
		out.Platform = host.PlatformNode
		out.Output.File = core.ServerBundle
		out.Output.Format = host.FormatLibrary
		out.Output.GlobalName = core.ServerGlobal
		out.CSS = host.CSSLocalsOnly
		out.Externals = nil
		out.Splitting = false
		out.Metafile = config.ServerAnalyze()
		if out.Defines == nil {
			out.Defines = make(map[string]string, 2)
		}
		out.Defines[DefineBasePath] = strconv.Quote(project.BasePath)
		out.Defines[DefineServerSide] = "true"
		return out
	}
}

// ClientPass leaves the client configuration intact apart from the client
// analyze flag and a browser-side marker for the shared constants.
func ClientPass(project config.Project) Transform {
	return func(cfg host.BundleConfig) host.BundleConfig {
		out := cfg.Clone()
		out.Platform = host.PlatformBrowser
		out.Metafile = config.ClientAnalyze()
		if out.Defines == nil {
			out.Defines = make(map[string]string, 2)
		}
		out.Defines[DefineBasePath] = strconv.Quote(project.BasePath)
		out.Defines[DefineServerSide] = "false"
		return out
	}
}

// ForPass returns the pipeline for a bundle pass.
func ForPass(project config.Project, pass host.Pass) Pipeline {
	if pass == host.PassServer {
		return Pipeline{ServerPass(project)}
	}
	return Pipeline{ClientPass(project)}
}

// ChunkTags decides which chunk references get injected into the page HTML
// for a pass. The server pass contributes none: the server bundle must
// never be referenced from client HTML. For the client pass the list is
// deduplicated, and named chunks are appended when dynamic-import splitting
// is enabled.
func ChunkTags(pass host.Pass, entryChunks []string, namedChunks []string, splitting bool) []string {
	if pass == host.PassServer {
		return nil
	}

	seen := make(map[string]bool, len(entryChunks))
	var tags []string
	for _, chunk := range entryChunks {
		if seen[chunk] {
			continue
		}
		seen[chunk] = true
		tags = append(tags, chunk)
	}

	if splitting {
		for _, chunk := range namedChunks {
			if seen[chunk] {
				continue
			}
			seen[chunk] = true
			tags = append(tags, chunk)
		}
	}

	return tags
}
