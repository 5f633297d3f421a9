package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/skald-labs/skald/host"
	"github.com/skald-labs/skald/internal/core"
)

// ESBuildOptions maps a host bundle configuration onto esbuild. Library
// format becomes an IIFE assigning the exports to the configured global;
// locals-only CSS resolves class names without emitting stylesheets.
func ESBuildOptions(cfg host.BundleConfig) esbuild.BuildOptions {
	opts := esbuild.BuildOptions{
		Bundle:    true,
		Write:     true,
		Target:    esbuild.ES2022,
		External:  cfg.Externals,
		Define:    cfg.Defines,
		Splitting: cfg.Splitting,
		Metafile:  cfg.Metafile,
		LogLevel:  esbuild.LogLevelSilent,
	}

	switch cfg.Platform {
	case host.PlatformNode:
		opts.Platform = esbuild.PlatformNode
	default:
		opts.Platform = esbuild.PlatformBrowser
	}

	switch cfg.Output.Format {
	case host.FormatLibrary:
		opts.Format = esbuild.FormatIIFE
		opts.GlobalName = cfg.Output.GlobalName
	default:
		opts.Format = esbuild.FormatESModule
	}

	if cfg.Output.File != "" {
		opts.EntryPoints = cfg.Entries
		opts.Outfile = filepath.Join(cfg.Output.Dir, cfg.Output.File)
	} else {
		// Per-entry output: name outputs after the stable entry name so
		// the manifest can find them regardless of source layout.
		for _, e := range cfg.Entries {
			opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, esbuild.EntryPoint{
				InputPath:  e,
				OutputPath: core.EntryNameForPath(e),
			})
		}
		opts.Outdir = cfg.Output.Dir
	}

	if cfg.CSS == host.CSSLocalsOnly {
		opts.Loader = map[string]esbuild.Loader{
			".css":        esbuild.LoaderLocalCSS,
			".module.css": esbuild.LoaderLocalCSS,
		}
	}

	return opts
}

// Result carries what a bundle pass produced beyond its on-disk output.
type Result struct {
	MetafilePath string
}

// Run executes one bundle pass and, when analysis is enabled, writes the
// metafile next to the build output under a per-pass name so client and
// server analyses never overwrite each other.
func Run(cfg host.BundleConfig, pass host.Pass) (Result, error) {
	res := esbuild.Build(ESBuildOptions(cfg))
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			if e.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%s:%d: %s", e.Location.File, e.Location.Line, e.Text))
				continue
			}
			msgs = append(msgs, e.Text)
		}
		return Result{}, fmt.Errorf("%s bundle failed: %s", pass, strings.Join(msgs, "; "))
	}

	var out Result
	if cfg.Metafile && res.Metafile != "" {
		out.MetafilePath = filepath.Join(cfg.Output.Dir, "metafile-"+pass.String()+".json")
		if err := os.WriteFile(out.MetafilePath, []byte(res.Metafile), 0o644); err != nil {
			return Result{}, fmt.Errorf("failed to write %s metafile: %w", pass, err)
		}
	}

	return out, nil
}
