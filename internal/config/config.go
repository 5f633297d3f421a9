// Package config loads per-project SSR settings: a skald.yaml file at the
// project root layered with SKALD_* environment overrides. Configuration is
// fixed at load time; every other component reads it, none mutate it.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	RoutingHistory = "history"
	RoutingHash    = "hash"
)

// ErrHashRouting aborts startup: server rendering resolves pages by request
// path, which hash-based routing never sends to the server.
var ErrHashRouting = errors.New("ssr requires history routing; hash mode keeps the route in the URL fragment, which never reaches the server")

// Options are the SSR feature flags. All default to false.
type Options struct {
	// ForceInitial makes the client re-run its initialization instead of
	// picking up the serialized state embedded in the rendered HTML.
	ForceInitial bool `yaml:"forceInitial" env:"SKALD_FORCE_INITIAL"`
	// DevServerRender enables per-request rendering on the dev server.
	DevServerRender bool `yaml:"devServerRender" env:"SKALD_DEV_RENDER"`
	// Stream selects the streaming render call in the generated entry.
	Stream bool `yaml:"stream" env:"SKALD_STREAM"`
	// StaticMarkup renders without hydration markers.
	StaticMarkup bool `yaml:"staticMarkup" env:"SKALD_STATIC_MARKUP"`
}

// Project is the per-project configuration consumed by the plugin.
type Project struct {
	AppEntry   string  `yaml:"appEntry" env:"SKALD_APP_ENTRY"`
	UtilsEntry string  `yaml:"utilsEntry" env:"SKALD_UTILS_ENTRY"`
	MountID    string  `yaml:"mountId" env:"SKALD_MOUNT_ID"`
	BasePath   string  `yaml:"basePath" env:"SKALD_BASE_PATH"`
	Routing    string  `yaml:"routing" env:"SKALD_ROUTING"`
	SSR        Options `yaml:"ssr"`
}

// Defaults returns a Project with the conventional values filled in.
func Defaults() Project {
	return Project{
		AppEntry:   "./src/main.js",
		UtilsEntry: "./src/ssr.js",
		MountID:    "app",
		BasePath:   "/",
		Routing:    RoutingHistory,
	}
}

// Load reads the project file when present, applies environment overrides
// and validates the result. A missing file is not an error; everything can
// come from defaults and the environment.
func Load(path string) (Project, error) {
	project := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &project); err != nil {
			return Project{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return Project{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := env.Parse(&project); err != nil {
		return Project{}, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if err := project.Validate(); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Validate enforces the startup assertions. Hash routing is fatal.
func (p Project) Validate() error {
	if p.Routing == RoutingHash {
		return ErrHashRouting
	}
	if p.Routing != RoutingHistory {
		return fmt.Errorf("unknown routing mode %q: want %q or %q", p.Routing, RoutingHistory, RoutingHash)
	}
	if p.AppEntry == "" {
		return errors.New("missing app entry")
	}
	return nil
}

// IsDev reports whether the dev-mode environment flag is set.
func IsDev() bool {
	return os.Getenv("SKALD_DEV") == "1"
}

// ClientAnalyze and ServerAnalyze are distinct so analyzing one pass never
// collides with the other's analyzer output.
func ClientAnalyze() bool {
	return os.Getenv("SKALD_ANALYZE") == "1"
}

func ServerAnalyze() bool {
	return os.Getenv("SKALD_SSR_ANALYZE") == "1"
}
