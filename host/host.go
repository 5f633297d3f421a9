// Package host defines the extension points a build orchestrator uses to
// drive skald. The plugin implements these contracts; nothing here depends
// on a particular orchestrator, which keeps the plugin testable in
// isolation and portable across build tools.
package host

import "net/http"

// FieldKind is the type of a configuration schema field.
type FieldKind int

const (
	KindBool FieldKind = iota
	KindString
)

// SchemaField describes one named configuration option the plugin accepts.
type SchemaField struct {
	Name     string
	Kind     FieldKind
	Optional bool
}

// Schema is the configuration surface a plugin registers with the host.
// The host validates user configuration against it at config-load time.
type Schema struct {
	Fields []SchemaField
}

// Pass discriminates the two bundle passes of an SSR build.
type Pass int

const (
	PassClient Pass = iota
	PassServer
)

func (p Pass) String() string {
	if p == PassServer {
		return "server"
	}
	return "client"
}

// Platform is the runtime a bundle pass targets.
type Platform int

const (
	PlatformBrowser Platform = iota
	PlatformNode
)

// Format selects how the bundle output exposes its exports.
type Format int

const (
	// FormatESModule emits standard ES module output.
	FormatESModule Format = iota
	// FormatLibrary emits a self-contained script that assigns the
	// module's exports to a named global, loadable without a module
	// system. The server bundle uses this so the render engine can
	// reach its exports after a plain eval.
	FormatLibrary
)

// CSSMode selects how stylesheets imported by bundled modules are handled.
type CSSMode int

const (
	// CSSExtract emits imported stylesheets as separate .css files.
	CSSExtract CSSMode = iota
	// CSSLocalsOnly resolves CSS module class names without emitting
	// stylesheet output. The server pass uses this: the client bundle
	// already ships the styles.
	CSSLocalsOnly
)

// Output describes where and how a bundle pass writes its result.
type Output struct {
	Dir        string
	File       string // single-file output name; empty means per-entry names
	Format     Format
	GlobalName string // export global for FormatLibrary
}

// BundleConfig is the in-progress bundler configuration the host hands to
// bundle transformers. Transformers never mutate it in place; they return
// a derived copy (see internal/bundle).
type BundleConfig struct {
	Entries   []string
	Platform  Platform
	Output    Output
	Externals []string
	CSS       CSSMode
	Defines   map[string]string
	Splitting bool // dynamic-import chunk splitting
	Metafile  bool // emit bundle analysis metadata
}

// Clone returns a deep copy so transforms stay pure with respect to their
// predecessor's output.
func (c BundleConfig) Clone() BundleConfig {
	out := c
	out.Entries = append([]string(nil), c.Entries...)
	out.Externals = append([]string(nil), c.Externals...)
	if c.Defines != nil {
		out.Defines = make(map[string]string, len(c.Defines))
		for k, v := range c.Defines {
			out.Defines[k] = v
		}
	}
	return out
}

// BuildResult is passed to build-complete listeners. Err is non-nil when
// the bundler reported a failure; listeners must not touch build output
// in that case.
type BuildResult struct {
	Err error
}

// SchemaProvider registers the plugin's configuration schema.
type SchemaProvider interface {
	Schema() Schema
}

// EntryGenerator runs during the file-generation phase, before any bundle
// pass starts.
type EntryGenerator interface {
	GenerateEntries() error
}

// BundleTransformer is invoked once per bundle pass with the in-progress
// configuration and the pass discriminator.
type BundleTransformer interface {
	TransformBundle(cfg BundleConfig, pass Pass) BundleConfig
}

// MiddlewareProvider wraps the development server's handler chain.
type MiddlewareProvider interface {
	DevMiddleware(next http.Handler) http.Handler
}

// BuildListener runs after the build lifecycle completes. Listeners run in
// registration order; a listener that rewrites build output must be
// registered before listeners that transform the generated HTML further.
type BuildListener interface {
	AfterBuild(res BuildResult) error
}
