package core

import (
	"path/filepath"
	"strings"
)

// Fixed filenames shared by the build pipeline, the dev server and the
// post-build patcher. These are part of the module's external contract:
// anything that consumes build output addresses artifacts by these names.
const (
	WorkDir       = ".skald"
	DistDir       = "dist"
	ServerEntry   = "server-entry.js"
	ClientExports = "client-exports.js"
	ServerBundle  = "server.bundle.js"
	IndexHTML     = "index.html"

	// HTMLToken is the placeholder embedded in the generated server entry
	// and replaced post-build with the serialized production HTML.
	HTMLToken = "__SKALD_HTML__"

	// ServerGlobal is the global name the server bundle's library output
	// assigns its exports to.
	ServerGlobal = "skaldServer"

	DefaultMountID = "app"
)

// ServerEntryPath is the generated server entry module, the single entry
// point of the server bundle pass.
func ServerEntryPath() string {
	return filepath.Join(WorkDir, ServerEntry)
}

// ServerBundlePath is the built server bundle inside the output directory.
func ServerBundlePath(distDir string) string {
	return filepath.Join(distDir, ServerBundle)
}

// IndexHTMLPath is the built HTML file inside the output directory.
func IndexHTMLPath(distDir string) string {
	return filepath.Join(distDir, IndexHTML)
}

// EntryNameForPath derives a stable bundle entry name from a source path:
// "./src/main.js" becomes "src-main-entry".
func EntryNameForPath(sourcePath string) string {
	name := strings.TrimPrefix(sourcePath, "./")
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(filepath.ToSlash(name), "/", "-")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		return "app-entry"
	}
	return name + "-entry"
}
