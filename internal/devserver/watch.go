package devserver

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events an editor save produces into
// one rebuild.
const watchDebounce = 100 * time.Millisecond

// Watch recursively watches root and invokes onChange after source files
// settle. Build output and dependency directories are skipped. Blocks
// until ctx is done.
func Watch(ctx context.Context, root string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	addDir := func(dir string) {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDir(d.Name()) {
			return filepath.SkipDir
		}
		addDir(path)
		return nil
	})
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var pending *time.Timer
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(watchDebounce, onChange)
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if skipPath(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() && !skipDir(filepath.Base(ev.Name)) {
					addDir(ev.Name)
				}
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func skipDir(name string) bool {
	return name == "node_modules" || name == "dist" || name == ".skald" ||
		(strings.HasPrefix(name, ".") && name != ".")
}

func skipPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDir(part) && part != "." {
			return true
		}
	}
	return false
}
