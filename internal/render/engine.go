// Package render loads built server bundles into an embedded QuickJS
// engine and invokes their exported render function. Bundles are cached by
// path with explicit invalidation so dev builds are reloaded fresh.
package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skald-labs/skald/internal/core"
)

// Input is the argument passed to the server bundle's render function.
type Input struct {
	Path           string `json:"path"`
	HTMLTemplate   string `json:"htmlTemplate"`
	MountElementID string `json:"mountElementId"`
}

// Result is the settled render outcome. Err carries a failure reported by
// the bundle itself (returned error field or rejected promise); it is not
// a Go-side failure.
type Result struct {
	HTML string `json:"html"`
	Err  string `json:"error"`
}

// Engine executes server bundles. Safe for concurrent use; renders against
// the same bundle are serialized on its VM.
type Engine struct {
	cache  *Cache
	global string
}

func NewEngine() *Engine {
	return &Engine{
		cache:  newCache(),
		global: core.ServerGlobal,
	}
}

// Invalidate evicts a cached bundle so the next render reloads it.
func (e *Engine) Invalidate(bundlePath string) {
	e.cache.Invalidate(bundlePath)
}

// Close releases every loaded bundle.
func (e *Engine) Close() {
	e.cache.Close()
}

// Render invokes the bundle's exported render function with in and waits
// for the returned promise to settle, pumping the VM's microtask queue.
// The context bounds the pump loop; there is no other timeout.
func (e *Engine) Render(ctx context.Context, bundlePath string, in Input) (Result, error) {
	mod, err := e.cache.acquireLocked(bundlePath)
	if err != nil {
		return Result{}, err
	}
	defer mod.mu.Unlock()

	inputJSON, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode render input: %w", err)
	}

	driver := fmt.Sprintf(`globalThis.__skald_result__ = null;
(function () {
  var mod = globalThis[%q];
  var fn = mod && (mod.default || mod.render);
  if (typeof fn !== "function") {
    globalThis.__skald_result__ = JSON.stringify({ html: "", error: "server bundle does not export a render function" });
    return;
  }
  var settle = function (html, err) {
    globalThis.__skald_result__ = JSON.stringify({ html: html, error: err });
  };
  try {
    Promise.resolve(fn(%s)).then(function (r) {
      r = r || {};
      settle(String(r.html || ""), r.error ? String((r.error && r.error.message) || r.error) : "");
    }, function (err) {
      settle("", String((err && err.message) || err));
    });
  } catch (err) {
    settle("", String((err && err.message) || err));
  }
})();`, e.global, string(inputJSON))

	if err := mod.eval(driver); err != nil {
		return Result{}, fmt.Errorf("render call failed: %w", err)
	}

	for {
		raw, err := mod.evalString(`globalThis.__skald_result__ === null ? "" : globalThis.__skald_result__`)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read render result: %w", err)
		}
		if raw != "" {
			var res Result
			if err := json.Unmarshal([]byte(raw), &res); err != nil {
				return Result{}, fmt.Errorf("failed to decode render result: %w", err)
			}
			return res, nil
		}

		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if executePendingJobs(mod.vm) == 0 {
			return Result{}, fmt.Errorf("render promise never settled for %s", mod.path)
		}
	}
}
