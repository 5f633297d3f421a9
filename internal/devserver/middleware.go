// Package devserver provides the development-time render middleware, the
// live-reload channel and the source watcher. The middleware intercepts the
// dev server's HTML response, renders the requested page through the server
// bundle and degrades to the unrendered HTML on any failure.
package devserver

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skald-labs/skald/internal/render"
)

// hotUpdatePattern marks hot-reload polling requests that must never be
// rendered.
const hotUpdatePattern = "hot-update.json"

// Renderer is the subset of the render engine the middleware needs.
type Renderer interface {
	Render(ctx context.Context, bundlePath string, in render.Input) (render.Result, error)
	Invalidate(bundlePath string)
}

// Options configures the render middleware.
type Options struct {
	Renderer   Renderer
	BundlePath string
	MountID    string
	// EvictBeforeRender reloads the server bundle on every request so
	// dev builds are picked up immediately.
	EvictBeforeRender bool
	Logger            *slog.Logger
}

// Middleware wraps next with per-request server rendering. Render failures
// never reach the client: the response falls back to the HTML next
// produced.
func Middleware(opts Options) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.Contains(req.URL.String(), hotUpdatePattern) || isUpgrade(req) {
				next.ServeHTTP(w, req)
				return
			}

			rec := newRecorder()
			next.ServeHTTP(rec, req)

			if !rec.renderable() {
				rec.copyTo(w)
				return
			}

			defaultHTML := rec.body.String()

			if opts.EvictBeforeRender {
				opts.Renderer.Invalidate(opts.BundlePath)
			}

			start := time.Now()
			log.Debug("ssr render start", "path", req.URL.Path)
			res, err := opts.Renderer.Render(req.Context(), opts.BundlePath, render.Input{
				Path:           req.URL.Path,
				HTMLTemplate:   defaultHTML,
				MountElementID: opts.MountID,
			})
			log.Debug("ssr render end", "path", req.URL.Path, "duration", time.Since(start))

			html := defaultHTML
			switch {
			case err != nil:
				log.Warn("ssr render failed, serving unrendered html", "path", req.URL.Path, "error", err)
			case res.Err != "":
				log.Warn("ssr render failed, serving unrendered html", "path", req.URL.Path, "error", res.Err)
			default:
				html = res.HTML
			}

			writeHTML(w, rec.header, html)
		})
	}
}

// isUpgrade reports whether the request negotiates a protocol upgrade
// (websockets). Upgrades must reach the raw connection; the recorder
// cannot hijack it.
func isUpgrade(req *http.Request) bool {
	return req.Header.Get("Upgrade") != ""
}

func writeHTML(w http.ResponseWriter, header http.Header, html string) {
	for key, values := range header {
		if key == "Content-Length" {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(html)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// recorder captures the downstream handler's response so the middleware
// can decide whether to substitute rendered HTML.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) { r.status = status }

func (r *recorder) Write(p []byte) (int, error) { return r.body.Write(p) }

// renderable reports whether the captured response is a successful HTML
// document worth rendering.
func (r *recorder) renderable() bool {
	if r.status != http.StatusOK {
		return false
	}
	ct := r.header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(r.body.Bytes())
	}
	return strings.Contains(ct, "text/html")
}

func (r *recorder) copyTo(w http.ResponseWriter) {
	for key, values := range r.header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.status)
	w.Write(r.body.Bytes())
}
