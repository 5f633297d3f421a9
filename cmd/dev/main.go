// Command dev runs the standalone development server: it builds the client
// and server bundles, serves the application with per-request server
// rendering, watches the source tree and pushes live reloads to connected
// pages on every rebuild.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/skald-labs/skald"
	"github.com/skald-labs/skald/internal/core"
	"github.com/skald-labs/skald/internal/devserver"
)

func main() {
	addr := flag.String("addr", ":3000", "listen address")
	configPath := flag.String("config", "skald.yaml", "project config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	if *verbose {
		ll.Set(slog.LevelDebug)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	if err := run(*addr, *configPath, logger); err != nil {
		logger.Error("dev server failed", "error", err)
		os.Exit(1)
	}
}

func run(addr, configPath string, log *slog.Logger) error {
	os.Setenv("SKALD_DEV", "1")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	project, err := skald.LoadProject(configPath)
	if err != nil {
		return err
	}

	plugin, err := skald.New(project)
	if err != nil {
		return err
	}
	defer plugin.Close()

	log.Info("building", "entry", project.AppEntry)
	if err := plugin.Build(ctx); err != nil {
		return err
	}

	hub := devserver.NewReloadHub()

	shell := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, ".") {
			http.NotFound(w, req)
			return
		}
		html, err := os.ReadFile(core.IndexHTMLPath(core.DistDir))
		if err != nil {
			http.Error(w, "index.html not built yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(devserver.AppendReloadScript(string(html))))
	})

	// Only page responses go through the render middleware. The reload
	// websocket needs the raw connection and static assets are never HTML.
	mux := http.NewServeMux()
	mux.Handle(devserver.ReloadPath, hub.Handler())
	mux.Handle("/"+core.DistDir+"/", http.StripPrefix("/"+core.DistDir+"/",
		http.FileServer(http.Dir(core.DistDir))))
	mux.Handle("/", plugin.DevMiddleware(shell))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rebuild := func() {
		start := time.Now()
		// Full pipeline: chunk hashes change between builds, so the manifest
		// and index.html must be regenerated along with the bundles.
		if err := plugin.Build(ctx); err != nil {
			log.Warn("rebuild failed", "error", err)
			return
		}
		plugin.Engine().Invalidate(core.ServerBundlePath(core.DistDir))
		log.Info("rebuilt", "duration", time.Since(start).Round(time.Millisecond))
		hub.Notify()
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- devserver.Watch(ctx, ".", rebuild)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	log.Info("dev server listening", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	case err := <-watchErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
