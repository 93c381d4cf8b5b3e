package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/previewline/internal/api"
	"github.com/gyaneshwarpardhi/previewline/internal/config"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/preview"
	"github.com/gyaneshwarpardhi/previewline/internal/render"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/flow.yaml", "Path to flow YAML document")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Preview manager ──────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Node geometry comes straight from the document, so layout is ready
	// as soon as the canvas is built.
	mgr := preview.NewManager(nil, render.NewMemory(),
		preview.WithConfig(cfg),
		preview.WithLayoutEngine(flow.LayoutFunc(func() bool { return true })),
		preview.WithLogger(logger),
	)
	defer mgr.Close()

	res, err := api.Apply(ctx, mgr, cfg)
	if err != nil {
		slog.Error("failed to build canvas", "err", err)
		os.Exit(1)
	}
	slog.Info("canvas built", "nodes", len(cfg.Nodes), "instances", mgr.Registry().Len(), "failed", len(res.Failed()))

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		res, err := api.Apply(ctx, mgr, newCfg)
		if err != nil {
			slog.Warn("hot-reload skipped", "err", err)
			return
		}
		slog.Info("flow hot-reloaded", "nodes", len(newCfg.Nodes), "failed", len(res.Failed()))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(mgr, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	slog.Info("goodbye")
}
