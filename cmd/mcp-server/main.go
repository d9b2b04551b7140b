// cmd/mcp-server/main.go: HTTP tool server for scrbench
//
// Exposes the benchmark tools as an HTTP endpoint for agent frameworks.
//
// Usage:
//
//	go run ./cmd/mcp-server -config scrbench.yaml -addr :8080
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
// Metrics endpoint:   GET  /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/njchilds90/scrbench"
	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/config"
	"github.com/njchilds90/scrbench/internal/metrics"
	"github.com/njchilds90/scrbench/store"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "listen address (default from config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := store.New(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	if err := archive.Init(ctx); err != nil {
		return err
	}
	defer func() { _ = store.CloseIfSupported(archive) }()

	c, err := catalog.Default()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tools := scrbench.NewTools(c, logger, benchmarkOptions(cfg, metrics.New(registry))...).Archive(archive)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(tools, registry, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("scrbench tool server listening", "addr", addr, "store", cfg.Store.Kind)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// benchmarkOptions maps the configuration onto the options every served
// benchmark is built with.
func benchmarkOptions(cfg config.Config, m *metrics.Collectors) []scrbench.Option {
	opts := []scrbench.Option{
		scrbench.WithMetrics(m),
		scrbench.WithConstraintSampleSize(cfg.ConstraintSampleSize),
		scrbench.WithReferenceDir(cfg.ReferenceDir),
	}
	if cfg.LazyCache {
		opts = append(opts, scrbench.WithLazyCache())
	}
	if cfg.Seed != nil {
		opts = append(opts, scrbench.WithSeed(*cfg.Seed))
	}
	return opts
}
