package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/njchilds90/scrbench"
	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/config"
	"github.com/njchilds90/scrbench/internal/metrics"
	"github.com/njchilds90/scrbench/store"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	configPath  string
	metricsFile string

	cfg      config.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	store    store.Store
	registry *prometheus.Registry
	metrics  *metrics.Collectors
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "scrbench",
		Short:         "Symbolic regression benchmark datasets and constraint checks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	root.AddCommand(
		a.listCmd(),
		a.infoCmd(),
		a.generateCmd(),
		a.checkCmd(),
		a.stationaryCmd(),
		a.runsCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	if a.catalog, err = catalog.Default(); err != nil {
		return err
	}

	s, err := store.New(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	if err := s.Init(ctx); err != nil {
		return fmt.Errorf("init %s store: %w", cfg.Store.Kind, err)
	}
	a.store = s

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

func (a *app) teardown() error {
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return store.CloseIfSupported(a.store)
}

// benchmark builds the named benchmark with the configured options.
func (a *app) benchmark(name string) (*scrbench.Benchmark, error) {
	opts := []scrbench.Option{
		scrbench.WithCatalog(a.catalog),
		scrbench.WithLogger(a.logger),
		scrbench.WithMetrics(a.metrics),
		scrbench.WithConstraintSampleSize(a.cfg.ConstraintSampleSize),
		scrbench.WithReferenceDir(a.cfg.ReferenceDir),
	}
	if a.cfg.LazyCache {
		opts = append(opts, scrbench.WithLazyCache())
	}
	if a.cfg.Seed != nil {
		opts = append(opts, scrbench.WithSeed(*a.cfg.Seed))
	}
	return scrbench.New(name, opts...)
}

// archive saves a run, logging instead of failing the command.
func (a *app) archive(ctx context.Context, name string, kind store.Kind, params, outcome any) {
	run, err := store.NewRun(name, kind, params, outcome)
	if err == nil {
		err = a.store.SaveRun(ctx, run)
	}
	if err != nil {
		a.logger.Warn("archiving run failed", "equation", name, "kind", kind, "error", err)
		return
	}
	a.logger.Debug("run archived", "id", run.ID, "equation", name, "kind", kind)
}
