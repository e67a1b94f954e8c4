package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/aggregate"
	"github.com/paahaad/hypernova-sub001/internal/config"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

func runMetrics(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMetrics(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Store.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	asOf, err := config.ParseTimestamp(cfg.AsOf)
	if err != nil {
		return fmt.Errorf("parse as-of: %w", err)
	}
	now := func() time.Time { return time.Now().UTC() }
	if !asOf.IsZero() {
		now = func() time.Time { return asOf }
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := connectPostgres(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var checkpoint aggregate.Checkpoint
	if cfg.StateFile != "" {
		checkpoint = &aggregate.FileCheckpoint{Path: cfg.StateFile}
	} else {
		checkpoint = &aggregate.TableCheckpoint{Table: store, Name: fmt.Sprintf("pool-metrics:%s", cfg.Window)}
	}

	var sink storage.MetricsSink
	if cfg.MetricsOut != "" {
		sink = storage.NewMetricsFile(cfg.MetricsOut)
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		Window:      cfg.Window,
		MinInterval: cfg.MinInterval,
		Checkpoint:  checkpoint,
		Sink:        sink,
	}, store, now, logger.Named("aggregate"))

	logger.Info("metrics start",
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.Duration("window", cfg.Window),
		zap.Duration("min_interval", cfg.MinInterval),
		zap.String("metrics_out", cfg.MetricsOut),
		zap.Time("as_of", now()),
	)

	metrics, err := agg.Run(ctx)
	if err != nil {
		return err
	}
	if metrics == nil {
		logger.Info("metrics run skipped, previous run is within min-interval")
		return nil
	}
	logger.Info("metrics done", zap.Int("pools", len(metrics)))
	return nil
}
