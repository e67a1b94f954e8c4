package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/api"
	"github.com/paahaad/hypernova-sub001/internal/config"
	"github.com/paahaad/hypernova-sub001/internal/enrich"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServe(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	onchain, err := openChain(ctx, cfg.Chain, cfg.Store.ConnectRetries, cfg.Store.RetryBackoff, logger)
	if err != nil {
		return err
	}
	defer onchain.Close()

	svc, err := newService(store, onchain, enrich.Config{
		Concurrency:    cfg.EnrichConcurrency,
		TokenCacheSize: cfg.TokenCacheSize,
	}, logger)
	if err != nil {
		return err
	}

	server, err := api.NewServer(svc, api.Config{
		Listen:         cfg.Listen,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	}, logger.Named("api"))
	if err != nil {
		return err
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.Bool("postgres", cfg.Store.PGDSN != ""),
		zap.Bool("settlement", onchain.settlement != nil),
		zap.Bool("discovery", onchain.discovery != nil),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int("enrich_concurrency", cfg.EnrichConcurrency),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)

	return server.Run(ctx)
}
