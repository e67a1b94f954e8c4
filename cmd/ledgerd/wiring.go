package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/chain"
	"github.com/paahaad/hypernova-sub001/internal/config"
	"github.com/paahaad/hypernova-sub001/internal/dex"
	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/service"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
	"github.com/paahaad/hypernova-sub001/internal/storage"
	"github.com/paahaad/hypernova-sub001/internal/storage/memory"
	"github.com/paahaad/hypernova-sub001/internal/storage/postgres"
)

func connectPostgres(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*postgres.Store, error) {
	var store *postgres.Store
	err := withRetry(ctx, logger, "postgres", cfg.ConnectRetries, cfg.RetryBackoff, func(ctx context.Context) error {
		s, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, nil
}

// openStore returns the Postgres store when a DSN is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.PGDSN == "" {
		logger.Warn("no pg-dsn configured, using the in-memory store")
		return memory.New(), nil
	}
	store, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres connected", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	return store, nil
}

type chainServices struct {
	client     *chain.Client
	settlement settlement.Adapter
	discovery  service.Discovery
}

func (d chainServices) Close() {
	if d.client != nil {
		d.client.Close()
	}
}

// openChain dials the RPC endpoint and builds discovery and, when both
// contract addresses are set, the settlement adapter. An empty RPC URL
// yields no chain dependencies.
func openChain(ctx context.Context, cfg config.ChainConfig, retries int, backoff time.Duration, logger *zap.Logger) (chainServices, error) {
	if cfg.RPCURL == "" {
		logger.Info("no rpc configured, settlement and discovery disabled")
		return chainServices{}, nil
	}

	var client *chain.Client
	err := withRetry(ctx, logger, "rpc", retries, backoff, func(ctx context.Context) error {
		c, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		if _, err := c.ChainID(ctx); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return chainServices{}, fmt.Errorf("connect rpc: %w", err)
	}
	deps := chainServices{client: client}

	reader, err := dex.NewReader(client, 0, logger.Named("dex"))
	if err != nil {
		deps.Close()
		return chainServices{}, err
	}
	deps.discovery = reader

	if cfg.PositionManager == "" || cfg.SwapRouter == "" {
		logger.Warn("position-manager or swap-router not set, settlement disabled")
		return deps, nil
	}
	for _, addr := range []string{cfg.PositionManager, cfg.SwapRouter} {
		if !common.IsHexAddress(addr) {
			deps.Close()
			return chainServices{}, fmt.Errorf("invalid contract address %q", addr)
		}
	}
	evm, err := settlement.NewEVM(client, settlement.EVMConfig{
		PositionManager: common.HexToAddress(cfg.PositionManager),
		SwapRouter:      common.HexToAddress(cfg.SwapRouter),
		GasLimit:        cfg.GasLimit,
		Deadline:        cfg.TxDeadline,
	}, nil, logger.Named("settlement"))
	if err != nil {
		deps.Close()
		return chainServices{}, fmt.Errorf("build settlement adapter: %w", err)
	}
	deps.settlement = evm
	return deps, nil
}

func newService(store storage.Store, onchain chainServices, enrichCfg enrich.Config, logger *zap.Logger) (*service.Service, error) {
	enricher, err := enrich.New(store, enrichCfg, logger.Named("enrich"))
	if err != nil {
		return nil, fmt.Errorf("build enricher: %w", err)
	}
	return service.New(service.Deps{
		Store:      store,
		Enricher:   enricher,
		Settlement: onchain.settlement,
		Discovery:  onchain.discovery,
	}, logger.Named("service"))
}
