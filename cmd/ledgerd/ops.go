package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/config"
	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/service"
)

type opsResult struct {
	Data interface{} `json:"data"`
	Tx   string      `json:"tx,omitempty"`
}

// withOpsService loads the ops config, opens the store and chain and hands
// a service to fn. The store must be Postgres: the in-memory store would
// start empty.
func withOpsService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service, logger *zap.Logger) error) error {
	cfg, err := config.LoadOps(configFile(cmd), cmd.Flags())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := connectPostgres(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	onchain, err := openChain(ctx, cfg.Chain, cfg.Store.ConnectRetries, cfg.Store.RetryBackoff, logger)
	if err != nil {
		return err
	}
	defer onchain.Close()

	svc, err := newService(store, onchain, enrich.Config{}, logger)
	if err != nil {
		return err
	}
	return fn(ctx, svc, logger)
}

func clientOrigin(cmd *cobra.Command) string {
	if withTx, _ := cmd.Flags().GetBool("tx"); withTx {
		return service.ClientUI
	}
	return ""
}

func printResult(w io.Writer, data interface{}, tx []byte) error {
	out := opsResult{Data: data}
	if len(tx) > 0 {
		out.Tx = base64.StdEncoding.EncodeToString(tx)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runClaimFees(cmd *cobra.Command, _ []string) error {
	poolID, _ := cmd.Flags().GetString("pool")
	wallet, _ := cmd.Flags().GetString("wallet")

	return withOpsService(cmd, func(ctx context.Context, svc *service.Service, logger *zap.Logger) error {
		res, err := svc.ClaimFees(ctx, service.ClaimFeesRequest{
			PoolID:       poolID,
			Wallet:       wallet,
			ClientOrigin: clientOrigin(cmd),
		})
		if err != nil {
			return err
		}
		logger.Info("fees claimed", zap.String("pool_id", poolID), zap.String("wallet", wallet))
		return printResult(cmd.OutOrStdout(), res.Fees, res.Tx)
	})
}

func runRemoveLiquidity(cmd *cobra.Command, _ []string) error {
	positionID, _ := cmd.Flags().GetString("position")
	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}

	return withOpsService(cmd, func(ctx context.Context, svc *service.Service, logger *zap.Logger) error {
		res, err := svc.RemoveLiquidity(ctx, service.RemoveLiquidityRequest{
			PositionID:   positionID,
			LPAmount:     amount,
			ClientOrigin: clientOrigin(cmd),
		})
		if err != nil {
			return err
		}
		logger.Info("liquidity removed",
			zap.String("position_id", positionID),
			zap.Bool("full_closure", res.Closed),
		)
		return printResult(cmd.OutOrStdout(), res, res.Tx)
	})
}
