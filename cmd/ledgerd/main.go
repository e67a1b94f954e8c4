package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerd",
		Short:        "AMM liquidity, fee and presale ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API",
		RunE:  runServe,
	}

	addStoreFlags(serveCmd)
	addChainFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("request-timeout", 30*time.Second, "per-request timeout")
	serveCmd.Flags().Int("enrich-concurrency", 8, "parallel pool/token lookups per enrichment")
	serveCmd.Flags().Int("token-cache-size", 1024, "tokens cached across requests (0 disables)")
	serveCmd.Flags().StringSlice("cors-origins", []string{"*"}, "allowed CORS origins (comma-separated)")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE:  runMigrate,
	}

	addStoreFlags(migrateCmd)
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute trailing-window pool metrics from the swap ledger",
		RunE:  runMetrics,
	}

	addStoreFlags(metricsCmd)
	metricsCmd.Flags().String("window", "24h", "aggregation window (e.g. 1h, 24h)")
	metricsCmd.Flags().Duration("min-interval", 0, "skip the run when the previous one is more recent than this")
	metricsCmd.Flags().String("state-file", "", "optional local state file instead of the ledger_state table")
	metricsCmd.Flags().String("metrics-out", "", "optional JSONL export path")
	metricsCmd.Flags().String("as-of", "", "window end (unix seconds or RFC3339), default now")
	metricsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(metricsCmd)

	claimCmd := &cobra.Command{
		Use:   "claim-fees",
		Short: "Settle a wallet's unclaimed fees in a pool",
		RunE:  runClaimFees,
	}

	addStoreFlags(claimCmd)
	addChainFlags(claimCmd)
	claimCmd.Flags().String("pool", "", "pool id")
	claimCmd.Flags().String("wallet", "", "wallet address")
	claimCmd.Flags().Bool("tx", false, "also build the collect transaction")
	claimCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(claimCmd)

	removeCmd := &cobra.Command{
		Use:   "remove-liquidity",
		Short: "Withdraw LP tokens from a position",
		RunE:  runRemoveLiquidity,
	}

	addStoreFlags(removeCmd)
	addChainFlags(removeCmd)
	removeCmd.Flags().String("position", "", "position id")
	removeCmd.Flags().String("amount", "", "LP tokens to withdraw")
	removeCmd.Flags().Bool("tx", false, "also build the withdrawal transaction")
	removeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(removeCmd)

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty uses the in-memory store)")
	cmd.Flags().Int("connect-retries", 5, "connection attempts before giving up")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial connect retry backoff")
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "EVM RPC URL (empty disables settlement)")
	cmd.Flags().String("position-manager", "", "position manager contract address")
	cmd.Flags().String("swap-router", "", "swap router contract address")
	cmd.Flags().Uint64("gas-limit", 500000, "gas limit used when estimation fails")
	cmd.Flags().Duration("tx-deadline", 20*time.Minute, "deadline set on built transactions")
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
