package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

// StoreConfig selects the Ledger Store. An empty DSN means the in-memory store.
type StoreConfig struct {
	PGDSN          string
	ConnectRetries int
	RetryBackoff   time.Duration
}

// ChainConfig configures chain access. An empty RPC URL disables settlement
// and on-chain discovery.
type ChainConfig struct {
	RPCURL          string
	PositionManager string
	SwapRouter      string
	GasLimit        uint64
	TxDeadline      time.Duration
}

// ServeConfig holds configuration for the HTTP server.
type ServeConfig struct {
	Store             StoreConfig
	Chain             ChainConfig
	Listen            string
	RequestTimeout    time.Duration
	EnrichConcurrency int
	TokenCacheSize    int
	CORSOrigins       []string
	LogLevel          string
}

type MigrateConfig struct {
	Store    StoreConfig
	LogLevel string
}

// MetricsConfig holds configuration for the pool metrics job.
type MetricsConfig struct {
	Store       StoreConfig
	Window      time.Duration
	MinInterval time.Duration
	StateFile   string
	MetricsOut  string
	AsOf        string
	LogLevel    string
}

// OpsConfig holds configuration for the one-shot administrative commands.
type OpsConfig struct {
	Store    StoreConfig
	Chain    ChainConfig
	LogLevel string
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("connect-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		PGDSN:          v.GetString("pg-dsn"),
		ConnectRetries: v.GetInt("connect-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
	}
}

func chainConfig(v *viper.Viper) ChainConfig {
	return ChainConfig{
		RPCURL:          v.GetString("rpc"),
		PositionManager: v.GetString("position-manager"),
		SwapRouter:      v.GetString("swap-router"),
		GasLimit:        v.GetUint64("gas-limit"),
		TxDeadline:      v.GetDuration("tx-deadline"),
	}
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("gas-limit", uint64(500000))
	v.SetDefault("tx-deadline", 20*time.Minute)
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v.SetDefault("listen", ":8080")
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("enrich-concurrency", 8)
	v.SetDefault("token-cache-size", 1024)
	v.SetDefault("cors-origins", []string{"*"})
	setChainDefaults(v)

	cfg := ServeConfig{
		Store:             storeConfig(v),
		Chain:             chainConfig(v),
		Listen:            v.GetString("listen"),
		RequestTimeout:    v.GetDuration("request-timeout"),
		EnrichConcurrency: v.GetInt("enrich-concurrency"),
		TokenCacheSize:    v.GetInt("token-cache-size"),
		CORSOrigins:       v.GetStringSlice("cors-origins"),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.RequestTimeout <= 0 {
		return ServeConfig{}, fmt.Errorf("request-timeout must be positive")
	}
	if cfg.EnrichConcurrency <= 0 {
		return ServeConfig{}, fmt.Errorf("enrich-concurrency must be positive")
	}
	if cfg.TokenCacheSize < 0 {
		return ServeConfig{}, fmt.Errorf("token-cache-size must not be negative")
	}
	return cfg, nil
}

func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return MigrateConfig{}, err
	}
	cfg := MigrateConfig{
		Store:    storeConfig(v),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.Store.PGDSN == "" {
		return MigrateConfig{}, fmt.Errorf("pg-dsn is required")
	}
	return cfg, nil
}

// LoadMetrics merges config file, environment variables, and flags into MetricsConfig.
func LoadMetrics(cfgFile string, flags *pflag.FlagSet) (MetricsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return MetricsConfig{}, err
	}
	v.SetDefault("window", "24h")
	v.SetDefault("min-interval", time.Duration(0))

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return MetricsConfig{}, fmt.Errorf("window must be at least 1s")
	}

	cfg := MetricsConfig{
		Store:       storeConfig(v),
		Window:      window,
		MinInterval: v.GetDuration("min-interval"),
		StateFile:   v.GetString("state-file"),
		MetricsOut:  v.GetString("metrics-out"),
		AsOf:        v.GetString("as-of"),
		LogLevel:    v.GetString("log-level"),
	}
	if cfg.MinInterval < 0 {
		return MetricsConfig{}, fmt.Errorf("min-interval must not be negative")
	}
	return cfg, nil
}

func LoadOps(cfgFile string, flags *pflag.FlagSet) (OpsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return OpsConfig{}, err
	}
	setChainDefaults(v)
	return OpsConfig{
		Store:    storeConfig(v),
		Chain:    chainConfig(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}
