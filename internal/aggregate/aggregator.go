package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

const defaultWindow = 24 * time.Hour

// Ledger is the slice of the Ledger Store the metrics job reads and writes.
type Ledger interface {
	ListPools(ctx context.Context) ([]model.Pool, error)
	ListSwapsBetween(ctx context.Context, poolID string, from, to time.Time) ([]model.Swap, error)
	ListPositionsByPool(ctx context.Context, poolID string) ([]model.LiquidityPosition, error)
	UpdatePoolMetrics(ctx context.Context, metrics model.PoolMetrics) error
}

// Config controls aggregation behavior. MinInterval skips a run when the
// previous one ended less than that long ago.
type Config struct {
	Window      time.Duration
	MinInterval time.Duration
	Checkpoint  Checkpoint
	Sink        storage.MetricsSink
}

// Aggregator computes trailing-window pool metrics from the swap ledger and
// writes them back onto each pool.
type Aggregator struct {
	cfg    Config
	store  Ledger
	now    func() time.Time
	logger *zap.Logger
}

func NewAggregator(cfg Config, store Ledger, now func() time.Time, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	return &Aggregator{cfg: cfg, store: store, now: now, logger: logger}
}

// Run aggregates every pool once. It returns the metrics written, or nil when
// the run was skipped.
func (a *Aggregator) Run(ctx context.Context) ([]model.PoolMetrics, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	windowEnd := a.now()
	due, err := a.due(ctx, windowEnd)
	if err != nil {
		return nil, err
	}
	if !due {
		a.logger.Debug("aggregate skipped", zap.Duration("min_interval", a.cfg.MinInterval))
		return nil, nil
	}
	windowStart := windowEnd.Add(-a.cfg.Window)

	pools, err := a.store.ListPools(ctx)
	if err != nil {
		return nil, ledger.Upstream("aggregate.pools", err)
	}

	batch := make([]model.PoolMetrics, 0, len(pools))
	var failed int
	for _, pool := range pools {
		metrics, err := a.aggregatePool(ctx, pool, windowStart, windowEnd)
		if err != nil {
			if ledger.KindOf(err) == ledger.KindUpstream {
				return nil, err
			}
			failed++
			a.logger.Warn("aggregate pool", zap.String("pool_id", pool.ID), zap.Error(err))
			continue
		}
		batch = append(batch, metrics)
	}

	if a.cfg.Sink != nil && len(batch) > 0 {
		if err := a.cfg.Sink.PutMetricsBatch(batch); err != nil {
			return nil, fmt.Errorf("write metrics sink: %w", err)
		}
	}
	if a.cfg.Checkpoint != nil {
		if err := a.cfg.Checkpoint.MarkRun(ctx, windowEnd); err != nil {
			return nil, err
		}
	}

	a.logger.Info("aggregate complete",
		zap.Int("pools", len(pools)),
		zap.Int("written", len(batch)),
		zap.Int("failed", failed),
		zap.Time("window_end", windowEnd),
	)
	return batch, nil
}

func (a *Aggregator) aggregatePool(ctx context.Context, pool model.Pool, windowStart, windowEnd time.Time) (model.PoolMetrics, error) {
	swaps, err := a.store.ListSwapsBetween(ctx, pool.ID, windowStart, windowEnd)
	if err != nil {
		return model.PoolMetrics{}, ledger.Upstream("aggregate.swaps", err)
	}

	acc := NewAccumulator(pool, windowStart, windowEnd)
	for _, swap := range swaps {
		if err := acc.AddSwap(swap); err != nil {
			a.logger.Warn("aggregate swap", zap.String("pool_id", pool.ID), zap.String("swap_id", swap.ID), zap.Error(err))
		}
	}

	positions, err := a.store.ListPositionsByPool(ctx, pool.ID)
	if err != nil {
		return model.PoolMetrics{}, ledger.Upstream("aggregate.positions", err)
	}
	metrics := acc.Metrics(valueLocked(positions, acc.LastPrice))

	if err := a.store.UpdatePoolMetrics(ctx, metrics); err != nil {
		return model.PoolMetrics{}, ledger.Upstream("aggregate.update", err)
	}
	return metrics, nil
}

func (a *Aggregator) due(ctx context.Context, now time.Time) (bool, error) {
	if a.cfg.Checkpoint == nil || a.cfg.MinInterval <= 0 {
		return true, nil
	}
	last, ok, err := a.cfg.Checkpoint.LastRun(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.Sub(last) >= a.cfg.MinInterval, nil
}
