package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/model"
)

// Lookups that find nothing return a *ledger.Error of kind NotFound. Unique
// key violations and lost version races return kind Conflict. Everything else
// is an upstream failure.

// TokenStore persists tokens keyed by id and mint address.
type TokenStore interface {
	CreateToken(ctx context.Context, token model.Token) (model.Token, error)
	GetToken(ctx context.Context, id string) (model.Token, error)
	GetTokenByMint(ctx context.Context, mint string) (model.Token, error)
	ListTokens(ctx context.Context) ([]model.Token, error)
	// UpdateTokenMetadata applies administrative fields only.
	UpdateTokenMetadata(ctx context.Context, id string, patch model.TokenMetadataPatch) (model.Token, error)
}

// PoolStore persists pools keyed by id and pool address.
type PoolStore interface {
	CreatePool(ctx context.Context, pool model.Pool) (model.Pool, error)
	GetPool(ctx context.Context, id string) (model.Pool, error)
	GetPoolByAddress(ctx context.Context, address string) (model.Pool, error)
	ListPools(ctx context.Context) ([]model.Pool, error)
	UpdatePoolMetrics(ctx context.Context, metrics model.PoolMetrics) error
}

// PositionStore persists liquidity positions. Update and Delete compare the
// caller's Version with the stored one and fail with Conflict when it moved.
type PositionStore interface {
	CreatePosition(ctx context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error)
	GetPosition(ctx context.Context, id string) (model.LiquidityPosition, error)
	FindPosition(ctx context.Context, wallet, poolID string) (model.LiquidityPosition, error)
	ListPositionsByWallet(ctx context.Context, wallet string) ([]model.LiquidityPosition, error)
	ListPositionsByPool(ctx context.Context, poolID string) ([]model.LiquidityPosition, error)
	UpdatePosition(ctx context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error)
	DeletePosition(ctx context.Context, id string, version int64) error
}

// SwapStore persists the append-only swap log.
type SwapStore interface {
	CreateSwap(ctx context.Context, swap model.Swap) (model.Swap, error)
	// RecordSwap stores swap and adds every credit to the fee records of
	// swap.PoolID as one unit. On error nothing is written, so the same tx
	// hash can be recorded again.
	RecordSwap(ctx context.Context, swap model.Swap, credits []model.FeeCredit) (model.Swap, error)
	GetSwapByTxHash(ctx context.Context, txHash string) (model.Swap, error)
	ListSwapsByPool(ctx context.Context, poolID string) ([]model.Swap, error)
	ListSwapsByWallet(ctx context.Context, wallet string) ([]model.Swap, error)
	ListSwapsBetween(ctx context.Context, poolID string, from, to time.Time) ([]model.Swap, error)
}

// FeeStore persists one fee record per (pool, wallet).
type FeeStore interface {
	FindFeeRecord(ctx context.Context, poolID, wallet string) (model.FeeRecord, error)
	ListFeeRecordsByWallet(ctx context.Context, wallet string) ([]model.FeeRecord, error)
	// AccrueFees adds to the unclaimed balances, creating the record if needed.
	AccrueFees(ctx context.Context, poolID, wallet string, feeA, feeB decimal.Decimal) (model.FeeRecord, error)
	UpdateFeeRecord(ctx context.Context, record model.FeeRecord) (model.FeeRecord, error)
}

// PresaleStore persists presales and their contributions.
type PresaleStore interface {
	CreatePresale(ctx context.Context, presale model.Presale) (model.Presale, error)
	GetPresale(ctx context.Context, id string) (model.Presale, error)
	GetPresaleByAddress(ctx context.Context, address string) (model.Presale, error)
	GetPresaleByToken(ctx context.Context, tokenID string) (model.Presale, error)
	ListPresales(ctx context.Context) ([]model.Presale, error)
	// AddContribution records c and stores presale (versioned) in one unit.
	AddContribution(ctx context.Context, presale model.Presale, c model.PresaleContribution) (model.Presale, model.PresaleContribution, error)
	ListContributions(ctx context.Context, presaleID string) ([]model.PresaleContribution, error)
}

// Store is the Ledger Store: the sole owner of persisted entity state.
type Store interface {
	TokenStore
	PoolStore
	PositionStore
	SwapStore
	FeeStore
	PresaleStore
	Close()
}

// MetricsSink receives computed pool metrics for export.
type MetricsSink interface {
	PutMetricsBatch(metrics []model.PoolMetrics) error
}
