package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeRateDenominator is the scale of Pool.FeeRate (parts per million).
const FeeRateDenominator = 1_000_000

// Pool is a trading venue for an ordered token pair.
type Pool struct {
	ID          string          `json:"id"`
	PoolAddress string          `json:"pool_address"`
	TokenAID    string          `json:"token_a_id"`
	TokenBID    string          `json:"token_b_id"`
	TokenAMint  string          `json:"token_a_mint_address"`
	TokenBMint  string          `json:"token_b_mint_address"`
	LPMint      string          `json:"lp_mint"`
	Liquidity   decimal.Decimal `json:"liquidity"`
	Volume24h   decimal.Decimal `json:"volume_24h"`
	Fees24h     decimal.Decimal `json:"fees_24h"`
	APR24h      decimal.Decimal `json:"apr_24h"`
	TickSpacing int32           `json:"tick_spacing"`
	FeeRate     uint32          `json:"fee_rate"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TokenRefs returns the pool's two token ids in pair order.
func (p Pool) TokenRefs() (string, string) {
	return p.TokenAID, p.TokenBID
}

// HasToken reports whether tokenID is one side of the pair.
func (p Pool) HasToken(tokenID string) bool {
	return tokenID != "" && (tokenID == p.TokenAID || tokenID == p.TokenBID)
}

// PoolMetrics is the rolling-window accounting written back onto a pool.
// Volume, Fees and TVL are valued in token B.
type PoolMetrics struct {
	PoolID      string          `json:"pool_id"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	SwapCount   uint64          `json:"swap_count"`
	VolumeA     decimal.Decimal `json:"volume_a"`
	VolumeB     decimal.Decimal `json:"volume_b"`
	FeesA       decimal.Decimal `json:"fees_a"`
	FeesB       decimal.Decimal `json:"fees_b"`
	Volume      decimal.Decimal `json:"volume"`
	Fees        decimal.Decimal `json:"fees"`
	TVL         decimal.Decimal `json:"tvl"`
	APR         decimal.Decimal `json:"apr"`
}
