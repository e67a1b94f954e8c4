package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidityPosition is a wallet's stake in a pool. LPTokens stays positive
// while the position exists. PositionMint identifies the on-chain position
// when one was opened through settlement.
type LiquidityPosition struct {
	ID           string          `json:"id"`
	UserWallet   string          `json:"user_wallet"`
	PoolID       string          `json:"pool_id"`
	AmountTokenA decimal.Decimal `json:"amount_token_a"`
	AmountTokenB decimal.Decimal `json:"amount_token_b"`
	LPTokens     decimal.Decimal `json:"lp_tokens"`
	PositionMint string          `json:"position_mint,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p LiquidityPosition) PoolRef() string { return p.PoolID }
