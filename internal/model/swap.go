package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Swap is an immutable record of one executed trade.
type Swap struct {
	ID         string          `json:"id"`
	PoolID     string          `json:"pool_id"`
	UserWallet string          `json:"user_wallet"`
	TokenInID  string          `json:"token_in_id"`
	TokenOutID string          `json:"token_out_id"`
	AmountIn   decimal.Decimal `json:"amount_in"`
	AmountOut  decimal.Decimal `json:"amount_out"`
	TxHash     string          `json:"tx_hash"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (s Swap) PoolRef() string { return s.PoolID }

// TokenRefs returns the input and output token ids.
func (s Swap) TokenRefs() (string, string) { return s.TokenInID, s.TokenOutID }
