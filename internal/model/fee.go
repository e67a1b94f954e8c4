package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeRecord holds accrued but unclaimed trading fees for a (pool, wallet) pair.
type FeeRecord struct {
	ID            string          `json:"id"`
	PoolID        string          `json:"pool_id"`
	UserWallet    string          `json:"user_wallet"`
	UnclaimedFeeA decimal.Decimal `json:"unclaimed_fee_a"`
	UnclaimedFeeB decimal.Decimal `json:"unclaimed_fee_b"`
	LastClaimedAt *time.Time      `json:"last_claimed_at,omitempty"`
	Version       int64           `json:"version"`
}

func (f FeeRecord) PoolRef() string { return f.PoolID }

// FeeCredit is one wallet's share of a swap fee, split by pool side.
type FeeCredit struct {
	UserWallet string
	FeeA       decimal.Decimal
	FeeB       decimal.Decimal
}

// HasUnclaimed reports whether either side still holds a balance. A record
// with nothing to claim reads the same as no record at all.
func (f FeeRecord) HasUnclaimed() bool {
	return !f.UnclaimedFeeA.IsZero() || !f.UnclaimedFeeB.IsZero()
}
