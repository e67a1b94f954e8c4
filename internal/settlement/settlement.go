// Package settlement produces transaction artifacts for ledger mutations that
// interactive clients sign and broadcast themselves.
package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/model"
)

// Direction is the side of the pool a swap sells.
type Direction int

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	if d == BToA {
		return "b_to_a"
	}
	return "a_to_b"
}

// Market is a pool with both of its tokens resolved.
type Market struct {
	Pool   model.Pool
	TokenA model.Token
	TokenB model.Token
}

// PriceRange bounds a concentrated position in ticks. The zero value means
// the full range.
type PriceRange struct {
	TickLower int32
	TickUpper int32
}

func (r PriceRange) IsZero() bool {
	return r.TickLower == 0 && r.TickUpper == 0
}

// LiquidityChange is a deposit, or a withdrawal when Remove is set.
//
// PositionMint is the token id of the on-chain position. Withdrawals require
// it; a deposit that carries one tops up that position instead of opening a
// new one. Share is the fraction of the position's on-chain liquidity a
// withdrawal burns, in (0, 1]. LP token amounts are ledger units and never
// reach the chain.
type LiquidityChange struct {
	Remove       bool
	AmountA      decimal.Decimal
	AmountB      decimal.Decimal
	LPTokens     decimal.Decimal
	Share        decimal.Decimal
	PositionMint string
}

// Receipt carries the opaque transaction artifact. PositionMint echoes the
// position the transaction acts on. It is empty for a deposit that opens a
// position, since the token id is assigned when the transaction executes.
type Receipt struct {
	TxHandle     []byte
	PositionMint string
}

// Adapter builds on-chain instructions for liquidity changes and swaps.
// Failures are returned as ledger errors.
type Adapter interface {
	SubmitLiquidityChange(ctx context.Context, market Market, wallet string, change LiquidityChange, priceRange PriceRange) (Receipt, error)
	SubmitSwap(ctx context.Context, market Market, wallet string, input decimal.Decimal, direction Direction, minOutput decimal.Decimal) (Receipt, error)
}

// FeeCollector is implemented by adapters that can sweep a position's owed
// fees to its owner.
type FeeCollector interface {
	SubmitFeeCollection(ctx context.Context, market Market, wallet, positionMint string) (Receipt, error)
}
