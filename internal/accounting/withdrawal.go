package accounting

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// AmountPrecision is the number of fractional digits kept when a division
// cannot be represented exactly. It covers every token's declared decimals.
const AmountPrecision = 18

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidState  = errors.New("invalid position state")
)

// Withdrawal is the outcome of removing LP tokens from a position.
type Withdrawal struct {
	// FullClosure means the position must be deleted; the New* fields are zero.
	FullClosure bool
	// OverWithdrawal is set when more LP tokens were requested than held.
	// The request still closes the position.
	OverWithdrawal bool
	Fraction       decimal.Decimal
	NewAmountA     decimal.Decimal
	NewAmountB     decimal.Decimal
	NewLPTokens    decimal.Decimal
	WithdrawnA     decimal.Decimal
	WithdrawnB     decimal.Decimal
}

// ComputeWithdrawal removes requested LP tokens from position. Each amount is
// scaled by (1 - requested/lp_tokens). A request at or above the balance is a
// full closure.
func ComputeWithdrawal(position model.LiquidityPosition, requested decimal.Decimal) (Withdrawal, error) {
	if !requested.IsPositive() {
		return Withdrawal{}, &ledger.Error{
			Kind:    ledger.KindInvalidInput,
			Op:      "withdrawal.compute",
			Message: "lp amount must be greater than zero",
			Err:     ErrInvalidAmount,
		}
	}
	if !position.LPTokens.IsPositive() {
		return Withdrawal{}, &ledger.Error{
			Kind:    ledger.KindConflict,
			Op:      "withdrawal.compute",
			Message: "position holds no lp tokens",
			Err:     ErrInvalidState,
		}
	}

	lp := position.LPTokens
	newLP := lp.Sub(requested)
	fraction := requested.DivRound(lp, AmountPrecision)

	if !newLP.IsPositive() {
		return Withdrawal{
			FullClosure:    true,
			OverWithdrawal: newLP.IsNegative(),
			Fraction:       fraction,
			NewAmountA:     decimal.Zero,
			NewAmountB:     decimal.Zero,
			NewLPTokens:    decimal.Zero,
			WithdrawnA:     position.AmountTokenA,
			WithdrawnB:     position.AmountTokenB,
		}, nil
	}

	// amount * (lp - requested) / lp keeps a single rounding step, so the
	// result cannot go negative while requested <= lp.
	newA := position.AmountTokenA.Mul(newLP).DivRound(lp, AmountPrecision)
	newB := position.AmountTokenB.Mul(newLP).DivRound(lp, AmountPrecision)

	return Withdrawal{
		Fraction:    fraction,
		NewAmountA:  newA,
		NewAmountB:  newB,
		NewLPTokens: newLP,
		WithdrawnA:  position.AmountTokenA.Sub(newA),
		WithdrawnB:  position.AmountTokenB.Sub(newB),
	}, nil
}

// Apply returns position carrying the withdrawal's new amounts.
func (w Withdrawal) Apply(position model.LiquidityPosition) model.LiquidityPosition {
	position.AmountTokenA = w.NewAmountA
	position.AmountTokenB = w.NewAmountB
	position.LPTokens = w.NewLPTokens
	return position
}
