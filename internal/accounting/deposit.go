package accounting

import (
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// Deposit is liquidity supplied to a pool.
type Deposit struct {
	AmountA  decimal.Decimal
	AmountB  decimal.Decimal
	LPTokens decimal.Decimal

	// PositionMint is the on-chain token id the deposit went into, when the
	// client knows it.
	PositionMint string
}

// Validate rejects non-positive quantities.
func (d Deposit) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"amount_token_a", d.AmountA},
		{"amount_token_b", d.AmountB},
		{"lp_tokens", d.LPTokens},
	}
	for _, f := range fields {
		if !f.value.IsPositive() {
			return &ledger.Error{
				Kind:    ledger.KindInvalidInput,
				Op:      "deposit.validate",
				Message: f.name + " must be greater than zero",
				Err:     ErrInvalidAmount,
			}
		}
	}
	return nil
}

// ApplyDeposit adds d to an existing position. A deposit naming a different
// token id than the one the position is bound to is a conflict: one ledger
// position tracks one on-chain position.
func ApplyDeposit(position model.LiquidityPosition, d Deposit) (model.LiquidityPosition, error) {
	if d.PositionMint != "" && position.PositionMint != "" && d.PositionMint != position.PositionMint {
		return model.LiquidityPosition{}, &ledger.Error{
			Kind:    ledger.KindConflict,
			Op:      "deposit.apply",
			Message: "position is bound to token id " + position.PositionMint,
			Err:     ErrInvalidState,
		}
	}
	position.AmountTokenA = position.AmountTokenA.Add(d.AmountA)
	position.AmountTokenB = position.AmountTokenB.Add(d.AmountB)
	position.LPTokens = position.LPTokens.Add(d.LPTokens)
	if position.PositionMint == "" {
		position.PositionMint = d.PositionMint
	}
	return position, nil
}
