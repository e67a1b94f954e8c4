package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// Accumulator holds aggregate values for one pool window. LastPrice is token B
// per token A at the latest swap seen.
type Accumulator struct {
	Pool        model.Pool
	WindowStart time.Time
	WindowEnd   time.Time
	SwapCount   uint64
	VolumeA     decimal.Decimal
	VolumeB     decimal.Decimal
	FeesA       decimal.Decimal
	FeesB       decimal.Decimal
	LastPrice   decimal.Decimal
	lastTS      time.Time
}

func NewAccumulator(pool model.Pool, windowStart, windowEnd time.Time) *Accumulator {
	return &Accumulator{
		Pool:        pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
}

// AddSwap folds one swap into the window. Both legs count toward volume; the
// fee is charged on the input leg.
func (a *Accumulator) AddSwap(swap model.Swap) error {
	if swap.PoolID != a.Pool.ID {
		return fmt.Errorf("swap %s belongs to pool %s", swap.ID, swap.PoolID)
	}

	var amountA, amountB decimal.Decimal
	fee := accounting.SwapFee(swap.AmountIn, a.Pool.FeeRate)
	switch {
	case swap.TokenInID == a.Pool.TokenAID && swap.TokenOutID == a.Pool.TokenBID:
		amountA, amountB = swap.AmountIn.Abs(), swap.AmountOut.Abs()
		a.FeesA = a.FeesA.Add(fee)
	case swap.TokenInID == a.Pool.TokenBID && swap.TokenOutID == a.Pool.TokenAID:
		amountA, amountB = swap.AmountOut.Abs(), swap.AmountIn.Abs()
		a.FeesB = a.FeesB.Add(fee)
	default:
		return fmt.Errorf("swap %s tokens do not match pool pair", swap.ID)
	}

	a.VolumeA = a.VolumeA.Add(amountA)
	a.VolumeB = a.VolumeB.Add(amountB)
	a.SwapCount++

	if amountA.IsPositive() && !swap.Timestamp.Before(a.lastTS) {
		a.LastPrice = amountB.DivRound(amountA, accounting.AmountPrecision)
		a.lastTS = swap.Timestamp
	}
	return nil
}

// Metrics values the window in token B and derives APR against tvl.
func (a *Accumulator) Metrics(tvl decimal.Decimal) model.PoolMetrics {
	fees := a.FeesB.Add(a.FeesA.Mul(a.LastPrice))
	return model.PoolMetrics{
		PoolID:      a.Pool.ID,
		WindowStart: a.WindowStart,
		WindowEnd:   a.WindowEnd,
		SwapCount:   a.SwapCount,
		VolumeA:     a.VolumeA,
		VolumeB:     a.VolumeB,
		FeesA:       a.FeesA,
		FeesB:       a.FeesB,
		Volume:      a.VolumeB,
		Fees:        fees.Round(accounting.AmountPrecision),
		TVL:         tvl,
		APR:         computeAPR(fees, tvl, a.WindowEnd.Sub(a.WindowStart)),
	}
}
