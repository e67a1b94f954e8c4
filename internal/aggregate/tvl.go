package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// valueLocked sums the open positions of a pool in token B. Token A balances
// are converted at price; without a price only token B counts.
func valueLocked(positions []model.LiquidityPosition, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.AmountTokenB)
		if price.IsPositive() {
			total = total.Add(p.AmountTokenA.Mul(price))
		}
	}
	return total.Round(accounting.AmountPrecision)
}
