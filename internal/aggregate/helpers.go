package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
)

const year = 365 * 24 * time.Hour

// computeAPR annualizes fees earned over window against tvl. It is zero when
// either side is unknown.
func computeAPR(fees, tvl decimal.Decimal, window time.Duration) decimal.Decimal {
	if window <= 0 || !tvl.IsPositive() || !fees.IsPositive() {
		return decimal.Zero
	}
	periods := decimal.NewFromInt(int64(year)).Div(decimal.NewFromInt(int64(window)))
	return fees.Mul(periods).DivRound(tvl, accounting.AmountPrecision)
}
