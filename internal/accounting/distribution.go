package accounting

import (
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/model"
)

// FeeShare is one wallet's cut of a swap fee.
type FeeShare struct {
	Wallet string
	Amount decimal.Decimal
}

// SwapFee is the fee charged on amountIn at feeRate parts per million.
func SwapFee(amountIn decimal.Decimal, feeRate uint32) decimal.Decimal {
	if feeRate == 0 || !amountIn.IsPositive() {
		return decimal.Zero
	}
	return amountIn.Mul(decimal.NewFromInt(int64(feeRate))).
		DivRound(decimal.NewFromInt(model.FeeRateDenominator), AmountPrecision)
}

// DistributeFee splits fee across positions pro rata to their LP tokens.
// Shares are merged per wallet in first-seen order, and the last share takes
// the rounding remainder so the shares sum to fee exactly.
func DistributeFee(positions []model.LiquidityPosition, fee decimal.Decimal) []FeeShare {
	if !fee.IsPositive() {
		return nil
	}

	total := decimal.Zero
	order := make([]string, 0, len(positions))
	weights := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		if !p.LPTokens.IsPositive() {
			continue
		}
		if _, ok := weights[p.UserWallet]; !ok {
			order = append(order, p.UserWallet)
			weights[p.UserWallet] = decimal.Zero
		}
		weights[p.UserWallet] = weights[p.UserWallet].Add(p.LPTokens)
		total = total.Add(p.LPTokens)
	}
	if total.IsZero() {
		return nil
	}

	shares := make([]FeeShare, 0, len(order))
	assigned := decimal.Zero
	for i, wallet := range order {
		amount := fee.Mul(weights[wallet]).DivRound(total, AmountPrecision)
		if i == len(order)-1 {
			amount = fee.Sub(assigned)
		}
		assigned = assigned.Add(amount)
		shares = append(shares, FeeShare{Wallet: wallet, Amount: amount})
	}
	return shares
}
