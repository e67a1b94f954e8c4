package accounting

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

// FeeSettlement moves outstanding fee balances to the claimed state.
type FeeSettlement struct {
	store  storage.FeeStore
	now    func() time.Time
	logger *zap.Logger
}

func NewFeeSettlement(store storage.FeeStore, now func() time.Time, logger *zap.Logger) *FeeSettlement {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeSettlement{store: store, now: now, logger: logger}
}

// ClaimFees zeroes the wallet's balances in poolID and stamps the claim time.
// A record that was already drained is still found and re-zeroed; only a
// missing record yields NotFound.
func (f *FeeSettlement) ClaimFees(ctx context.Context, poolID, wallet string) (model.FeeRecord, error) {
	const op = "fees.claim"
	if strings.TrimSpace(poolID) == "" {
		return model.FeeRecord{}, ledger.Invalid(op, "missing required field: pool_id")
	}
	if strings.TrimSpace(wallet) == "" {
		return model.FeeRecord{}, ledger.Invalid(op, "missing required field: user_wallet")
	}

	record, err := f.store.FindFeeRecord(ctx, poolID, wallet)
	if err != nil {
		if ledger.IsNotFound(err) {
			return model.FeeRecord{}, ledger.NotFound(op, "no unclaimed fees found")
		}
		return model.FeeRecord{}, ledger.Upstream(op, err)
	}

	claimedA, claimedB := record.UnclaimedFeeA, record.UnclaimedFeeB
	now := f.now()
	record.UnclaimedFeeA = decimal.Zero
	record.UnclaimedFeeB = decimal.Zero
	record.LastClaimedAt = &now

	updated, err := f.store.UpdateFeeRecord(ctx, record)
	if err != nil {
		return model.FeeRecord{}, ledger.Upstream(op, err)
	}

	f.logger.Info("fees claimed",
		zap.String("pool_id", poolID),
		zap.String("wallet", wallet),
		zap.String("fee_a", claimedA.String()),
		zap.String("fee_b", claimedB.String()),
	)
	return updated, nil
}

// FeeCredits distributes a swap's fee over the pool's positions, booking each
// share on the side the fee was charged in.
func FeeCredits(pool model.Pool, positions []model.LiquidityPosition, tokenInID string, fee decimal.Decimal) []model.FeeCredit {
	shares := DistributeFee(positions, fee)
	credits := make([]model.FeeCredit, 0, len(shares))
	for _, share := range shares {
		credit := model.FeeCredit{UserWallet: share.Wallet, FeeA: share.Amount, FeeB: decimal.Zero}
		if tokenInID == pool.TokenBID {
			credit.FeeA, credit.FeeB = decimal.Zero, share.Amount
		}
		credits = append(credits, credit)
	}
	return credits
}
