package service

import (
	"context"

	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
)

type ClaimFeesRequest struct {
	PoolID       string
	Wallet       string
	ClientOrigin string
}

type ClaimFeesResult struct {
	Fees model.FeeRecord `json:"fees"`
	Tx   []byte          `json:"-"`
}

// ClaimFees zeroes the wallet's unclaimed balances in a pool. Interactive
// clients also get a collect transaction for the wallet's on-chain position.
func (s *Service) ClaimFees(ctx context.Context, req ClaimFeesRequest) (ClaimFeesResult, error) {
	const op = "fees.claim"
	if err := required(op, "user_wallet", req.Wallet); err != nil {
		return ClaimFeesResult{}, err
	}
	if err := required(op, "pool_id", req.PoolID); err != nil {
		return ClaimFeesResult{}, err
	}

	var tx []byte
	if interactive(req.ClientOrigin) {
		receipt, err := s.collectFees(ctx, op, req.PoolID, req.Wallet)
		if err != nil {
			return ClaimFeesResult{}, err
		}
		tx = receipt.TxHandle
	}

	record, err := s.fees.ClaimFees(ctx, req.PoolID, req.Wallet)
	if err != nil {
		return ClaimFeesResult{}, err
	}
	return ClaimFeesResult{Fees: record, Tx: tx}, nil
}

func (s *Service) collectFees(ctx context.Context, op, poolID, wallet string) (settlement.Receipt, error) {
	adapter, err := s.adapter(op)
	if err != nil {
		return settlement.Receipt{}, err
	}
	collector, ok := adapter.(settlement.FeeCollector)
	if !ok {
		return settlement.Receipt{}, unavailable(op, "fee collection")
	}
	if _, err := s.store.FindFeeRecord(ctx, poolID, wallet); err != nil {
		if ledger.IsNotFound(err) {
			return settlement.Receipt{}, ledger.NotFound(op, "no unclaimed fees found")
		}
		return settlement.Receipt{}, ledger.Upstream(op, err)
	}
	position, err := s.store.FindPosition(ctx, wallet, poolID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return settlement.Receipt{}, ledger.Invalid(op, "wallet has no position in pool %s", poolID)
		}
		return settlement.Receipt{}, ledger.Upstream(op, err)
	}
	market, err := s.market(ctx, op, poolID)
	if err != nil {
		return settlement.Receipt{}, err
	}
	receipt, err := collector.SubmitFeeCollection(ctx, market, wallet, position.PositionMint)
	if err != nil {
		return settlement.Receipt{}, ledger.Upstream(op, err)
	}
	return receipt, nil
}

// ListFeesForWallet returns the wallet's claimable fee records joined to
// their pools and tokens. Records with nothing to claim are left out.
func (s *Service) ListFeesForWallet(ctx context.Context, wallet string) ([]model.Enriched[model.FeeRecord], error) {
	const op = "fees.list_by_wallet"
	if err := required(op, "wallet", wallet); err != nil {
		return nil, err
	}
	records, err := s.store.ListFeeRecordsByWallet(ctx, wallet)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	claimable := records[:0]
	for _, r := range records {
		if r.HasUnclaimed() {
			claimable = append(claimable, r)
		}
	}
	views, err := enrich.Enrich(ctx, s.enricher, claimable)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return views, nil
}
