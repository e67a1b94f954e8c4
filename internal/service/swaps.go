package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
)

// RecordSwapRequest describes an executed trade. MinOutput bounds the
// interactive client's transaction; zero means AmountOut.
type RecordSwapRequest struct {
	PoolID       string
	Wallet       string
	TokenInID    string
	TokenOutID   string
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	MinOutput    decimal.Decimal
	TxHash       string
	ClientOrigin string
}

type RecordSwapResult struct {
	Swap model.Swap      `json:"swap"`
	Fee  decimal.Decimal `json:"fee"`
	Tx   []byte          `json:"-"`
}

// RecordSwap appends a trade to the swap log and credits its fee to the
// pool's liquidity providers pro rata to their LP tokens.
func (s *Service) RecordSwap(ctx context.Context, req RecordSwapRequest) (RecordSwapResult, error) {
	const op = "swaps.record"
	fields := []struct{ name, value string }{
		{"pool_id", req.PoolID},
		{"user_wallet", req.Wallet},
		{"token_in_id", req.TokenInID},
		{"token_out_id", req.TokenOutID},
		{"tx_hash", req.TxHash},
	}
	for _, f := range fields {
		if err := required(op, f.name, f.value); err != nil {
			return RecordSwapResult{}, err
		}
	}
	if !req.AmountIn.IsPositive() {
		return RecordSwapResult{}, ledger.Invalid(op, "amount_in must be greater than zero")
	}
	if !req.AmountOut.IsPositive() {
		return RecordSwapResult{}, ledger.Invalid(op, "amount_out must be greater than zero")
	}
	if req.MinOutput.IsNegative() {
		return RecordSwapResult{}, ledger.Invalid(op, "min_output must not be negative")
	}
	if req.TokenInID == req.TokenOutID {
		return RecordSwapResult{}, ledger.Invalid(op, "token_in_id and token_out_id must differ")
	}

	pool, err := s.store.GetPool(ctx, req.PoolID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return RecordSwapResult{}, ledger.NotFound(op, "pool not found")
		}
		return RecordSwapResult{}, ledger.Upstream(op, err)
	}
	for _, ref := range []struct{ label, id string }{{"input", req.TokenInID}, {"output", req.TokenOutID}} {
		if _, err := s.store.GetToken(ctx, ref.id); err != nil {
			if ledger.IsNotFound(err) {
				return RecordSwapResult{}, ledger.NotFound(op, "%s token not found", ref.label)
			}
			return RecordSwapResult{}, ledger.Upstream(op, err)
		}
		if !pool.HasToken(ref.id) {
			return RecordSwapResult{}, ledger.Invalid(op, "%s token is not part of pool %s", ref.label, pool.ID)
		}
	}
	txHash := strings.TrimSpace(req.TxHash)
	switch _, err := s.store.GetSwapByTxHash(ctx, txHash); {
	case err == nil:
		return RecordSwapResult{}, ledger.Conflict(op, "transaction already processed")
	case !ledger.IsNotFound(err):
		return RecordSwapResult{}, ledger.Upstream(op, err)
	}

	var tx []byte
	if interactive(req.ClientOrigin) {
		adapter, err := s.adapter(op)
		if err != nil {
			return RecordSwapResult{}, err
		}
		market, err := s.market(ctx, op, pool.ID)
		if err != nil {
			return RecordSwapResult{}, err
		}
		direction := settlement.AToB
		if req.TokenInID == pool.TokenBID {
			direction = settlement.BToA
		}
		minOutput := req.MinOutput
		if minOutput.IsZero() {
			minOutput = req.AmountOut
		}
		receipt, err := adapter.SubmitSwap(ctx, market, req.Wallet, req.AmountIn, direction, minOutput)
		if err != nil {
			return RecordSwapResult{}, ledger.Upstream(op, err)
		}
		tx = receipt.TxHandle
	}

	fee := accounting.SwapFee(req.AmountIn, pool.FeeRate)
	var credits []model.FeeCredit
	if fee.IsPositive() {
		positions, err := s.store.ListPositionsByPool(ctx, pool.ID)
		if err != nil {
			return RecordSwapResult{}, ledger.Upstream(op, err)
		}
		credits = accounting.FeeCredits(pool, positions, req.TokenInID, fee)
	}

	swap, err := s.store.RecordSwap(ctx, model.Swap{
		PoolID:     pool.ID,
		UserWallet: req.Wallet,
		TokenInID:  req.TokenInID,
		TokenOutID: req.TokenOutID,
		AmountIn:   req.AmountIn,
		AmountOut:  req.AmountOut,
		TxHash:     txHash,
		Timestamp:  s.now(),
	}, credits)
	if err != nil {
		return RecordSwapResult{}, ledger.Upstream(op, err)
	}

	s.logger.Info("swap recorded",
		zap.String("swap_id", swap.ID),
		zap.String("pool_id", pool.ID),
		zap.String("wallet", swap.UserWallet),
		zap.String("fee", fee.String()),
		zap.Int("credited_wallets", len(credits)),
	)
	return RecordSwapResult{Swap: swap, Fee: fee, Tx: tx}, nil
}

// ListSwapsForPool fails with NotFound when the pool does not exist.
func (s *Service) ListSwapsForPool(ctx context.Context, poolID string) ([]model.Enriched[model.Swap], error) {
	const op = "swaps.list_by_pool"
	if err := required(op, "pool_id", poolID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		if ledger.IsNotFound(err) {
			return nil, ledger.NotFound(op, "pool not found")
		}
		return nil, ledger.Upstream(op, err)
	}
	swaps, err := s.store.ListSwapsByPool(ctx, poolID)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return s.enrichSwaps(ctx, op, swaps)
}

func (s *Service) ListSwapsForWallet(ctx context.Context, wallet string) ([]model.Enriched[model.Swap], error) {
	const op = "swaps.list_by_wallet"
	if err := required(op, "wallet", wallet); err != nil {
		return nil, err
	}
	swaps, err := s.store.ListSwapsByWallet(ctx, wallet)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return s.enrichSwaps(ctx, op, swaps)
}

func (s *Service) enrichSwaps(ctx context.Context, op string, swaps []model.Swap) ([]model.Enriched[model.Swap], error) {
	views, err := enrich.Enrich(ctx, s.enricher, swaps)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return views, nil
}
