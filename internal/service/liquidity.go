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

type RemoveLiquidityRequest struct {
	PositionID   string
	LPAmount     decimal.Decimal
	ClientOrigin string
}

// RemoveLiquidityResult reports the withdrawal. Position is the stored
// position, or the position as it was before deletion when Closed is set.
type RemoveLiquidityResult struct {
	Position       model.LiquidityPosition `json:"position"`
	Closed         bool                    `json:"closed"`
	OverWithdrawal bool                    `json:"over_withdrawal,omitempty"`
	WithdrawnA     decimal.Decimal         `json:"withdrawn_token_a"`
	WithdrawnB     decimal.Decimal         `json:"withdrawn_token_b"`
	Tx             []byte                  `json:"-"`
}

// RemoveLiquidity withdraws LP tokens from a position, deleting it when the
// request covers the whole balance. Interactive clients get the settlement
// transaction, which is built before the ledger is written so a settlement
// failure leaves the position untouched. The transaction and the ledger write
// come from the same read of the position; the write fails with a conflict if
// the position changed in between.
func (s *Service) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (RemoveLiquidityResult, error) {
	const op = "liquidity.remove"
	if err := required(op, "id", req.PositionID); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if !req.LPAmount.IsPositive() {
		return RemoveLiquidityResult{}, ledger.Invalid(op, "amount must be greater than zero")
	}

	if !interactive(req.ClientOrigin) {
		removal, err := s.liquidity.RemoveLiquidity(ctx, req.PositionID, req.LPAmount)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}
		return removalResult(removal, nil), nil
	}

	adapter, err := s.adapter(op)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	position, err := s.store.GetPosition(ctx, req.PositionID)
	if err != nil {
		return RemoveLiquidityResult{}, ledger.Upstream(op, err)
	}
	w, err := accounting.ComputeWithdrawal(position, req.LPAmount)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	market, err := s.market(ctx, op, position.PoolID)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	lp, share := req.LPAmount, w.Fraction
	if w.FullClosure {
		lp, share = position.LPTokens, decimal.NewFromInt(1)
	}
	receipt, err := adapter.SubmitLiquidityChange(ctx, market, position.UserWallet, settlement.LiquidityChange{
		Remove:       true,
		AmountA:      w.WithdrawnA,
		AmountB:      w.WithdrawnB,
		LPTokens:     lp,
		Share:        share,
		PositionMint: position.PositionMint,
	}, settlement.PriceRange{})
	if err != nil {
		return RemoveLiquidityResult{}, ledger.Upstream(op, err)
	}

	removal, err := s.liquidity.RemoveFrom(ctx, position, req.LPAmount)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	return removalResult(removal, receipt.TxHandle), nil
}

func removalResult(removal accounting.RemovalResult, tx []byte) RemoveLiquidityResult {
	return RemoveLiquidityResult{
		Position:       removal.Position,
		Closed:         removal.Withdrawal.FullClosure,
		OverWithdrawal: removal.Withdrawal.OverWithdrawal,
		WithdrawnA:     removal.Withdrawal.WithdrawnA,
		WithdrawnB:     removal.Withdrawal.WithdrawnB,
		Tx:             tx,
	}
}

// AddLiquidityRequest supplies liquidity. TickLower and TickUpper bound the
// on-chain position for interactive clients; both zero means the full range.
// PositionMint is the token id of an on-chain position the deposit went into,
// when the client already knows it.
type AddLiquidityRequest struct {
	Wallet       string
	PoolID       string
	AmountA      decimal.Decimal
	AmountB      decimal.Decimal
	LPTokens     decimal.Decimal
	TickLower    int32
	TickUpper    int32
	PositionMint string
	ClientOrigin string
}

type AddLiquidityResult struct {
	Position model.LiquidityPosition `json:"position"`
	Created  bool                    `json:"created"`
	Tx       []byte                  `json:"-"`
}

// AddLiquidity folds a deposit into the wallet's position in the pool.
// Interactive clients get a mint transaction for a new position, or an
// increase against the token id the position is bound to. A fresh mint leaves
// the position unbound until ConfirmPositionMint reports its token id.
func (s *Service) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (AddLiquidityResult, error) {
	const op = "liquidity.add"
	if err := required(op, "user_wallet", req.Wallet); err != nil {
		return AddLiquidityResult{}, err
	}
	if err := required(op, "pool_id", req.PoolID); err != nil {
		return AddLiquidityResult{}, err
	}
	deposit := accounting.Deposit{AmountA: req.AmountA, AmountB: req.AmountB, LPTokens: req.LPTokens}
	if err := deposit.Validate(); err != nil {
		return AddLiquidityResult{}, err
	}
	if strings.TrimSpace(req.PositionMint) != "" {
		tokenID, err := settlement.ParseTokenID(op, req.PositionMint)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		deposit.PositionMint = tokenID.String()
	}
	if _, err := s.store.GetPool(ctx, req.PoolID); err != nil {
		if ledger.IsNotFound(err) {
			return AddLiquidityResult{}, ledger.NotFound(op, "pool not found")
		}
		return AddLiquidityResult{}, ledger.Upstream(op, err)
	}

	var tx []byte
	if interactive(req.ClientOrigin) {
		adapter, err := s.adapter(op)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		market, err := s.market(ctx, op, req.PoolID)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		target, err := s.depositTarget(ctx, op, req.Wallet, req.PoolID, deposit.PositionMint)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		receipt, err := adapter.SubmitLiquidityChange(ctx, market, req.Wallet, settlement.LiquidityChange{
			AmountA:      req.AmountA,
			AmountB:      req.AmountB,
			LPTokens:     req.LPTokens,
			PositionMint: target,
		}, settlement.PriceRange{TickLower: req.TickLower, TickUpper: req.TickUpper})
		if err != nil {
			return AddLiquidityResult{}, ledger.Upstream(op, err)
		}
		tx = receipt.TxHandle
		if receipt.PositionMint != "" {
			deposit.PositionMint = receipt.PositionMint
		}
	}

	position, created, err := s.liquidity.AddLiquidity(ctx, req.Wallet, req.PoolID, deposit)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	return AddLiquidityResult{Position: position, Created: created, Tx: tx}, nil
}

// depositTarget picks the on-chain position an interactive deposit goes into.
// An empty result means a new position is minted. A ledger position without a
// bound token id cannot take more liquidity on chain until its mint is
// confirmed.
func (s *Service) depositTarget(ctx context.Context, op, wallet, poolID, reported string) (string, error) {
	existing, err := s.store.FindPosition(ctx, wallet, poolID)
	switch {
	case ledger.IsNotFound(err):
		return reported, nil
	case err != nil:
		return "", ledger.Upstream(op, err)
	}
	switch {
	case existing.PositionMint == "" && reported == "":
		return "", ledger.Invalid(op, "position %s has no confirmed token id; confirm its mint first", existing.ID)
	case existing.PositionMint == "":
		return reported, nil
	case reported != "" && reported != existing.PositionMint:
		return "", ledger.Conflict(op, "position is bound to token id %s", existing.PositionMint)
	}
	return existing.PositionMint, nil
}

type ConfirmPositionMintRequest struct {
	PositionID   string
	PositionMint string
}

// ConfirmPositionMint binds a position to the token id its mint transaction
// produced. Withdrawals, fee collection and further interactive deposits act
// on that token id.
func (s *Service) ConfirmPositionMint(ctx context.Context, req ConfirmPositionMintRequest) (model.LiquidityPosition, error) {
	const op = "liquidity.confirm_mint"
	if err := required(op, "id", req.PositionID); err != nil {
		return model.LiquidityPosition{}, err
	}
	if err := required(op, "position_mint", req.PositionMint); err != nil {
		return model.LiquidityPosition{}, err
	}
	tokenID, err := settlement.ParseTokenID(op, req.PositionMint)
	if err != nil {
		return model.LiquidityPosition{}, err
	}
	return s.liquidity.BindMint(ctx, strings.TrimSpace(req.PositionID), tokenID.String())
}

// ListPositionsForWallet returns the wallet's positions joined to their pools
// and tokens.
func (s *Service) ListPositionsForWallet(ctx context.Context, wallet string) ([]model.Enriched[model.LiquidityPosition], error) {
	const op = "liquidity.list_by_wallet"
	if err := required(op, "wallet", wallet); err != nil {
		return nil, err
	}
	positions, err := s.store.ListPositionsByWallet(ctx, wallet)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	views, err := enrich.Enrich(ctx, s.enricher, positions)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	s.logger.Debug("positions listed", zap.String("wallet", wallet), zap.Int("count", len(views)))
	return views, nil
}
