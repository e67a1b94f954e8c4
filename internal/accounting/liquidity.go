package accounting

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

// RemovalResult is what RemoveLiquidity wrote to the store.
type RemovalResult struct {
	Withdrawal Withdrawal
	// Position is the stored position after the update, or the position as it
	// was before deletion when Withdrawal.FullClosure is set.
	Position model.LiquidityPosition
}

// Liquidity applies deposits and withdrawals to stored positions. Every write
// is conditioned on the version that was read, so two concurrent requests
// against one position cannot both spend the same LP balance.
type Liquidity struct {
	store  storage.PositionStore
	logger *zap.Logger
}

func NewLiquidity(store storage.PositionStore, logger *zap.Logger) *Liquidity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Liquidity{store: store, logger: logger}
}

// RemoveLiquidity withdraws lpAmount from the position. It makes exactly one
// write: a delete on full closure, an update otherwise.
func (l *Liquidity) RemoveLiquidity(ctx context.Context, positionID string, lpAmount decimal.Decimal) (RemovalResult, error) {
	const op = "liquidity.remove"
	if strings.TrimSpace(positionID) == "" {
		return RemovalResult{}, ledger.Invalid(op, "missing required field: id")
	}
	if !lpAmount.IsPositive() {
		return RemovalResult{}, &ledger.Error{Kind: ledger.KindInvalidInput, Op: op, Message: "lp amount must be greater than zero", Err: ErrInvalidAmount}
	}

	position, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return RemovalResult{}, ledger.Upstream(op, err)
	}
	return l.RemoveFrom(ctx, position, lpAmount)
}

// RemoveFrom withdraws lpAmount from a position the caller already read. The
// write is conditioned on position.Version, so it fails with a conflict when
// the stored position moved on since that read.
func (l *Liquidity) RemoveFrom(ctx context.Context, position model.LiquidityPosition, lpAmount decimal.Decimal) (RemovalResult, error) {
	const op = "liquidity.remove"
	w, err := ComputeWithdrawal(position, lpAmount)
	if err != nil {
		return RemovalResult{}, err
	}

	if w.FullClosure {
		if err := l.store.DeletePosition(ctx, position.ID, position.Version); err != nil {
			return RemovalResult{}, ledger.Upstream(op, err)
		}
		l.logger.Info("position closed",
			zap.String("position_id", position.ID),
			zap.String("pool_id", position.PoolID),
			zap.String("wallet", position.UserWallet),
			zap.Bool("over_withdrawal", w.OverWithdrawal),
		)
		return RemovalResult{Withdrawal: w, Position: position}, nil
	}

	updated, err := l.store.UpdatePosition(ctx, w.Apply(position))
	if err != nil {
		return RemovalResult{}, ledger.Upstream(op, err)
	}
	l.logger.Info("position reduced",
		zap.String("position_id", updated.ID),
		zap.String("pool_id", updated.PoolID),
		zap.String("lp_tokens", updated.LPTokens.String()),
	)
	return RemovalResult{Withdrawal: w, Position: updated}, nil
}

// AddLiquidity folds d into the wallet's position in poolID, creating the
// position when the wallet has none.
func (l *Liquidity) AddLiquidity(ctx context.Context, wallet, poolID string, d Deposit) (model.LiquidityPosition, bool, error) {
	const op = "liquidity.add"
	if strings.TrimSpace(wallet) == "" {
		return model.LiquidityPosition{}, false, ledger.Invalid(op, "missing required field: user_wallet")
	}
	if strings.TrimSpace(poolID) == "" {
		return model.LiquidityPosition{}, false, ledger.Invalid(op, "missing required field: pool_id")
	}
	if err := d.Validate(); err != nil {
		return model.LiquidityPosition{}, false, err
	}

	existing, err := l.store.FindPosition(ctx, wallet, poolID)
	switch {
	case err == nil:
		return l.merge(ctx, op, existing, d)
	case ledger.IsNotFound(err):
	default:
		return model.LiquidityPosition{}, false, ledger.Upstream(op, err)
	}

	created, err := l.store.CreatePosition(ctx, model.LiquidityPosition{
		UserWallet:   wallet,
		PoolID:       poolID,
		AmountTokenA: d.AmountA,
		AmountTokenB: d.AmountB,
		LPTokens:     d.LPTokens,
		PositionMint: d.PositionMint,
	})
	if ledger.IsConflict(err) {
		// Another deposit opened the position between the lookup and the
		// insert. The store keeps one position per wallet and pool.
		existing, findErr := l.store.FindPosition(ctx, wallet, poolID)
		if findErr != nil {
			return model.LiquidityPosition{}, false, ledger.Upstream(op, findErr)
		}
		l.logger.Debug("concurrent open, merging deposit", zap.String("position_id", existing.ID))
		return l.merge(ctx, op, existing, d)
	}
	if err != nil {
		return model.LiquidityPosition{}, false, ledger.Upstream(op, err)
	}
	l.logger.Info("position opened", zap.String("position_id", created.ID), zap.String("pool_id", poolID), zap.String("wallet", wallet))
	return created, true, nil
}

func (l *Liquidity) merge(ctx context.Context, op string, existing model.LiquidityPosition, d Deposit) (model.LiquidityPosition, bool, error) {
	merged, err := ApplyDeposit(existing, d)
	if err != nil {
		return model.LiquidityPosition{}, false, err
	}
	updated, err := l.store.UpdatePosition(ctx, merged)
	if err != nil {
		return model.LiquidityPosition{}, false, ledger.Upstream(op, err)
	}
	l.logger.Info("position increased", zap.String("position_id", updated.ID), zap.String("lp_tokens", updated.LPTokens.String()))
	return updated, false, nil
}

// BindMint records the on-chain token id of a position once its mint has
// executed. Binding the id a position already carries is a no-op.
func (l *Liquidity) BindMint(ctx context.Context, positionID, tokenID string) (model.LiquidityPosition, error) {
	const op = "liquidity.bind_mint"
	position, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return model.LiquidityPosition{}, ledger.Upstream(op, err)
	}
	switch position.PositionMint {
	case tokenID:
		return position, nil
	case "":
	default:
		return model.LiquidityPosition{}, ledger.Conflict(op, "position is bound to token id %s", position.PositionMint)
	}
	position.PositionMint = tokenID
	updated, err := l.store.UpdatePosition(ctx, position)
	if err != nil {
		return model.LiquidityPosition{}, ledger.Upstream(op, err)
	}
	l.logger.Info("position mint bound", zap.String("position_id", updated.ID), zap.String("token_id", tokenID))
	return updated, nil
}
