package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const swapColumns = `id, pool_id, user_wallet, token_in_id, token_out_id, amount_in::text, amount_out::text, tx_hash, "timestamp"`

func scanSwap(row rowScanner) (model.Swap, error) {
	var sw model.Swap
	var amountIn, amountOut string
	if err := row.Scan(&sw.ID, &sw.PoolID, &sw.UserWallet, &sw.TokenInID, &sw.TokenOutID, &amountIn, &amountOut, &sw.TxHash, &sw.Timestamp); err != nil {
		return model.Swap{}, err
	}
	var err error
	if sw.AmountIn, err = parseDecimal("amount_in", amountIn); err != nil {
		return model.Swap{}, err
	}
	if sw.AmountOut, err = parseDecimal("amount_out", amountOut); err != nil {
		return model.Swap{}, err
	}
	return sw, nil
}

func (s *Store) querySwaps(ctx context.Context, op, sql string, args ...any) ([]model.Swap, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	defer rows.Close()

	swaps := make([]model.Swap, 0)
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, ledger.Upstream(op, err)
		}
		swaps = append(swaps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return swaps, nil
}

const insertSwapSQL = `
	INSERT INTO swaps (id, pool_id, user_wallet, token_in_id, token_out_id, amount_in, amount_out, tx_hash, "timestamp")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + swapColumns

func insertSwap(ctx context.Context, q querier, swap model.Swap) (model.Swap, error) {
	ts := swap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return scanSwap(q.QueryRow(ctx, insertSwapSQL,
		newID(swap.ID), swap.PoolID, swap.UserWallet, swap.TokenInID, swap.TokenOutID,
		swap.AmountIn.String(), swap.AmountOut.String(), swap.TxHash, ts,
	))
}

func (s *Store) CreateSwap(ctx context.Context, swap model.Swap) (model.Swap, error) {
	created, err := insertSwap(ctx, s.pool, swap)
	if err != nil {
		return model.Swap{}, mapError("swaps.create", err, "")
	}
	return created, nil
}

// RecordSwap runs the fee upserts and the swap insert in one transaction. The
// swap goes in last, so a replayed tx hash aborts the credits with it.
func (s *Store) RecordSwap(ctx context.Context, swap model.Swap, credits []model.FeeCredit) (model.Swap, error) {
	const op = "swaps.record"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Swap{}, ledger.Upstream(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, c := range credits {
		if _, err := scanFee(tx.QueryRow(ctx, accrueFeesSQL,
			uuid.NewString(), swap.PoolID, c.UserWallet, c.FeeA.String(), c.FeeB.String(),
		)); err != nil {
			return model.Swap{}, mapError(op, err, "")
		}
	}
	created, err := insertSwap(ctx, tx, swap)
	if err != nil {
		return model.Swap{}, mapError(op, err, "")
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Swap{}, ledger.Upstream(op, err)
	}
	committed = true
	return created, nil
}

func (s *Store) GetSwapByTxHash(ctx context.Context, txHash string) (model.Swap, error) {
	sw, err := scanSwap(s.pool.QueryRow(ctx, `SELECT `+swapColumns+` FROM swaps WHERE tx_hash = $1`, txHash))
	if err != nil {
		return model.Swap{}, mapError("swaps.get_by_tx", err, "swap "+txHash+" not found")
	}
	return sw, nil
}

func (s *Store) ListSwapsByPool(ctx context.Context, poolID string) ([]model.Swap, error) {
	return s.querySwaps(ctx, "swaps.list_by_pool",
		`SELECT `+swapColumns+` FROM swaps WHERE pool_id = $1 ORDER BY "timestamp", id`, poolID)
}

func (s *Store) ListSwapsByWallet(ctx context.Context, wallet string) ([]model.Swap, error) {
	return s.querySwaps(ctx, "swaps.list_by_wallet",
		`SELECT `+swapColumns+` FROM swaps WHERE user_wallet = $1 ORDER BY "timestamp", id`, wallet)
}

func (s *Store) ListSwapsBetween(ctx context.Context, poolID string, from, to time.Time) ([]model.Swap, error) {
	return s.querySwaps(ctx, "swaps.list_between",
		`SELECT `+swapColumns+` FROM swaps WHERE pool_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 ORDER BY "timestamp", id`,
		poolID, from, to)
}
