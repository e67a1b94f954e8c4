package postgres

import (
	"context"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const positionColumns = `id, user_wallet, pool_id, amount_token_a::text, amount_token_b::text, lp_tokens::text,
	position_mint, version, created_at, updated_at`

func scanPosition(row rowScanner) (model.LiquidityPosition, error) {
	var p model.LiquidityPosition
	var amountA, amountB, lp string
	if err := row.Scan(&p.ID, &p.UserWallet, &p.PoolID, &amountA, &amountB, &lp,
		&p.PositionMint, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.LiquidityPosition{}, err
	}
	var err error
	if p.AmountTokenA, err = parseDecimal("amount_token_a", amountA); err != nil {
		return model.LiquidityPosition{}, err
	}
	if p.AmountTokenB, err = parseDecimal("amount_token_b", amountB); err != nil {
		return model.LiquidityPosition{}, err
	}
	if p.LPTokens, err = parseDecimal("lp_tokens", lp); err != nil {
		return model.LiquidityPosition{}, err
	}
	return p, nil
}

func (s *Store) listPositions(ctx context.Context, op, where string, arg string) ([]model.LiquidityPosition, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+positionColumns+` FROM liquidity_positions WHERE `+where+` = $1 ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	defer rows.Close()

	positions := make([]model.LiquidityPosition, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, ledger.Upstream(op, err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return positions, nil
}

func (s *Store) CreatePosition(ctx context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO liquidity_positions (id, user_wallet, pool_id, amount_token_a, amount_token_b, lp_tokens, position_mint, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		RETURNING `+positionColumns,
		newID(position.ID), position.UserWallet, position.PoolID,
		position.AmountTokenA.String(), position.AmountTokenB.String(), position.LPTokens.String(), position.PositionMint,
	)
	created, err := scanPosition(row)
	if err != nil {
		return model.LiquidityPosition{}, mapError("positions.create", err, "")
	}
	return created, nil
}

func (s *Store) GetPosition(ctx context.Context, id string) (model.LiquidityPosition, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM liquidity_positions WHERE id = $1`, id))
	if err != nil {
		return model.LiquidityPosition{}, mapError("positions.get", err, "liquidity position "+id+" not found")
	}
	return p, nil
}

func (s *Store) FindPosition(ctx context.Context, wallet, poolID string) (model.LiquidityPosition, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, `
		SELECT `+positionColumns+` FROM liquidity_positions
		WHERE user_wallet = $1 AND pool_id = $2
		ORDER BY created_at, id
		LIMIT 1
	`, wallet, poolID))
	if err != nil {
		return model.LiquidityPosition{}, mapError("positions.find", err, "no position for wallet "+wallet+" in pool "+poolID)
	}
	return p, nil
}

func (s *Store) ListPositionsByWallet(ctx context.Context, wallet string) ([]model.LiquidityPosition, error) {
	return s.listPositions(ctx, "positions.list_by_wallet", "user_wallet", wallet)
}

func (s *Store) ListPositionsByPool(ctx context.Context, poolID string) ([]model.LiquidityPosition, error) {
	return s.listPositions(ctx, "positions.list_by_pool", "pool_id", poolID)
}

func (s *Store) UpdatePosition(ctx context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error) {
	const op = "positions.update"
	row := s.pool.QueryRow(ctx, `
		UPDATE liquidity_positions SET
			amount_token_a = $3,
			amount_token_b = $4,
			lp_tokens = $5,
			position_mint = CASE WHEN $6::text = '' THEN position_mint ELSE $6::text END,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+positionColumns,
		position.ID, position.Version,
		position.AmountTokenA.String(), position.AmountTokenB.String(), position.LPTokens.String(), position.PositionMint,
	)
	updated, err := scanPosition(row)
	if err != nil {
		if ledger.IsNotFound(mapError(op, err, "")) {
			return model.LiquidityPosition{}, versionMiss(ctx, s.pool, op, "liquidity_positions", "position", position.ID)
		}
		return model.LiquidityPosition{}, mapError(op, err, "")
	}
	return updated, nil
}

func (s *Store) DeletePosition(ctx context.Context, id string, version int64) error {
	const op = "positions.delete"
	tag, err := s.pool.Exec(ctx, `DELETE FROM liquidity_positions WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return mapError(op, err, "")
	}
	if tag.RowsAffected() == 0 {
		return versionMiss(ctx, s.pool, op, "liquidity_positions", "position", id)
	}
	return nil
}
