package postgres

import (
	"context"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const poolColumns = `id, pool_address, token_a_id, token_b_id, token_a_mint_address, token_b_mint_address, lp_mint,
	liquidity::text, volume_24h::text, fees_24h::text, apr_24h::text, tick_spacing, fee_rate, created_at, updated_at`

func scanPool(row rowScanner) (model.Pool, error) {
	var p model.Pool
	var liquidity, volume, fees, apr string
	var feeRate int64
	if err := row.Scan(&p.ID, &p.PoolAddress, &p.TokenAID, &p.TokenBID, &p.TokenAMint, &p.TokenBMint, &p.LPMint,
		&liquidity, &volume, &fees, &apr, &p.TickSpacing, &feeRate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Pool{}, err
	}
	var err error
	if p.Liquidity, err = parseDecimal("liquidity", liquidity); err != nil {
		return model.Pool{}, err
	}
	if p.Volume24h, err = parseDecimal("volume_24h", volume); err != nil {
		return model.Pool{}, err
	}
	if p.Fees24h, err = parseDecimal("fees_24h", fees); err != nil {
		return model.Pool{}, err
	}
	if p.APR24h, err = parseDecimal("apr_24h", apr); err != nil {
		return model.Pool{}, err
	}
	p.FeeRate = uint32(feeRate)
	return p, nil
}

func (s *Store) CreatePool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pools (
			id, pool_address, token_a_id, token_b_id, token_a_mint_address, token_b_mint_address, lp_mint,
			liquidity, tick_spacing, fee_rate
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+poolColumns,
		newID(pool.ID), pool.PoolAddress, pool.TokenAID, pool.TokenBID, pool.TokenAMint, pool.TokenBMint, pool.LPMint,
		pool.Liquidity.String(), pool.TickSpacing, int64(pool.FeeRate),
	)
	created, err := scanPool(row)
	if err != nil {
		return model.Pool{}, mapError("pools.create", err, "")
	}
	return created, nil
}

func (s *Store) GetPool(ctx context.Context, id string) (model.Pool, error) {
	pool, err := scanPool(s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
	if err != nil {
		return model.Pool{}, mapError("pools.get", err, "pool "+id+" not found")
	}
	return pool, nil
}

func (s *Store) GetPoolByAddress(ctx context.Context, address string) (model.Pool, error) {
	pool, err := scanPool(s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE pool_address = $1`, address))
	if err != nil {
		return model.Pool{}, mapError("pools.get_by_address", err, "pool with address "+address+" not found")
	}
	return pool, nil
}

func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY created_at, id`)
	if err != nil {
		return nil, ledger.Upstream("pools.list", err)
	}
	defer rows.Close()

	pools := make([]model.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, ledger.Upstream("pools.list", err)
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream("pools.list", err)
	}
	return pools, nil
}

func (s *Store) UpdatePoolMetrics(ctx context.Context, metrics model.PoolMetrics) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pools SET
			volume_24h = $2,
			fees_24h = $3,
			apr_24h = $4,
			liquidity = $5,
			updated_at = now()
		WHERE id = $1
	`, metrics.PoolID, metrics.Volume.String(), metrics.Fees.String(), metrics.APR.String(), metrics.TVL.String())
	if err != nil {
		return mapError("pools.update_metrics", err, "")
	}
	if tag.RowsAffected() == 0 {
		return ledger.NotFound("pools.update_metrics", "pool %s not found", metrics.PoolID)
	}
	return nil
}
