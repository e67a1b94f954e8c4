package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const feeColumns = `id, pool_id, user_wallet, unclaimed_fee_a::text, unclaimed_fee_b::text, last_claimed_at, version`

func scanFee(row rowScanner) (model.FeeRecord, error) {
	var f model.FeeRecord
	var feeA, feeB string
	if err := row.Scan(&f.ID, &f.PoolID, &f.UserWallet, &feeA, &feeB, &f.LastClaimedAt, &f.Version); err != nil {
		return model.FeeRecord{}, err
	}
	var err error
	if f.UnclaimedFeeA, err = parseDecimal("unclaimed_fee_a", feeA); err != nil {
		return model.FeeRecord{}, err
	}
	if f.UnclaimedFeeB, err = parseDecimal("unclaimed_fee_b", feeB); err != nil {
		return model.FeeRecord{}, err
	}
	return f, nil
}

func (s *Store) FindFeeRecord(ctx context.Context, poolID, wallet string) (model.FeeRecord, error) {
	f, err := scanFee(s.pool.QueryRow(ctx, `SELECT `+feeColumns+` FROM fees WHERE pool_id = $1 AND user_wallet = $2`, poolID, wallet))
	if err != nil {
		return model.FeeRecord{}, mapError("fees.find", err, "no fee record for wallet "+wallet+" in pool "+poolID)
	}
	return f, nil
}

func (s *Store) ListFeeRecordsByWallet(ctx context.Context, wallet string) ([]model.FeeRecord, error) {
	const op = "fees.list_by_wallet"
	rows, err := s.pool.Query(ctx, `SELECT `+feeColumns+` FROM fees WHERE user_wallet = $1 ORDER BY created_at, id`, wallet)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	defer rows.Close()

	records := make([]model.FeeRecord, 0)
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, ledger.Upstream(op, err)
		}
		records = append(records, f)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return records, nil
}

// accrueFeesSQL upserts the (pool, wallet) record and adds to its balances in
// a single statement.
const accrueFeesSQL = `
	INSERT INTO fees (id, pool_id, user_wallet, unclaimed_fee_a, unclaimed_fee_b, version)
	VALUES ($1, $2, $3, $4, $5, 1)
	ON CONFLICT (pool_id, user_wallet) DO UPDATE SET
		unclaimed_fee_a = fees.unclaimed_fee_a + EXCLUDED.unclaimed_fee_a,
		unclaimed_fee_b = fees.unclaimed_fee_b + EXCLUDED.unclaimed_fee_b,
		version = fees.version + 1
	RETURNING ` + feeColumns

func (s *Store) AccrueFees(ctx context.Context, poolID, wallet string, feeA, feeB decimal.Decimal) (model.FeeRecord, error) {
	row := s.pool.QueryRow(ctx, accrueFeesSQL, uuid.NewString(), poolID, wallet, feeA.String(), feeB.String())
	f, err := scanFee(row)
	if err != nil {
		return model.FeeRecord{}, mapError("fees.accrue", err, "")
	}
	return f, nil
}

func (s *Store) UpdateFeeRecord(ctx context.Context, record model.FeeRecord) (model.FeeRecord, error) {
	const op = "fees.update"
	row := s.pool.QueryRow(ctx, `
		UPDATE fees SET
			unclaimed_fee_a = $3,
			unclaimed_fee_b = $4,
			last_claimed_at = $5,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+feeColumns,
		record.ID, record.Version, record.UnclaimedFeeA.String(), record.UnclaimedFeeB.String(), record.LastClaimedAt,
	)
	updated, err := scanFee(row)
	if err != nil {
		if ledger.IsNotFound(mapError(op, err, "")) {
			return model.FeeRecord{}, versionMiss(ctx, s.pool, op, "fees", "fee record", record.ID)
		}
		return model.FeeRecord{}, mapError(op, err, "")
	}
	return updated, nil
}
