package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const presaleColumns = `id, token_id, presale_address, mint_address, total_raised::text, target_amount::text,
	start_time, end_time, status, version, created_at, updated_at`

const contributionColumns = `id, presale_id, user_wallet, amount::text, "timestamp"`

func scanPresale(row rowScanner) (model.Presale, error) {
	var p model.Presale
	var raised, target string
	if err := row.Scan(&p.ID, &p.TokenID, &p.PresaleAddress, &p.MintAddress, &raised, &target,
		&p.StartTime, &p.EndTime, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Presale{}, err
	}
	var err error
	if p.TotalRaised, err = parseDecimal("total_raised", raised); err != nil {
		return model.Presale{}, err
	}
	if p.TargetAmount, err = parseDecimal("target_amount", target); err != nil {
		return model.Presale{}, err
	}
	return p, nil
}

func scanContribution(row rowScanner) (model.PresaleContribution, error) {
	var c model.PresaleContribution
	var amount string
	if err := row.Scan(&c.ID, &c.PresaleID, &c.UserWallet, &amount, &c.Timestamp); err != nil {
		return model.PresaleContribution{}, err
	}
	var err error
	if c.Amount, err = parseDecimal("amount", amount); err != nil {
		return model.PresaleContribution{}, err
	}
	return c, nil
}

func (s *Store) CreatePresale(ctx context.Context, presale model.Presale) (model.Presale, error) {
	status := presale.Status
	if status == "" {
		status = model.PresaleActive
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO presales (
			id, token_id, presale_address, mint_address, total_raised, target_amount, start_time, end_time, status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING `+presaleColumns,
		newID(presale.ID), presale.TokenID, presale.PresaleAddress, presale.MintAddress,
		presale.TotalRaised.String(), presale.TargetAmount.String(), presale.StartTime, presale.EndTime, status,
	)
	created, err := scanPresale(row)
	if err != nil {
		return model.Presale{}, mapError("presales.create", err, "")
	}
	return created, nil
}

func (s *Store) GetPresale(ctx context.Context, id string) (model.Presale, error) {
	p, err := scanPresale(s.pool.QueryRow(ctx, `SELECT `+presaleColumns+` FROM presales WHERE id = $1`, id))
	if err != nil {
		return model.Presale{}, mapError("presales.get", err, "presale "+id+" not found")
	}
	return p, nil
}

func (s *Store) GetPresaleByAddress(ctx context.Context, address string) (model.Presale, error) {
	p, err := scanPresale(s.pool.QueryRow(ctx, `SELECT `+presaleColumns+` FROM presales WHERE presale_address = $1`, address))
	if err != nil {
		return model.Presale{}, mapError("presales.get_by_address", err, "presale with address "+address+" not found")
	}
	return p, nil
}

func (s *Store) GetPresaleByToken(ctx context.Context, tokenID string) (model.Presale, error) {
	p, err := scanPresale(s.pool.QueryRow(ctx, `SELECT `+presaleColumns+` FROM presales WHERE token_id = $1`, tokenID))
	if err != nil {
		return model.Presale{}, mapError("presales.get_by_token", err, "no presale for token "+tokenID)
	}
	return p, nil
}

func (s *Store) ListPresales(ctx context.Context) ([]model.Presale, error) {
	const op = "presales.list"
	rows, err := s.pool.Query(ctx, `SELECT `+presaleColumns+` FROM presales ORDER BY created_at, id`)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	defer rows.Close()

	presales := make([]model.Presale, 0)
	for rows.Next() {
		p, err := scanPresale(rows)
		if err != nil {
			return nil, ledger.Upstream(op, err)
		}
		presales = append(presales, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return presales, nil
}

// AddContribution stores the presale totals and the contribution row in one
// transaction, conditioned on the presale version that was read.
func (s *Store) AddContribution(ctx context.Context, presale model.Presale, c model.PresaleContribution) (model.Presale, model.PresaleContribution, error) {
	const op = "presales.contribute"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Presale{}, model.PresaleContribution{}, ledger.Upstream(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	updated, err := scanPresale(tx.QueryRow(ctx, `
		UPDATE presales SET
			total_raised = $3,
			status = $4,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+presaleColumns,
		presale.ID, presale.Version, presale.TotalRaised.String(), presale.Status,
	))
	if err != nil {
		if ledger.IsNotFound(mapError(op, err, "")) {
			return model.Presale{}, model.PresaleContribution{}, versionMiss(ctx, tx, op, "presales", "presale", presale.ID)
		}
		return model.Presale{}, model.PresaleContribution{}, mapError(op, err, "")
	}

	ts := c.Timestamp
	if ts.IsZero() {
		ts = updated.UpdatedAt
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	contribution, err := scanContribution(tx.QueryRow(ctx, `
		INSERT INTO presale_contributions (id, presale_id, user_wallet, amount, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+contributionColumns,
		newID(c.ID), updated.ID, c.UserWallet, c.Amount.String(), ts,
	))
	if err != nil {
		return model.Presale{}, model.PresaleContribution{}, mapError(op, err, "")
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Presale{}, model.PresaleContribution{}, ledger.Upstream(op, err)
	}
	committed = true
	return updated, contribution, nil
}

func (s *Store) ListContributions(ctx context.Context, presaleID string) ([]model.PresaleContribution, error) {
	const op = "presales.list_contributions"
	rows, err := s.pool.Query(ctx, `SELECT `+contributionColumns+` FROM presale_contributions WHERE presale_id = $1 ORDER BY "timestamp", id`, presaleID)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	defer rows.Close()

	contributions := make([]model.PresaleContribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, ledger.Upstream(op, err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return contributions, nil
}
