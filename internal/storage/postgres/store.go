package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

var _ storage.Store = (*Store)(nil)

//go:embed schema.sql
var schemaSQL string

// Store is the Postgres Ledger Store. Versioned rows are updated with
// "WHERE id = $1 AND version = $2" so a lost race surfaces as Conflict.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the ledger tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (time.Time, bool, error) {
	if name == "" {
		return time.Time{}, false, fmt.Errorf("state name required")
	}
	var ts time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM ledger_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts time.Time) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

// mapError classifies driver errors. pgx.ErrNoRows becomes NotFound with
// notFound as the message.
func mapError(op string, err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.NotFound(op, "%s", notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ledger.Conflict(op, "%s", uniqueMessage(pgErr.ConstraintName))
		case "23503":
			return ledger.Invalid(op, "referenced record does not exist")
		case "23514":
			return ledger.Invalid(op, "value violates constraint %s", pgErr.ConstraintName)
		}
	}
	return ledger.Upstream(op, err)
}

func uniqueMessage(constraint string) string {
	switch {
	case strings.HasPrefix(constraint, "tokens_mint_address"):
		return "token with this mint address already exists"
	case strings.HasPrefix(constraint, "pools_pool_address"):
		return "pool with this address already exists"
	case strings.HasPrefix(constraint, "swaps_tx_hash"):
		return "transaction already processed"
	case strings.HasPrefix(constraint, "presales_presale_address"):
		return "presale with this address already exists"
	case strings.HasPrefix(constraint, "presales_token_id"):
		return "token already has a presale"
	default:
		return "duplicate key"
	}
}

// versionMiss tells a stale version apart from a missing row after a
// conditional update touched nothing.
func versionMiss(ctx context.Context, q querier, op, table, entity, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return ledger.Upstream(op, err)
	}
	if !exists {
		return ledger.NotFound(op, "%s %s not found", entity, id)
	}
	return ledger.StaleVersion(op, entity, id)
}
