package postgres

import (
	"context"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const tokenColumns = `id, mint_address, symbol, name, decimals, logo_uri, presale_completed, created_at, updated_at`

func scanToken(row rowScanner) (model.Token, error) {
	var t model.Token
	var decimals int16
	if err := row.Scan(&t.ID, &t.MintAddress, &t.Symbol, &t.Name, &decimals, &t.LogoURI, &t.PresaleCompleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Token{}, err
	}
	t.Decimals = uint8(decimals)
	return t, nil
}

func (s *Store) CreateToken(ctx context.Context, token model.Token) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (id, mint_address, symbol, name, decimals, logo_uri, presale_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+tokenColumns,
		newID(token.ID), token.MintAddress, token.Symbol, token.Name, int16(token.Decimals), token.LogoURI, token.PresaleCompleted,
	)
	created, err := scanToken(row)
	if err != nil {
		return model.Token{}, mapError("tokens.create", err, "")
	}
	return created, nil
}

func (s *Store) GetToken(ctx context.Context, id string) (model.Token, error) {
	token, err := scanToken(s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id))
	if err != nil {
		return model.Token{}, mapError("tokens.get", err, "token "+id+" not found")
	}
	return token, nil
}

func (s *Store) GetTokenByMint(ctx context.Context, mint string) (model.Token, error) {
	token, err := scanToken(s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE mint_address = $1`, mint))
	if err != nil {
		return model.Token{}, mapError("tokens.get_by_mint", err, "token with mint address "+mint+" not found")
	}
	return token, nil
}

func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tokenColumns+` FROM tokens ORDER BY created_at, id`)
	if err != nil {
		return nil, ledger.Upstream("tokens.list", err)
	}
	defer rows.Close()

	tokens := make([]model.Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, ledger.Upstream("tokens.list", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Upstream("tokens.list", err)
	}
	return tokens, nil
}

func (s *Store) UpdateTokenMetadata(ctx context.Context, id string, patch model.TokenMetadataPatch) (model.Token, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tokens SET
			name = COALESCE($2, name),
			logo_uri = COALESCE($3, logo_uri),
			presale_completed = COALESCE($4, presale_completed),
			updated_at = now()
		WHERE id = $1
		RETURNING `+tokenColumns,
		id, patch.Name, patch.LogoURI, patch.PresaleCompleted,
	)
	token, err := scanToken(row)
	if err != nil {
		return model.Token{}, mapError("tokens.update", err, "token "+id+" not found")
	}
	return token, nil
}
