package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

type CreateTokenRequest struct {
	MintAddress string
	Symbol      string
	Name        string
	Decimals    uint8
	LogoURI     *string
}

// CreateToken registers a token. A mint address that is already known is a
// Conflict.
func (s *Service) CreateToken(ctx context.Context, req CreateTokenRequest) (model.Token, error) {
	const op = "tokens.create"
	fields := []struct{ name, value string }{
		{"mint_address", req.MintAddress},
		{"symbol", req.Symbol},
		{"name", req.Name},
	}
	for _, f := range fields {
		if err := required(op, f.name, f.value); err != nil {
			return model.Token{}, err
		}
	}
	if req.Decimals > accounting.AmountPrecision {
		return model.Token{}, ledger.Invalid(op, "decimals must not exceed %d", accounting.AmountPrecision)
	}

	token, err := s.store.CreateToken(ctx, model.Token{
		MintAddress: strings.TrimSpace(req.MintAddress),
		Symbol:      strings.TrimSpace(req.Symbol),
		Name:        strings.TrimSpace(req.Name),
		Decimals:    req.Decimals,
		LogoURI:     req.LogoURI,
	})
	if err != nil {
		return model.Token{}, ledger.Upstream(op, err)
	}
	s.logger.Info("token created",
		zap.String("token_id", token.ID),
		zap.String("mint_address", token.MintAddress),
		zap.String("symbol", token.Symbol),
	)
	return token, nil
}

// ImportToken creates a token from the ERC20 metadata at mint.
func (s *Service) ImportToken(ctx context.Context, mint string) (model.Token, error) {
	const op = "tokens.import"
	if !common.IsHexAddress(mint) {
		return model.Token{}, ledger.Invalid(op, "mint_address is not a valid address: %q", mint)
	}
	address := common.HexToAddress(mint)
	switch _, err := s.store.GetTokenByMint(ctx, address.Hex()); {
	case err == nil:
		return model.Token{}, ledger.Conflict(op, "token with this mint address already exists")
	case !ledger.IsNotFound(err):
		return model.Token{}, ledger.Upstream(op, err)
	}
	return s.importToken(ctx, op, address)
}

func (s *Service) importToken(ctx context.Context, op string, address common.Address) (model.Token, error) {
	if s.discovery == nil {
		return model.Token{}, unavailable(op, "chain discovery")
	}
	meta, err := s.discovery.TokenMeta(ctx, address)
	if err != nil {
		return model.Token{}, ledger.Upstream(op, err)
	}
	symbol := meta.Symbol
	if symbol == "" {
		symbol = "UNK"
	}
	name := meta.Name
	if name == "" {
		name = symbol
	}
	return s.CreateToken(ctx, CreateTokenRequest{
		MintAddress: address.Hex(),
		Symbol:      symbol,
		Name:        name,
		Decimals:    meta.Decimals,
	})
}

// resolveToken returns the token at address, importing it from chain when
// the ledger does not know it yet.
func (s *Service) resolveToken(ctx context.Context, op string, address common.Address) (model.Token, error) {
	token, err := s.store.GetTokenByMint(ctx, address.Hex())
	if err == nil {
		return token, nil
	}
	if !ledger.IsNotFound(err) {
		return model.Token{}, ledger.Upstream(op, err)
	}
	return s.importToken(ctx, op, address)
}

// UpdateTokenMetadata changes administrative fields only.
func (s *Service) UpdateTokenMetadata(ctx context.Context, id string, patch model.TokenMetadataPatch) (model.Token, error) {
	const op = "tokens.update"
	if err := required(op, "id", id); err != nil {
		return model.Token{}, err
	}
	if patch.Empty() {
		return model.Token{}, ledger.Invalid(op, "no updatable fields supplied")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.Token{}, ledger.Invalid(op, "name must not be empty")
	}
	token, err := s.store.UpdateTokenMetadata(ctx, id, patch)
	if err != nil {
		return model.Token{}, ledger.Upstream(op, err)
	}
	s.enricher.InvalidateToken(id)
	s.logger.Info("token metadata updated", zap.String("token_id", id))
	return token, nil
}

func (s *Service) GetToken(ctx context.Context, id string) (model.Token, error) {
	const op = "tokens.get"
	if err := required(op, "id", id); err != nil {
		return model.Token{}, err
	}
	token, err := s.store.GetToken(ctx, id)
	if err != nil {
		return model.Token{}, ledger.Upstream(op, err)
	}
	return token, nil
}

func (s *Service) ListTokens(ctx context.Context) ([]model.Token, error) {
	tokens, err := s.store.ListTokens(ctx)
	if err != nil {
		return nil, ledger.Upstream("tokens.list", err)
	}
	return tokens, nil
}
