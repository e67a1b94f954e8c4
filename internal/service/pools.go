package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// CreatePoolRequest names the pair by token id, or by mint address when the
// id is empty.
type CreatePoolRequest struct {
	PoolAddress string
	TokenAID    string
	TokenBID    string
	TokenAMint  string
	TokenBMint  string
	LPMint      string
	TickSpacing int32
	FeeRate     uint32
}

func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (model.Pool, error) {
	const op = "pools.create"
	if err := required(op, "pool_address", req.PoolAddress); err != nil {
		return model.Pool{}, err
	}
	if req.FeeRate >= model.FeeRateDenominator {
		return model.Pool{}, ledger.Invalid(op, "fee_rate must be below %d", model.FeeRateDenominator)
	}
	if req.TickSpacing < 0 {
		return model.Pool{}, ledger.Invalid(op, "tick_spacing must not be negative")
	}
	tokenA, err := s.poolToken(ctx, op, "a", req.TokenAID, req.TokenAMint)
	if err != nil {
		return model.Pool{}, err
	}
	tokenB, err := s.poolToken(ctx, op, "b", req.TokenBID, req.TokenBMint)
	if err != nil {
		return model.Pool{}, err
	}
	if tokenA.ID == tokenB.ID {
		return model.Pool{}, ledger.Invalid(op, "pool tokens must differ")
	}

	pool, err := s.store.CreatePool(ctx, model.Pool{
		PoolAddress: strings.TrimSpace(req.PoolAddress),
		TokenAID:    tokenA.ID,
		TokenBID:    tokenB.ID,
		TokenAMint:  tokenA.MintAddress,
		TokenBMint:  tokenB.MintAddress,
		LPMint:      req.LPMint,
		TickSpacing: req.TickSpacing,
		FeeRate:     req.FeeRate,
	})
	if err != nil {
		return model.Pool{}, ledger.Upstream(op, err)
	}
	s.logger.Info("pool created",
		zap.String("pool_id", pool.ID),
		zap.String("pool_address", pool.PoolAddress),
		zap.String("token_a", tokenA.Symbol),
		zap.String("token_b", tokenB.Symbol),
	)
	return pool, nil
}

func (s *Service) poolToken(ctx context.Context, op, side, id, mint string) (model.Token, error) {
	var (
		token model.Token
		err   error
	)
	switch {
	case strings.TrimSpace(id) != "":
		token, err = s.store.GetToken(ctx, id)
	case strings.TrimSpace(mint) != "":
		token, err = s.store.GetTokenByMint(ctx, mint)
	default:
		return model.Token{}, ledger.Invalid(op, "missing required field: token_%s_id", side)
	}
	if err != nil {
		if ledger.IsNotFound(err) {
			return model.Token{}, ledger.NotFound(op, "token %s not found", strings.ToUpper(side))
		}
		return model.Token{}, ledger.Upstream(op, err)
	}
	return token, nil
}

// DiscoverPool registers the V3 pool at address, importing either token the
// ledger does not know yet.
func (s *Service) DiscoverPool(ctx context.Context, address string) (model.Pool, error) {
	const op = "pools.discover"
	if !common.IsHexAddress(address) {
		return model.Pool{}, ledger.Invalid(op, "pool_address is not a valid address: %q", address)
	}
	if s.discovery == nil {
		return model.Pool{}, unavailable(op, "chain discovery")
	}
	poolAddress := common.HexToAddress(address)
	switch _, err := s.store.GetPoolByAddress(ctx, poolAddress.Hex()); {
	case err == nil:
		return model.Pool{}, ledger.Conflict(op, "pool with this address already exists")
	case !ledger.IsNotFound(err):
		return model.Pool{}, ledger.Upstream(op, err)
	}

	meta, err := s.discovery.PoolMeta(ctx, poolAddress)
	if err != nil {
		return model.Pool{}, ledger.Upstream(op, err)
	}
	token0, err := s.resolveToken(ctx, op, common.HexToAddress(meta.Token0))
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := s.resolveToken(ctx, op, common.HexToAddress(meta.Token1))
	if err != nil {
		return model.Pool{}, err
	}
	return s.CreatePool(ctx, CreatePoolRequest{
		PoolAddress: poolAddress.Hex(),
		TokenAID:    token0.ID,
		TokenBID:    token1.ID,
		TickSpacing: meta.TickSpacing,
		FeeRate:     meta.Fee,
	})
}

// GetPool looks a pool up by id, then by pool address.
func (s *Service) GetPool(ctx context.Context, idOrAddress string) (model.PoolView, error) {
	const op = "pools.get"
	if err := required(op, "id", idOrAddress); err != nil {
		return model.PoolView{}, err
	}
	pool, err := s.store.GetPool(ctx, idOrAddress)
	if ledger.IsNotFound(err) {
		pool, err = s.store.GetPoolByAddress(ctx, idOrAddress)
	}
	if err != nil {
		if ledger.IsNotFound(err) {
			return model.PoolView{}, ledger.NotFound(op, "pool not found")
		}
		return model.PoolView{}, ledger.Upstream(op, err)
	}
	views, err := enrich.Pools(ctx, s.enricher, []model.Pool{pool})
	if err != nil {
		return model.PoolView{}, ledger.Upstream(op, err)
	}
	return views[0], nil
}

func (s *Service) ListPools(ctx context.Context) ([]model.PoolView, error) {
	const op = "pools.list"
	pools, err := s.store.ListPools(ctx)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	views, err := enrich.Pools(ctx, s.enricher, pools)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return views, nil
}
