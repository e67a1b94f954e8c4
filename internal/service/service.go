// Package service is the ledger's operation surface. Each method validates
// its input before touching the store, applies the accounting engines and,
// for interactive clients, asks the settlement adapter for a transaction to
// hand back.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/accounting"
	"github.com/paahaad/hypernova-sub001/internal/enrich"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

// ClientUI marks requests from an interactive client that signs and
// broadcasts the returned transaction itself.
const ClientUI = "ui"

// Discovery reads pool and token parameters from chain.
type Discovery interface {
	PoolMeta(ctx context.Context, pool common.Address) (model.PoolMeta, error)
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// Deps are the collaborators a Service is built from. Settlement and
// Discovery are optional; operations that need them fail with an upstream
// error when they are missing.
type Deps struct {
	Store      storage.Store
	Enricher   *enrich.Enricher
	Settlement settlement.Adapter
	Discovery  Discovery
	Now        func() time.Time
}

type Service struct {
	store      storage.Store
	liquidity  *accounting.Liquidity
	fees       *accounting.FeeSettlement
	enricher   *enrich.Enricher
	settlement settlement.Adapter
	discovery  Discovery
	now        func() time.Time
	logger     *zap.Logger
}

func New(deps Deps, logger *zap.Logger) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	enricher := deps.Enricher
	if enricher == nil {
		var err error
		enricher, err = enrich.New(deps.Store, enrich.Config{}, logger.Named("enrich"))
		if err != nil {
			return nil, fmt.Errorf("build enricher: %w", err)
		}
	}
	return &Service{
		store:      deps.Store,
		liquidity:  accounting.NewLiquidity(deps.Store, logger.Named("liquidity")),
		fees:       accounting.NewFeeSettlement(deps.Store, deps.Now, logger.Named("fees")),
		enricher:   enricher,
		settlement: deps.Settlement,
		discovery:  deps.Discovery,
		now:        deps.Now,
		logger:     logger,
	}, nil
}

func interactive(origin string) bool {
	return strings.EqualFold(strings.TrimSpace(origin), ClientUI)
}

func unavailable(op, what string) error {
	return &ledger.Error{Kind: ledger.KindUpstream, Op: op, Message: what + " is not configured"}
}

func required(op, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ledger.Invalid(op, "missing required field: %s", field)
	}
	return nil
}

func (s *Service) adapter(op string) (settlement.Adapter, error) {
	if s.settlement == nil {
		return nil, unavailable(op, "settlement")
	}
	return s.settlement, nil
}

// market loads a pool with both tokens; every reference must resolve.
func (s *Service) market(ctx context.Context, op, poolID string) (settlement.Market, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return settlement.Market{}, ledger.Upstream(op, err)
	}
	tokenA, err := s.store.GetToken(ctx, pool.TokenAID)
	if err != nil {
		return settlement.Market{}, ledger.Upstream(op, err)
	}
	tokenB, err := s.store.GetToken(ctx, pool.TokenBID)
	if err != nil {
		return settlement.Market{}, ledger.Upstream(op, err)
	}
	return settlement.Market{Pool: pool, TokenA: tokenA, TokenB: tokenB}, nil
}
