// Package enrich joins ledger records to the pool and tokens they reference.
package enrich

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

const defaultConcurrency = 8

// Resolver looks up join targets. Lookups that find nothing must return a
// NotFound ledger error.
type Resolver interface {
	GetPool(ctx context.Context, id string) (model.Pool, error)
	GetToken(ctx context.Context, id string) (model.Token, error)
}

// Config controls enrichment fan-out and caching.
type Config struct {
	// Concurrency bounds in-flight lookups per call. Zero means 8.
	Concurrency int
	// TokenCacheSize is the number of tokens kept across calls. Zero disables
	// the cache.
	TokenCacheSize int
}

// Enricher resolves pool and token references. A missing join target leaves
// the corresponding field nil; only store failures are errors.
type Enricher struct {
	resolver Resolver
	cfg      Config
	tokens   *lru.Cache[string, model.Token]
	logger   *zap.Logger
}

func New(resolver Resolver, cfg Config, logger *zap.Logger) (*Enricher, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	e := &Enricher{resolver: resolver, cfg: cfg, logger: logger}
	if cfg.TokenCacheSize > 0 {
		cache, err := lru.New[string, model.Token](cfg.TokenCacheSize)
		if err != nil {
			return nil, fmt.Errorf("token cache: %w", err)
		}
		e.tokens = cache
	}
	return e, nil
}

// InvalidateToken drops a cached token after its metadata changed.
func (e *Enricher) InvalidateToken(id string) {
	if e.tokens != nil {
		e.tokens.Remove(id)
	}
}

// Enrich joins every entity to its pool and tokens. The output has the same
// length and order as entities regardless of lookup completion order.
func Enrich[T model.PoolScoped](ctx context.Context, e *Enricher, entities []T) ([]model.Enriched[T], error) {
	out := make([]model.Enriched[T], len(entities))
	if len(entities) == 0 {
		return out, nil
	}

	b := e.newBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := range entities {
		i := i
		g.Go(func() error {
			view, err := enrichOne(gctx, b, entities[i])
			if err != nil {
				return err
			}
			out[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// One enriches a single entity.
func One[T model.PoolScoped](ctx context.Context, e *Enricher, entity T) (model.Enriched[T], error) {
	return enrichOne(ctx, e.newBatch(), entity)
}

// Pools joins each pool to its two tokens, preserving order.
func Pools(ctx context.Context, e *Enricher, pools []model.Pool) ([]model.PoolView, error) {
	out := make([]model.PoolView, len(pools))
	if len(pools) == 0 {
		return out, nil
	}

	b := e.newBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := range pools {
		i := i
		g.Go(func() error {
			refA, refB := pools[i].TokenRefs()
			tokenA, tokenB, err := b.tokenPair(gctx, refA, refB)
			if err != nil {
				return err
			}
			out[i] = model.PoolView{Pool: pools[i], TokenA: tokenA, TokenB: tokenB}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func enrichOne[T model.PoolScoped](ctx context.Context, b *batch, entity T) (model.Enriched[T], error) {
	view := model.Enriched[T]{Entity: entity}

	pool, err := b.pool(ctx, entity.PoolRef())
	if err != nil {
		return view, err
	}
	if pool == nil {
		return view, nil
	}
	view.Pool = pool

	refA, refB := pool.TokenRefs()
	if scoped, ok := any(entity).(model.TokenScoped); ok {
		refA, refB = scoped.TokenRefs()
	}
	view.TokenA, view.TokenB, err = b.tokenPair(ctx, refA, refB)
	if err != nil {
		return model.Enriched[T]{Entity: entity}, err
	}
	return view, nil
}

// batch deduplicates lookups made while enriching one result set.
type batch struct {
	e      *Enricher
	flight singleflight.Group
	mu     sync.Mutex
	pools  map[string]*model.Pool
	tokens map[string]*model.Token
}

func (e *Enricher) newBatch() *batch {
	return &batch{
		e:      e,
		pools:  make(map[string]*model.Pool),
		tokens: make(map[string]*model.Token),
	}
}

func (b *batch) pool(ctx context.Context, id string) (*model.Pool, error) {
	if id == "" {
		return nil, nil
	}
	b.mu.Lock()
	cached, ok := b.pools[id]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	v, err, _ := b.flight.Do("pool:"+id, func() (interface{}, error) {
		pool, err := b.e.resolver.GetPool(ctx, id)
		if err != nil {
			if ledger.IsNotFound(err) {
				b.e.logger.Debug("pool join unresolved", zap.String("pool_id", id))
				return (*model.Pool)(nil), nil
			}
			return nil, ledger.Upstream("enrich.pool", err)
		}
		return &pool, nil
	})
	if err != nil {
		return nil, err
	}

	pool := v.(*model.Pool)
	b.mu.Lock()
	b.pools[id] = pool
	b.mu.Unlock()
	return pool, nil
}

func (b *batch) tokenPair(ctx context.Context, idA, idB string) (*model.Token, *model.Token, error) {
	tokenA, err := b.token(ctx, idA)
	if err != nil {
		return nil, nil, err
	}
	tokenB, err := b.token(ctx, idB)
	if err != nil {
		return nil, nil, err
	}
	return tokenA, tokenB, nil
}

func (b *batch) token(ctx context.Context, id string) (*model.Token, error) {
	if id == "" {
		return nil, nil
	}
	b.mu.Lock()
	cached, ok := b.tokens[id]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}
	if b.e.tokens != nil {
		if token, ok := b.e.tokens.Get(id); ok {
			return &token, nil
		}
	}

	v, err, _ := b.flight.Do("token:"+id, func() (interface{}, error) {
		token, err := b.e.resolver.GetToken(ctx, id)
		if err != nil {
			if ledger.IsNotFound(err) {
				b.e.logger.Debug("token join unresolved", zap.String("token_id", id))
				return (*model.Token)(nil), nil
			}
			return nil, ledger.Upstream("enrich.token", err)
		}
		if b.e.tokens != nil {
			b.e.tokens.Add(id, token)
		}
		return &token, nil
	})
	if err != nil {
		return nil, err
	}

	token := v.(*model.Token)
	b.mu.Lock()
	b.tokens[id] = token
	b.mu.Unlock()
	return token, nil
}
