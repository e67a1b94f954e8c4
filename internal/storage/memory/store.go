package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is an in-process Ledger Store. A single mutex serializes writes so
// every versioned update is a true compare-and-swap.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	tokens        *table[model.Token]
	pools         *table[model.Pool]
	positions     *table[model.LiquidityPosition]
	swaps         *table[model.Swap]
	fees          *table[model.FeeRecord]
	presales      *table[model.Presale]
	contributions *table[model.PresaleContribution]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:           func() time.Time { return time.Now().UTC() },
		tokens:        newTable[model.Token](),
		pools:         newTable[model.Pool](),
		positions:     newTable[model.LiquidityPosition](),
		swaps:         newTable[model.Swap](),
		fees:          newTable[model.FeeRecord](),
		presales:      newTable[model.Presale](),
		contributions: newTable[model.PresaleContribution](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() {}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Tokens

func (s *Store) CreateToken(_ context.Context, token model.Token) (model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens.find(func(t model.Token) bool { return t.MintAddress == token.MintAddress }); ok {
		return model.Token{}, ledger.Conflict("tokens.create", "token with mint address %s already exists", token.MintAddress)
	}
	token.ID = newID(token.ID)
	token.CreatedAt = s.now()
	token.UpdatedAt = token.CreatedAt
	s.tokens.put(token.ID, token)
	return token, nil
}

func (s *Store) GetToken(_ context.Context, id string) (model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens.get(id)
	if !ok {
		return model.Token{}, ledger.NotFound("tokens.get", "token %s not found", id)
	}
	return token, nil
}

func (s *Store) GetTokenByMint(_ context.Context, mint string) (model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens.find(func(t model.Token) bool { return t.MintAddress == mint })
	if !ok {
		return model.Token{}, ledger.NotFound("tokens.get_by_mint", "token with mint address %s not found", mint)
	}
	return token, nil
}

func (s *Store) ListTokens(_ context.Context) ([]model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.list(nil), nil
}

func (s *Store) UpdateTokenMetadata(_ context.Context, id string, patch model.TokenMetadataPatch) (model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens.get(id)
	if !ok {
		return model.Token{}, ledger.NotFound("tokens.update", "token %s not found", id)
	}
	patch.Apply(&token)
	token.UpdatedAt = s.now()
	s.tokens.put(id, token)
	return token, nil
}

// Pools

func (s *Store) CreatePool(_ context.Context, pool model.Pool) (model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools.find(func(p model.Pool) bool { return p.PoolAddress == pool.PoolAddress }); ok {
		return model.Pool{}, ledger.Conflict("pools.create", "pool with address %s already exists", pool.PoolAddress)
	}
	pool.ID = newID(pool.ID)
	pool.CreatedAt = s.now()
	pool.UpdatedAt = pool.CreatedAt
	s.pools.put(pool.ID, pool)
	return pool, nil
}

func (s *Store) GetPool(_ context.Context, id string) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools.get(id)
	if !ok {
		return model.Pool{}, ledger.NotFound("pools.get", "pool %s not found", id)
	}
	return pool, nil
}

func (s *Store) GetPoolByAddress(_ context.Context, address string) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools.find(func(p model.Pool) bool { return p.PoolAddress == address })
	if !ok {
		return model.Pool{}, ledger.NotFound("pools.get_by_address", "pool with address %s not found", address)
	}
	return pool, nil
}

func (s *Store) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools.list(nil), nil
}

func (s *Store) UpdatePoolMetrics(_ context.Context, metrics model.PoolMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools.get(metrics.PoolID)
	if !ok {
		return ledger.NotFound("pools.update_metrics", "pool %s not found", metrics.PoolID)
	}
	pool.Volume24h = metrics.Volume
	pool.Fees24h = metrics.Fees
	pool.APR24h = metrics.APR
	pool.Liquidity = metrics.TVL
	pool.UpdatedAt = s.now()
	s.pools.put(pool.ID, pool)
	return nil
}

// Positions

func (s *Store) CreatePosition(_ context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position.ID = newID(position.ID)
	if _, ok := s.positions.get(position.ID); ok {
		return model.LiquidityPosition{}, ledger.Conflict("positions.create", "position %s already exists", position.ID)
	}
	if _, ok := s.positions.find(func(p model.LiquidityPosition) bool {
		return p.UserWallet == position.UserWallet && p.PoolID == position.PoolID
	}); ok {
		return model.LiquidityPosition{}, ledger.Conflict("positions.create", "wallet %s already has a position in pool %s", position.UserWallet, position.PoolID)
	}
	position.Version = 1
	position.CreatedAt = s.now()
	position.UpdatedAt = position.CreatedAt
	s.positions.put(position.ID, position)
	return position, nil
}

func (s *Store) GetPosition(_ context.Context, id string) (model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions.get(id)
	if !ok {
		return model.LiquidityPosition{}, ledger.NotFound("positions.get", "liquidity position %s not found", id)
	}
	return position, nil
}

func (s *Store) FindPosition(_ context.Context, wallet, poolID string) (model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions.find(func(p model.LiquidityPosition) bool {
		return p.UserWallet == wallet && p.PoolID == poolID
	})
	if !ok {
		return model.LiquidityPosition{}, ledger.NotFound("positions.find", "no position for wallet %s in pool %s", wallet, poolID)
	}
	return position, nil
}

func (s *Store) ListPositionsByWallet(_ context.Context, wallet string) ([]model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions.list(func(p model.LiquidityPosition) bool { return p.UserWallet == wallet }), nil
}

func (s *Store) ListPositionsByPool(_ context.Context, poolID string) ([]model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions.list(func(p model.LiquidityPosition) bool { return p.PoolID == poolID }), nil
}

func (s *Store) UpdatePosition(_ context.Context, position model.LiquidityPosition) (model.LiquidityPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.positions.get(position.ID)
	if !ok {
		return model.LiquidityPosition{}, ledger.NotFound("positions.update", "liquidity position %s not found", position.ID)
	}
	if current.Version != position.Version {
		return model.LiquidityPosition{}, ledger.StaleVersion("positions.update", "position", position.ID)
	}
	current.AmountTokenA = position.AmountTokenA
	current.AmountTokenB = position.AmountTokenB
	current.LPTokens = position.LPTokens
	if position.PositionMint != "" {
		current.PositionMint = position.PositionMint
	}
	current.Version++
	current.UpdatedAt = s.now()
	s.positions.put(current.ID, current)
	return current, nil
}

func (s *Store) DeletePosition(_ context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.positions.get(id)
	if !ok {
		return ledger.NotFound("positions.delete", "liquidity position %s not found", id)
	}
	if current.Version != version {
		return ledger.StaleVersion("positions.delete", "position", id)
	}
	s.positions.del(id)
	return nil
}

// Swaps

func (s *Store) CreateSwap(_ context.Context, swap model.Swap) (model.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSwap("swaps.create", swap)
}

func (s *Store) RecordSwap(_ context.Context, swap model.Swap, credits []model.FeeCredit) (model.Swap, error) {
	const op = "swaps.record"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range credits {
		if c.UserWallet == "" {
			return model.Swap{}, ledger.Invalid(op, "fee credit without a wallet")
		}
		if c.FeeA.IsNegative() || c.FeeB.IsNegative() {
			return model.Swap{}, ledger.Invalid(op, "negative fee credit for wallet %s", c.UserWallet)
		}
	}
	created, err := s.insertSwap(op, swap)
	if err != nil {
		return model.Swap{}, err
	}
	for _, c := range credits {
		s.accrue(swap.PoolID, c.UserWallet, c.FeeA, c.FeeB)
	}
	return created, nil
}

func (s *Store) insertSwap(op string, swap model.Swap) (model.Swap, error) {
	if _, ok := s.swaps.find(func(sw model.Swap) bool { return sw.TxHash == swap.TxHash }); ok {
		return model.Swap{}, ledger.Conflict(op, "transaction %s already processed", swap.TxHash)
	}
	swap.ID = newID(swap.ID)
	if swap.Timestamp.IsZero() {
		swap.Timestamp = s.now()
	}
	s.swaps.put(swap.ID, swap)
	return swap, nil
}

func (s *Store) GetSwapByTxHash(_ context.Context, txHash string) (model.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	swap, ok := s.swaps.find(func(sw model.Swap) bool { return sw.TxHash == txHash })
	if !ok {
		return model.Swap{}, ledger.NotFound("swaps.get_by_tx", "swap with tx hash %s not found", txHash)
	}
	return swap, nil
}

func (s *Store) ListSwapsByPool(_ context.Context, poolID string) ([]model.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.swaps.list(func(sw model.Swap) bool { return sw.PoolID == poolID }), nil
}

func (s *Store) ListSwapsByWallet(_ context.Context, wallet string) ([]model.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.swaps.list(func(sw model.Swap) bool { return sw.UserWallet == wallet }), nil
}

func (s *Store) ListSwapsBetween(_ context.Context, poolID string, from, to time.Time) ([]model.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.swaps.list(func(sw model.Swap) bool {
		return sw.PoolID == poolID && !sw.Timestamp.Before(from) && sw.Timestamp.Before(to)
	}), nil
}

// Fees

func (s *Store) FindFeeRecord(_ context.Context, poolID, wallet string) (model.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.findFee(poolID, wallet)
	if !ok {
		return model.FeeRecord{}, ledger.NotFound("fees.find", "no fee record for wallet %s in pool %s", wallet, poolID)
	}
	return record, nil
}

func (s *Store) findFee(poolID, wallet string) (model.FeeRecord, bool) {
	return s.fees.find(func(f model.FeeRecord) bool { return f.PoolID == poolID && f.UserWallet == wallet })
}

func (s *Store) ListFeeRecordsByWallet(_ context.Context, wallet string) ([]model.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees.list(func(f model.FeeRecord) bool { return f.UserWallet == wallet }), nil
}

func (s *Store) AccrueFees(_ context.Context, poolID, wallet string, feeA, feeB decimal.Decimal) (model.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accrue(poolID, wallet, feeA, feeB), nil
}

func (s *Store) accrue(poolID, wallet string, feeA, feeB decimal.Decimal) model.FeeRecord {
	record, ok := s.findFee(poolID, wallet)
	if !ok {
		record = model.FeeRecord{
			ID:            uuid.NewString(),
			PoolID:        poolID,
			UserWallet:    wallet,
			UnclaimedFeeA: decimal.Zero,
			UnclaimedFeeB: decimal.Zero,
		}
	}
	record.UnclaimedFeeA = record.UnclaimedFeeA.Add(feeA)
	record.UnclaimedFeeB = record.UnclaimedFeeB.Add(feeB)
	record.Version++
	s.fees.put(record.ID, record)
	return record
}

func (s *Store) UpdateFeeRecord(_ context.Context, record model.FeeRecord) (model.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.fees.get(record.ID)
	if !ok {
		return model.FeeRecord{}, ledger.NotFound("fees.update", "fee record %s not found", record.ID)
	}
	if current.Version != record.Version {
		return model.FeeRecord{}, ledger.StaleVersion("fees.update", "fee record", record.ID)
	}
	current.UnclaimedFeeA = record.UnclaimedFeeA
	current.UnclaimedFeeB = record.UnclaimedFeeB
	current.LastClaimedAt = record.LastClaimedAt
	current.Version++
	s.fees.put(current.ID, current)
	return current, nil
}

// Presales

func (s *Store) CreatePresale(_ context.Context, presale model.Presale) (model.Presale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presales.find(func(p model.Presale) bool { return p.PresaleAddress == presale.PresaleAddress }); ok {
		return model.Presale{}, ledger.Conflict("presales.create", "presale with address %s already exists", presale.PresaleAddress)
	}
	if _, ok := s.presales.find(func(p model.Presale) bool { return p.TokenID == presale.TokenID }); ok {
		return model.Presale{}, ledger.Conflict("presales.create", "token %s already has a presale", presale.TokenID)
	}
	presale.ID = newID(presale.ID)
	presale.Version = 1
	presale.CreatedAt = s.now()
	presale.UpdatedAt = presale.CreatedAt
	s.presales.put(presale.ID, presale)
	return presale, nil
}

func (s *Store) GetPresale(_ context.Context, id string) (model.Presale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presale, ok := s.presales.get(id)
	if !ok {
		return model.Presale{}, ledger.NotFound("presales.get", "presale %s not found", id)
	}
	return presale, nil
}

func (s *Store) GetPresaleByAddress(_ context.Context, address string) (model.Presale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presale, ok := s.presales.find(func(p model.Presale) bool { return p.PresaleAddress == address })
	if !ok {
		return model.Presale{}, ledger.NotFound("presales.get_by_address", "presale with address %s not found", address)
	}
	return presale, nil
}

func (s *Store) GetPresaleByToken(_ context.Context, tokenID string) (model.Presale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presale, ok := s.presales.find(func(p model.Presale) bool { return p.TokenID == tokenID })
	if !ok {
		return model.Presale{}, ledger.NotFound("presales.get_by_token", "no presale for token %s", tokenID)
	}
	return presale, nil
}

func (s *Store) ListPresales(_ context.Context) ([]model.Presale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presales.list(nil), nil
}

func (s *Store) AddContribution(_ context.Context, presale model.Presale, c model.PresaleContribution) (model.Presale, model.PresaleContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.presales.get(presale.ID)
	if !ok {
		return model.Presale{}, model.PresaleContribution{}, ledger.NotFound("presales.contribute", "presale %s not found", presale.ID)
	}
	if current.Version != presale.Version {
		return model.Presale{}, model.PresaleContribution{}, ledger.StaleVersion("presales.contribute", "presale", presale.ID)
	}

	current.TotalRaised = presale.TotalRaised
	current.Status = presale.Status
	current.Version++
	current.UpdatedAt = s.now()
	s.presales.put(current.ID, current)

	c.ID = newID(c.ID)
	c.PresaleID = current.ID
	if c.Timestamp.IsZero() {
		c.Timestamp = current.UpdatedAt
	}
	s.contributions.put(c.ID, c)
	return current, c, nil
}

func (s *Store) ListContributions(_ context.Context, presaleID string) ([]model.PresaleContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contributions.list(func(c model.PresaleContribution) bool { return c.PresaleID == presaleID }), nil
}
