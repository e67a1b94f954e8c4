package accounting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage/memory"
)

func seedPosition(t *testing.T, store *memory.Store) model.LiquidityPosition {
	t.Helper()
	p, err := store.CreatePosition(context.Background(), model.LiquidityPosition{
		UserWallet:   "wallet-1",
		PoolID:       "pool-1",
		LPTokens:     dec("100"),
		AmountTokenA: dec("50"),
		AmountTokenB: dec("200"),
	})
	require.NoError(t, err)
	return p
}

func TestRemoveLiquidityPartial(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)

	res, err := NewLiquidity(store, nil).RemoveLiquidity(ctx, p.ID, dec("40"))
	require.NoError(t, err)
	require.False(t, res.Withdrawal.FullClosure)

	stored, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.LPTokens.Equal(dec("60")))
	require.True(t, stored.AmountTokenA.Equal(dec("30")))
	require.True(t, stored.AmountTokenB.Equal(dec("120")))
}

func TestRemoveLiquidityFullClosureDeletes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)

	res, err := NewLiquidity(store, nil).RemoveLiquidity(ctx, p.ID, dec("100"))
	require.NoError(t, err)
	require.True(t, res.Withdrawal.FullClosure)
	require.Equal(t, p.ID, res.Position.ID)

	_, err = store.GetPosition(ctx, p.ID)
	require.True(t, ledger.IsNotFound(err))
}

func TestRemoveLiquidityErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLiquidity(store, nil)

	_, err := l.RemoveLiquidity(ctx, "missing", dec("1"))
	require.True(t, ledger.IsNotFound(err))

	p := seedPosition(t, store)
	_, err = l.RemoveLiquidity(ctx, p.ID, dec("-1"))
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	stored, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Version, stored.Version)
}

func TestConcurrentWithdrawalsDoNotDoubleSpend(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)
	l := NewLiquidity(store, nil)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.RemoveLiquidity(ctx, p.ID, dec("10"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, ledger.IsConflict(err), "unexpected error: %v", err)
	}

	stored, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	want := dec("100").Sub(dec("10").Mul(decimal.NewFromInt(int64(succeeded))))
	require.True(t, stored.LPTokens.Equal(want), "lp %s after %d successes", stored.LPTokens, succeeded)
}

func TestAddLiquidityCreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLiquidity(store, nil)
	d := Deposit{AmountA: dec("1"), AmountB: dec("2"), LPTokens: dec("3")}

	first, created, err := l.AddLiquidity(ctx, "w", "p", d)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := l.AddLiquidity(ctx, "w", "p", d)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.LPTokens.Equal(dec("6")))

	_, _, err = l.AddLiquidity(ctx, "", "p", d)
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))
}

func TestRemoveFromStaleSnapshotConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)
	l := NewLiquidity(store, nil)

	_, _, err := l.AddLiquidity(ctx, p.UserWallet, p.PoolID, Deposit{AmountA: dec("1"), AmountB: dec("1"), LPTokens: dec("1")})
	require.NoError(t, err)

	_, err = l.RemoveFrom(ctx, p, dec("100"))
	require.True(t, ledger.IsConflict(err), "unexpected error: %v", err)

	stored, err := store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.LPTokens.Equal(dec("101")))
}

// racingStore hides the wallet's position from the first lookup, as if a
// concurrent deposit opened it between FindPosition and CreatePosition.
type racingStore struct {
	*memory.Store
	hidden bool
}

func (r *racingStore) FindPosition(ctx context.Context, wallet, poolID string) (model.LiquidityPosition, error) {
	if !r.hidden {
		r.hidden = true
		return model.LiquidityPosition{}, ledger.NotFound("position.find", "position not found")
	}
	return r.Store.FindPosition(ctx, wallet, poolID)
}

func TestAddLiquidityMergesConcurrentOpen(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)
	l := NewLiquidity(&racingStore{Store: store}, nil)

	got, created, err := l.AddLiquidity(ctx, p.UserWallet, p.PoolID, Deposit{AmountA: dec("5"), AmountB: dec("20"), LPTokens: dec("10")})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, p.ID, got.ID)
	require.True(t, got.LPTokens.Equal(dec("110")))

	positions, err := store.ListPositionsByPool(ctx, p.PoolID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestBindMint(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := seedPosition(t, store)
	l := NewLiquidity(store, nil)

	bound, err := l.BindMint(ctx, p.ID, "42")
	require.NoError(t, err)
	require.Equal(t, "42", bound.PositionMint)
	require.Equal(t, p.Version+1, bound.Version)

	again, err := l.BindMint(ctx, p.ID, "42")
	require.NoError(t, err)
	require.Equal(t, bound.Version, again.Version)

	_, err = l.BindMint(ctx, p.ID, "43")
	require.True(t, ledger.IsConflict(err))

	_, err = l.BindMint(ctx, "missing", "42")
	require.True(t, ledger.IsNotFound(err))
}

func TestClaimFees(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fs := NewFeeSettlement(store, func() time.Time { return now }, nil)

	_, err := store.AccrueFees(ctx, "pool-1", "wallet-1", dec("5.0"), dec("2.0"))
	require.NoError(t, err)

	claimed, err := fs.ClaimFees(ctx, "pool-1", "wallet-1")
	require.NoError(t, err)
	require.True(t, claimed.UnclaimedFeeA.IsZero())
	require.True(t, claimed.UnclaimedFeeB.IsZero())
	require.NotNil(t, claimed.LastClaimedAt)
	require.Equal(t, now, *claimed.LastClaimedAt)

	again, err := fs.ClaimFees(ctx, "pool-1", "wallet-1")
	require.NoError(t, err)
	require.False(t, again.HasUnclaimed())
}

func TestClaimFeesNotFoundTwice(t *testing.T) {
	ctx := context.Background()
	fs := NewFeeSettlement(memory.New(), nil, nil)

	for i := 0; i < 2; i++ {
		_, err := fs.ClaimFees(ctx, "pool-1", "wallet-1")
		require.True(t, ledger.IsNotFound(err))
		require.Equal(t, "no unclaimed fees found", ledger.Message(err))
	}
}

func TestFeeCreditsFollowFeeSide(t *testing.T) {
	pool := model.Pool{ID: "pool-1", TokenAID: "tok-a", TokenBID: "tok-b"}
	positions := []model.LiquidityPosition{
		{UserWallet: "alice", PoolID: "pool-1", LPTokens: dec("3")},
		{UserWallet: "bob", PoolID: "pool-1", LPTokens: dec("1")},
	}

	credits := FeeCredits(pool, positions, "tok-b", dec("4"))
	require.Len(t, credits, 2)
	require.Equal(t, "alice", credits[0].UserWallet)
	require.True(t, credits[0].FeeA.IsZero())
	require.True(t, credits[0].FeeB.Equal(dec("3")))
	require.True(t, credits[1].FeeB.Equal(dec("1")))

	credits = FeeCredits(pool, positions, "tok-a", dec("4"))
	require.True(t, credits[0].FeeA.Equal(dec("3")))
	require.True(t, credits[0].FeeB.IsZero())

	require.Empty(t, FeeCredits(pool, nil, "tok-a", dec("4")))
}
