package aggregate

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/storage"
	"github.com/paahaad/hypernova-sub001/internal/storage/memory"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedLedger(t *testing.T) (*memory.Store, model.Pool) {
	t.Helper()
	ctx := context.Background()
	store := memory.New(memory.WithClock(func() time.Time { return testNow }))

	tokenA, err := store.CreateToken(ctx, model.Token{MintAddress: "mint-a", Symbol: "AAA"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	tokenB, err := store.CreateToken(ctx, model.Token{MintAddress: "mint-b", Symbol: "BBB"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	pool, err := store.CreatePool(ctx, model.Pool{
		PoolAddress: "pool-1",
		TokenAID:    tokenA.ID,
		TokenBID:    tokenB.ID,
		FeeRate:     3000,
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	swaps := []model.Swap{
		{TxHash: "tx-1", TokenInID: tokenA.ID, TokenOutID: tokenB.ID, AmountIn: dec("100"), AmountOut: dec("200"), Timestamp: testNow.Add(-time.Hour)},
		{TxHash: "tx-2", TokenInID: tokenB.ID, TokenOutID: tokenA.ID, AmountIn: dec("50"), AmountOut: dec("25"), Timestamp: testNow.Add(-30 * time.Minute)},
		{TxHash: "tx-old", TokenInID: tokenA.ID, TokenOutID: tokenB.ID, AmountIn: dec("1000"), AmountOut: dec("1"), Timestamp: testNow.Add(-25 * time.Hour)},
	}
	for _, swap := range swaps {
		swap.PoolID = pool.ID
		swap.UserWallet = "wallet-1"
		if _, err := store.CreateSwap(ctx, swap); err != nil {
			t.Fatalf("create swap: %v", err)
		}
	}

	if _, err := store.CreatePosition(ctx, model.LiquidityPosition{
		UserWallet:   "wallet-1",
		PoolID:       pool.ID,
		AmountTokenA: dec("100"),
		AmountTokenB: dec("200"),
		LPTokens:     dec("10"),
	}); err != nil {
		t.Fatalf("create position: %v", err)
	}
	return store, pool
}

func TestAggregatorRun(t *testing.T) {
	store, pool := seedLedger(t)
	sinkPath := filepath.Join(t.TempDir(), "metrics.jsonl")

	agg := NewAggregator(Config{Sink: storage.NewMetricsFile(sinkPath)}, store, func() time.Time { return testNow }, nil)
	batch, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 metrics row, got %d", len(batch))
	}

	m := batch[0]
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"volume_a", m.VolumeA, "125"},
		{"volume_b", m.VolumeB, "250"},
		{"fees_a", m.FeesA, "0.3"},
		{"fees_b", m.FeesB, "0.15"},
		{"fees", m.Fees, "0.75"},
		{"tvl", m.TVL, "400"},
		{"apr", m.APR, "0.684375"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Fatalf("%s: got %s want %s", c.name, c.got, c.want)
		}
	}
	if m.SwapCount != 2 {
		t.Fatalf("swap count: got %d want 2", m.SwapCount)
	}

	stored, err := store.GetPool(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if !stored.Volume24h.Equal(dec("250")) || !stored.APR24h.Equal(dec("0.684375")) || !stored.Liquidity.Equal(dec("400")) {
		t.Fatalf("pool metrics not persisted: %+v", stored)
	}

	file, err := os.Open(sinkPath)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected a jsonl line")
	}
	var exported model.PoolMetrics
	if err := json.Unmarshal(scanner.Bytes(), &exported); err != nil {
		t.Fatalf("decode sink line: %v", err)
	}
	if exported.PoolID != pool.ID {
		t.Fatalf("exported pool mismatch: %s", exported.PoolID)
	}
}

func TestAggregatorEmptyPool(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.CreatePool(ctx, model.Pool{PoolAddress: "idle", TokenAID: "a", TokenBID: "b", FeeRate: 500}); err != nil {
		t.Fatalf("create pool: %v", err)
	}

	batch, err := NewAggregator(Config{}, store, func() time.Time { return testNow }, nil).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(batch) != 1 || !batch[0].Fees.IsZero() || !batch[0].APR.IsZero() {
		t.Fatalf("expected zero metrics, got %+v", batch)
	}
}

func TestAggregatorMinInterval(t *testing.T) {
	store, _ := seedLedger(t)
	state := &FileCheckpoint{Path: filepath.Join(t.TempDir(), "state", "metrics.json")}
	now := testNow

	agg := NewAggregator(Config{Checkpoint: state, MinInterval: time.Hour}, store, func() time.Time { return now }, nil)
	if batch, err := agg.Run(context.Background()); err != nil || batch == nil {
		t.Fatalf("first run: batch=%v err=%v", batch, err)
	}

	now = testNow.Add(10 * time.Minute)
	batch, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if batch != nil {
		t.Fatalf("expected skipped run")
	}

	now = testNow.Add(2 * time.Hour)
	if batch, err := agg.Run(context.Background()); err != nil || batch == nil {
		t.Fatalf("third run: batch=%v err=%v", batch, err)
	}

	last, ok, err := state.LastRun(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if !last.Equal(now) {
		t.Fatalf("state mismatch: %s != %s", last, now)
	}
}

func TestAccumulatorRejectsForeignSwap(t *testing.T) {
	acc := NewAccumulator(model.Pool{ID: "p1", TokenAID: "a", TokenBID: "b"}, testNow.Add(-time.Hour), testNow)
	if err := acc.AddSwap(model.Swap{ID: "s1", PoolID: "p2"}); err == nil {
		t.Fatalf("expected pool mismatch error")
	}
	if err := acc.AddSwap(model.Swap{ID: "s2", PoolID: "p1", TokenInID: "a", TokenOutID: "c"}); err == nil {
		t.Fatalf("expected token mismatch error")
	}
	if acc.SwapCount != 0 {
		t.Fatalf("rejected swaps must not count")
	}
}

func TestComputeAPR(t *testing.T) {
	if got := computeAPR(dec("1"), decimal.Zero, 24*time.Hour); !got.IsZero() {
		t.Fatalf("expected zero apr without tvl, got %s", got)
	}
	if got := computeAPR(dec("1"), dec("365"), 24*time.Hour); !got.Equal(dec("1")) {
		t.Fatalf("apr mismatch: %s", got)
	}
}
