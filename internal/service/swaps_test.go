package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
	"github.com/paahaad/hypernova-sub001/internal/storage/memory"
)

func (f *fixture) swapRequest(txHash string) RecordSwapRequest {
	return RecordSwapRequest{
		PoolID:     f.pool.ID,
		Wallet:     walletB,
		TokenInID:  f.tokenA.ID,
		TokenOutID: f.tokenB.ID,
		AmountIn:   dec("1000"),
		AmountOut:  dec("0.5"),
		TxHash:     txHash,
	}
}

func TestRecordSwapAccruesFeesProRata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.position(t, walletA, "75", "50", "200")
	f.position(t, walletB, "25", "5", "20")

	res, err := f.svc.RecordSwap(ctx, f.swapRequest("0xtx1"))
	require.NoError(t, err)
	require.True(t, res.Fee.Equal(dec("3")))
	require.Equal(t, fixedNow, res.Swap.Timestamp)

	a, err := f.store.FindFeeRecord(ctx, f.pool.ID, walletA)
	require.NoError(t, err)
	require.True(t, a.UnclaimedFeeA.Equal(dec("2.25")), a.UnclaimedFeeA.String())
	require.True(t, a.UnclaimedFeeB.IsZero())

	b, err := f.store.FindFeeRecord(ctx, f.pool.ID, walletB)
	require.NoError(t, err)
	require.True(t, b.UnclaimedFeeA.Equal(dec("0.75")))

	reverse := f.swapRequest("0xtx2")
	reverse.TokenInID, reverse.TokenOutID = f.tokenB.ID, f.tokenA.ID
	reverse.AmountIn, reverse.AmountOut = dec("1"), dec("1990")
	_, err = f.svc.RecordSwap(ctx, reverse)
	require.NoError(t, err)

	a, err = f.store.FindFeeRecord(ctx, f.pool.ID, walletA)
	require.NoError(t, err)
	require.True(t, a.UnclaimedFeeB.Equal(dec("0.00225")), a.UnclaimedFeeB.String())
}

// flakySwapStore rejects the first swap write, as a store that loses its
// connection mid-transaction would.
type flakySwapStore struct {
	*memory.Store
	failures int
}

func (s *flakySwapStore) RecordSwap(ctx context.Context, swap model.Swap, credits []model.FeeCredit) (model.Swap, error) {
	if s.failures > 0 {
		s.failures--
		return model.Swap{}, errors.New("connection reset by peer")
	}
	return s.Store.RecordSwap(ctx, swap, credits)
}

func TestRecordSwapFailureLeavesNoPartialCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.position(t, walletA, "75", "50", "200")
	f.position(t, walletB, "25", "5", "20")

	svc, err := New(Deps{Store: &flakySwapStore{Store: f.store, failures: 1}, Now: f.svc.now}, nil)
	require.NoError(t, err)

	_, err = svc.RecordSwap(ctx, f.swapRequest("0xretry"))
	requireKind(t, ledger.KindUpstream, err)

	_, err = f.store.GetSwapByTxHash(ctx, "0xretry")
	requireKind(t, ledger.KindNotFound, err)
	for _, wallet := range []string{walletA, walletB} {
		_, err = f.store.FindFeeRecord(ctx, f.pool.ID, wallet)
		requireKind(t, ledger.KindNotFound, err)
	}

	res, err := svc.RecordSwap(ctx, f.swapRequest("0xretry"))
	require.NoError(t, err)
	require.True(t, res.Fee.Equal(dec("3")))

	a, err := f.store.FindFeeRecord(ctx, f.pool.ID, walletA)
	require.NoError(t, err)
	require.True(t, a.UnclaimedFeeA.Equal(dec("2.25")), a.UnclaimedFeeA.String())
	b, err := f.store.FindFeeRecord(ctx, f.pool.ID, walletB)
	require.NoError(t, err)
	require.True(t, b.UnclaimedFeeA.Equal(dec("0.75")), b.UnclaimedFeeA.String())
}

func TestRecordSwapDuplicateTxHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordSwap(ctx, f.swapRequest("0xdup"))
	require.NoError(t, err)
	_, err = f.svc.RecordSwap(ctx, f.swapRequest("0xdup"))
	requireKind(t, ledger.KindConflict, err)
	require.Equal(t, "transaction already processed", ledger.Message(err))
}

func TestRecordSwapValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign, err := f.svc.CreateToken(ctx, CreateTokenRequest{MintAddress: "mint-x", Symbol: "XXX", Name: "Foreign", Decimals: 9})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*RecordSwapRequest)
		kind   ledger.Kind
	}{
		{"missing tx hash", func(r *RecordSwapRequest) { r.TxHash = "" }, ledger.KindInvalidInput},
		{"zero amount in", func(r *RecordSwapRequest) { r.AmountIn = dec("0") }, ledger.KindInvalidInput},
		{"same tokens", func(r *RecordSwapRequest) { r.TokenOutID = r.TokenInID }, ledger.KindInvalidInput},
		{"unknown pool", func(r *RecordSwapRequest) { r.PoolID = "missing" }, ledger.KindNotFound},
		{"unknown token", func(r *RecordSwapRequest) { r.TokenOutID = "missing" }, ledger.KindNotFound},
		{"token outside pool", func(r *RecordSwapRequest) { r.TokenOutID = foreign.ID }, ledger.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.swapRequest("0x" + tt.name)
			tt.mutate(&req)
			_, err := f.svc.RecordSwap(ctx, req)
			requireKind(t, tt.kind, err)
		})
	}

	swaps, err := f.store.ListSwapsByPool(ctx, f.pool.ID)
	require.NoError(t, err)
	require.Empty(t, swaps)
}

func TestRecordSwapInteractive(t *testing.T) {
	f := newFixture(t)
	req := f.swapRequest("0xui")
	req.TokenInID, req.TokenOutID = f.tokenB.ID, f.tokenA.ID
	req.ClientOrigin = "ui"

	res, err := f.svc.RecordSwap(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []byte("swap-tx"), res.Tx)
	require.Len(t, f.adapter.swaps, 1)
	require.Equal(t, settlement.BToA, f.adapter.swaps[0].direction)
	require.True(t, f.adapter.swaps[0].minOutput.Equal(dec("0.5")))
}

func TestListSwapsForPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordSwap(ctx, f.swapRequest("0xa"))
	require.NoError(t, err)
	_, err = f.svc.RecordSwap(ctx, f.swapRequest("0xb"))
	require.NoError(t, err)

	views, err := f.svc.ListSwapsForPool(ctx, f.pool.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "0xa", views[0].Entity.TxHash)
	require.Equal(t, "USDC", views[0].TokenA.Symbol)
	require.Equal(t, "WETH", views[0].TokenB.Symbol)

	_, err = f.svc.ListSwapsForPool(ctx, "missing")
	requireKind(t, ledger.KindNotFound, err)

	byWallet, err := f.svc.ListSwapsForWallet(ctx, walletB)
	require.NoError(t, err)
	require.Len(t, byWallet, 2)

	none, err := f.svc.ListSwapsForWallet(ctx, walletA)
	require.NoError(t, err)
	require.Empty(t, none)
}
