package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/paahaad/hypernova-sub001/internal/chain/chaintest"
	"github.com/paahaad/hypernova-sub001/internal/dex"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/settlement"
)

func TestRemoveLiquidityPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")

	res, err := f.svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("40")})
	require.NoError(t, err)
	require.False(t, res.Closed)
	require.Nil(t, res.Tx)
	require.True(t, res.Position.LPTokens.Equal(dec("60")))
	require.True(t, res.Position.AmountTokenA.Equal(dec("30")))
	require.True(t, res.Position.AmountTokenB.Equal(dec("120")))
	require.True(t, res.WithdrawnA.Equal(dec("20")))

	stored, err := f.store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.LPTokens.Equal(dec("60")))
	require.Empty(t, f.adapter.liquidity)
}

func TestRemoveLiquidityFullClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")

	res, err := f.svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("100")})
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.False(t, res.OverWithdrawal)

	_, err = f.store.GetPosition(ctx, p.ID)
	requireKind(t, ledger.KindNotFound, err)
}

func TestRemoveLiquidityOverWithdrawalCloses(t *testing.T) {
	f := newFixture(t)
	p := f.position(t, walletA, "100", "50", "200")

	res, err := f.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("150")})
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.True(t, res.OverWithdrawal)
	require.True(t, res.WithdrawnB.Equal(dec("200")))
}

func TestRemoveLiquidityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")

	tests := []struct {
		name string
		req  RemoveLiquidityRequest
		kind ledger.Kind
	}{
		{"missing id", RemoveLiquidityRequest{LPAmount: dec("1")}, ledger.KindInvalidInput},
		{"zero amount", RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("0")}, ledger.KindInvalidInput},
		{"negative amount", RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("-5")}, ledger.KindInvalidInput},
		{"unknown position", RemoveLiquidityRequest{PositionID: "missing", LPAmount: dec("1")}, ledger.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RemoveLiquidity(ctx, tt.req)
			requireKind(t, tt.kind, err)
		})
	}

	stored, err := f.store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)
}

func TestRemoveLiquidityInteractive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")

	res, err := f.svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("40"), ClientOrigin: "ui"})
	require.NoError(t, err)
	require.Equal(t, []byte("liquidity-tx"), res.Tx)

	require.Len(t, f.adapter.liquidity, 1)
	call := f.adapter.liquidity[0]
	require.True(t, call.change.Remove)
	require.Equal(t, walletA, call.wallet)
	require.Equal(t, "0x10", call.change.PositionMint)
	require.True(t, call.change.LPTokens.Equal(dec("40")))
	require.True(t, call.change.Share.Equal(dec("0.4")), call.change.Share.String())
	require.True(t, call.change.AmountB.Equal(dec("80")))
}

func TestRemoveLiquidityInteractiveFullShare(t *testing.T) {
	f := newFixture(t)
	p := f.position(t, walletA, "100", "50", "200")

	res, err := f.svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("250"), ClientOrigin: "ui"})
	require.NoError(t, err)
	require.True(t, res.Closed)

	call := f.adapter.liquidity[0]
	require.True(t, call.change.Share.Equal(dec("1")))
	require.True(t, call.change.LPTokens.Equal(dec("100")))
}

func TestRemoveLiquidityInteractiveUsesOneSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")
	f.adapter.during = func() {
		_, err := f.svc.AddLiquidity(ctx, AddLiquidityRequest{Wallet: walletA, PoolID: f.pool.ID, AmountA: dec("5"), AmountB: dec("20"), LPTokens: dec("10")})
		require.NoError(t, err)
	}

	_, err := f.svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("100"), ClientOrigin: "ui"})
	requireKind(t, ledger.KindConflict, err)

	stored, err := f.store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.LPTokens.Equal(dec("110")))
}

func TestRemoveLiquiditySettlementFailureLeavesPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.position(t, walletA, "100", "50", "200")
	f.adapter.err = errors.New("rpc unavailable")

	_, err := f.svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("100"), ClientOrigin: "ui"})
	requireKind(t, ledger.KindUpstream, err)

	stored, err := f.store.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.LPTokens.Equal(dec("100")))
}

func TestInteractiveWithoutSettlement(t *testing.T) {
	f := newFixture(t)
	svc, err := New(Deps{Store: f.store}, nil)
	require.NoError(t, err)
	p := f.position(t, walletA, "100", "50", "200")

	_, err = svc.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{PositionID: p.ID, LPAmount: dec("1"), ClientOrigin: "ui"})
	requireKind(t, ledger.KindUpstream, err)
	require.Contains(t, ledger.Message(err), "settlement")
}

func TestAddLiquidityCreatesThenGrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AddLiquidity(ctx, AddLiquidityRequest{
		Wallet:   walletA,
		PoolID:   f.pool.ID,
		AmountA:  dec("50"),
		AmountB:  dec("200"),
		LPTokens: dec("100"),
	})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.AddLiquidity(ctx, AddLiquidityRequest{
		Wallet:   walletA,
		PoolID:   f.pool.ID,
		AmountA:  dec("5"),
		AmountB:  dec("20"),
		LPTokens: dec("10"),
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Position.ID, second.Position.ID)
	require.True(t, second.Position.LPTokens.Equal(dec("110")))
	require.True(t, second.Position.AmountTokenB.Equal(dec("220")))
}

func TestAddLiquidityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddLiquidity(ctx, AddLiquidityRequest{Wallet: walletA, PoolID: "missing", AmountA: dec("1"), AmountB: dec("1"), LPTokens: dec("1")})
	requireKind(t, ledger.KindNotFound, err)

	_, err = f.svc.AddLiquidity(ctx, AddLiquidityRequest{Wallet: walletA, PoolID: f.pool.ID, AmountA: dec("1"), AmountB: dec("0"), LPTokens: dec("1")})
	requireKind(t, ledger.KindInvalidInput, err)

	_, err = f.svc.AddLiquidity(ctx, AddLiquidityRequest{PoolID: f.pool.ID, AmountA: dec("1"), AmountB: dec("1"), LPTokens: dec("1")})
	requireKind(t, ledger.KindInvalidInput, err)
}

func TestAddLiquidityRecordsReportedMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := AddLiquidityRequest{Wallet: walletA, PoolID: f.pool.ID, AmountA: dec("1"), AmountB: dec("1"), LPTokens: dec("1"), PositionMint: "0x2a"}

	res, err := f.svc.AddLiquidity(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "42", res.Position.PositionMint)

	req.PositionMint = "42"
	_, err = f.svc.AddLiquidity(ctx, req)
	require.NoError(t, err)

	req.PositionMint = "43"
	_, err = f.svc.AddLiquidity(ctx, req)
	requireKind(t, ledger.KindConflict, err)

	req.PositionMint = "0x" + strings.Repeat("ab", 32)
	_, err = f.svc.AddLiquidity(ctx, req)
	requireKind(t, ledger.KindInvalidInput, err)
}

func TestAddLiquidityInteractiveNeedsConfirmedMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := AddLiquidityRequest{Wallet: walletA, PoolID: f.pool.ID, AmountA: dec("1"), AmountB: dec("1"), LPTokens: dec("1"), ClientOrigin: "ui"}

	first, err := f.svc.AddLiquidity(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Empty(t, first.Position.PositionMint)
	require.Empty(t, f.adapter.liquidity[0].change.PositionMint)

	_, err = f.svc.AddLiquidity(ctx, req)
	requireKind(t, ledger.KindInvalidInput, err)
	require.Len(t, f.adapter.liquidity, 1)

	_, err = f.svc.ConfirmPositionMint(ctx, ConfirmPositionMintRequest{PositionID: first.Position.ID, PositionMint: "7"})
	require.NoError(t, err)

	second, err := f.svc.AddLiquidity(ctx, req)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, "7", f.adapter.liquidity[1].change.PositionMint)
}

func TestConfirmPositionMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.store.CreatePosition(ctx, model.LiquidityPosition{UserWallet: walletA, PoolID: f.pool.ID, AmountTokenA: dec("1"), AmountTokenB: dec("1"), LPTokens: dec("1")})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  ConfirmPositionMintRequest
		kind ledger.Kind
	}{
		{"missing id", ConfirmPositionMintRequest{PositionMint: "1"}, ledger.KindInvalidInput},
		{"missing mint", ConfirmPositionMintRequest{PositionID: p.ID}, ledger.KindInvalidInput},
		{"position key", ConfirmPositionMintRequest{PositionID: p.ID, PositionMint: "0x" + strings.Repeat("cd", 32)}, ledger.KindInvalidInput},
		{"unknown position", ConfirmPositionMintRequest{PositionID: "missing", PositionMint: "1"}, ledger.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ConfirmPositionMint(ctx, tt.req)
			requireKind(t, tt.kind, err)
		})
	}

	bound, err := f.svc.ConfirmPositionMint(ctx, ConfirmPositionMintRequest{PositionID: p.ID, PositionMint: "0x2a"})
	require.NoError(t, err)
	require.Equal(t, "42", bound.PositionMint)

	_, err = f.svc.ConfirmPositionMint(ctx, ConfirmPositionMintRequest{PositionID: p.ID, PositionMint: "42"})
	require.NoError(t, err)
	_, err = f.svc.ConfirmPositionMint(ctx, ConfirmPositionMintRequest{PositionID: p.ID, PositionMint: "43"})
	requireKind(t, ledger.KindConflict, err)
}

// positionCall mirrors the token id and liquidity fields of the position
// manager's call parameters.
type positionCall struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type increaseCall struct {
	TokenId        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

func unpackCall(t *testing.T, handle []byte, method string) interface{} {
	t.Helper()
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(handle))
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	m := parsed.Methods[method]
	require.Equal(t, m.ID, tx.Data()[:4], "expected a %s call", method)
	values, err := m.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0]
}

func TestInteractiveLiquidityRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	positionManager := common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")

	node := chaintest.New()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	zero := big.NewInt(0)
	require.NoError(t, node.Respond(positionManager, parsed.Methods["positions"],
		zero, common.Address{},
		common.HexToAddress(f.tokenA.MintAddress), common.HexToAddress(f.tokenB.MintAddress),
		big.NewInt(3000), big.NewInt(-600), big.NewInt(600),
		big.NewInt(1_000_000),
		zero, zero, zero, zero,
	))
	evm, err := settlement.NewEVM(node, settlement.EVMConfig{
		PositionManager: positionManager,
		SwapRouter:      common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
	}, nil, nil)
	require.NoError(t, err)
	svc, err := New(Deps{Store: f.store, Settlement: evm}, nil)
	require.NoError(t, err)

	deposit := AddLiquidityRequest{
		Wallet:       walletA,
		PoolID:       f.pool.ID,
		AmountA:      dec("1000"),
		AmountB:      dec("0.5"),
		LPTokens:     dec("10"),
		TickLower:    -600,
		TickUpper:    600,
		ClientOrigin: "ui",
	}
	opened, err := svc.AddLiquidity(ctx, deposit)
	require.NoError(t, err)
	require.True(t, opened.Created)
	require.Empty(t, opened.Position.PositionMint)
	unpackCall(t, opened.Tx, "mint")

	// The client broadcasts the mint and reports the token id it was given.
	_, err = svc.ConfirmPositionMint(ctx, ConfirmPositionMintRequest{PositionID: opened.Position.ID, PositionMint: "4242"})
	require.NoError(t, err)

	grown, err := svc.AddLiquidity(ctx, deposit)
	require.NoError(t, err)
	require.True(t, grown.Position.LPTokens.Equal(dec("20")))
	inc := *abi.ConvertType(unpackCall(t, grown.Tx, "increaseLiquidity"), new(increaseCall)).(*increaseCall)
	require.Equal(t, int64(4242), inc.TokenId.Int64())
	require.Equal(t, "1000000000", inc.Amount0Desired.String())

	removed, err := svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: opened.Position.ID, LPAmount: dec("5"), ClientOrigin: "ui"})
	require.NoError(t, err)
	require.True(t, removed.Position.LPTokens.Equal(dec("15")))
	dec1 := *abi.ConvertType(unpackCall(t, removed.Tx, "decreaseLiquidity"), new(positionCall)).(*positionCall)
	require.Equal(t, int64(4242), dec1.TokenId.Int64())
	require.Equal(t, "250000", dec1.Liquidity.String())

	closed, err := svc.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: opened.Position.ID, LPAmount: dec("15"), ClientOrigin: "ui"})
	require.NoError(t, err)
	require.True(t, closed.Closed)
	dec2 := *abi.ConvertType(unpackCall(t, closed.Tx, "decreaseLiquidity"), new(positionCall)).(*positionCall)
	require.Equal(t, "1000000", dec2.Liquidity.String())
}

func TestListPositionsForWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.position(t, walletA, "100", "50", "200")
	f.position(t, walletB, "10", "5", "20")

	views, err := f.svc.ListPositionsForWallet(ctx, walletA)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Pool)
	require.Equal(t, "USDC", views[0].TokenA.Symbol)
	require.Equal(t, "WETH", views[0].TokenB.Symbol)

	views, err = f.svc.ListPositionsForWallet(ctx, "0xnobody")
	require.NoError(t, err)
	require.NotNil(t, views)
	require.Empty(t, views)
}
