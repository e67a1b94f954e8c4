package settlement

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paahaad/hypernova-sub001/internal/chain/chaintest"
	"github.com/paahaad/hypernova-sub001/internal/dex"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

var (
	positionManager = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	swapRouter      = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	owner           = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	fixedNow        = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testMarket() Market {
	return Market{
		Pool: model.Pool{
			ID:          "pool-1",
			TokenAMint:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			TokenBMint:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			FeeRate:     3000,
			TickSpacing: 60,
		},
		TokenA: model.Token{Symbol: "USDC", Decimals: 6},
		TokenB: model.Token{Symbol: "WETH", Decimals: 18},
	}
}

func newTestEVM(t *testing.T, fake *chaintest.Fake, gasLimit uint64) *EVM {
	t.Helper()
	e, err := NewEVM(fake, EVMConfig{
		PositionManager: positionManager,
		SwapRouter:      swapRouter,
		GasLimit:        gasLimit,
	}, func() time.Time { return fixedNow }, nil)
	require.NoError(t, err)
	return e
}

func decodeTx(t *testing.T, handle []byte) *types.Transaction {
	t.Helper()
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(handle))
	return tx
}

func decodeCall(t *testing.T, parsed abi.ABI, method string, data []byte) []interface{} {
	t.Helper()
	m, ok := parsed.Methods[method]
	require.True(t, ok)
	require.Equal(t, m.ID, data[:4])
	values, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// respondPosition makes positions(tokenId) report liquidity for every token id.
func respondPosition(t *testing.T, fake *chaintest.Fake, liquidity int64) {
	t.Helper()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	market := testMarket()
	zero := big.NewInt(0)
	require.NoError(t, fake.Respond(positionManager, parsed.Methods["positions"],
		zero,
		common.Address{},
		common.HexToAddress(market.Pool.TokenAMint),
		common.HexToAddress(market.Pool.TokenBMint),
		big.NewInt(3000),
		big.NewInt(-600),
		big.NewInt(600),
		big.NewInt(liquidity),
		zero, zero, zero, zero,
	))
}

func TestSubmitLiquidityChangeMintFullRange(t *testing.T) {
	fake := chaintest.New()
	fake.ChainIDValue = big.NewInt(8453)
	fake.Nonce = 7
	e := newTestEVM(t, fake, 0)

	receipt, err := e.SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
		AmountA:  dec("1.5"),
		AmountB:  dec("0.25"),
		LPTokens: dec("10"),
	}, PriceRange{})
	require.NoError(t, err)
	require.Empty(t, receipt.PositionMint)

	tx := decodeTx(t, receipt.TxHandle)
	require.Equal(t, positionManager, *tx.To())
	require.Equal(t, int64(8453), tx.ChainId().Int64())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, fake.Gas, tx.Gas())

	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	values := decodeCall(t, parsed, "mint", tx.Data())
	params := *abi.ConvertType(values[0], new(mintParams)).(*mintParams)
	require.Equal(t, int64(-887220), params.TickLower.Int64())
	require.Equal(t, int64(887220), params.TickUpper.Int64())
	require.Equal(t, "1500000", params.Amount0Desired.String())
	require.Equal(t, "250000000000000000", params.Amount1Desired.String())
	require.Equal(t, owner, params.Recipient)
	require.Equal(t, int64(3000), params.Fee.Int64())
	require.Equal(t, fixedNow.Add(defaultDeadline).Unix(), params.Deadline.Int64())
}

func TestSubmitLiquidityChangeRejectsMisalignedTicks(t *testing.T) {
	e := newTestEVM(t, chaintest.New(), 0)

	_, err := e.SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
		AmountA: dec("1"),
		AmountB: dec("1"),
	}, PriceRange{TickLower: -100, TickUpper: 120})
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	_, err = e.SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
		AmountA: dec("1"),
		AmountB: dec("1"),
	}, PriceRange{TickLower: 120, TickUpper: -120})
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))
}

func TestSubmitLiquidityChangeIncreasesKnownPosition(t *testing.T) {
	e := newTestEVM(t, chaintest.New(), 0)

	receipt, err := e.SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
		AmountA:      dec("2"),
		AmountB:      dec("0.001"),
		LPTokens:     dec("10"),
		PositionMint: "0x2a",
	}, PriceRange{TickLower: -100, TickUpper: 120})
	require.NoError(t, err)
	require.Equal(t, "42", receipt.PositionMint)

	tx := decodeTx(t, receipt.TxHandle)
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	values := decodeCall(t, parsed, "increaseLiquidity", tx.Data())
	params := *abi.ConvertType(values[0], new(increaseLiquidityParams)).(*increaseLiquidityParams)
	require.Equal(t, int64(42), params.TokenId.Int64())
	require.Equal(t, "2000000", params.Amount0Desired.String())
	require.Equal(t, "1000000000000000", params.Amount1Desired.String())
}

func TestSubmitLiquidityChangeDecreaseUsesOnChainLiquidity(t *testing.T) {
	tests := []struct {
		name  string
		share string
		want  string
	}{
		{name: "quarter", share: "0.25", want: "250000"},
		{name: "rounds down", share: "0.3333333333333333", want: "333333"},
		{name: "whole position", share: "1", want: "1000000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := chaintest.New()
			respondPosition(t, fake, 1_000_000)
			e := newTestEVM(t, fake, 0)

			receipt, err := e.SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
				Remove:       true,
				LPTokens:     dec("2.5"),
				Share:        dec(tc.share),
				PositionMint: "0x10",
			}, PriceRange{})
			require.NoError(t, err)
			require.Equal(t, "16", receipt.PositionMint)
			require.Equal(t, 1, fake.Calls())

			tx := decodeTx(t, receipt.TxHandle)
			parsed, err := dex.PositionManagerABI()
			require.NoError(t, err)
			values := decodeCall(t, parsed, "decreaseLiquidity", tx.Data())
			params := *abi.ConvertType(values[0], new(decreaseLiquidityParams)).(*decreaseLiquidityParams)
			require.Equal(t, int64(16), params.TokenId.Int64())
			require.Equal(t, tc.want, params.Liquidity.String())
		})
	}
}

func TestSubmitLiquidityChangeDecreaseRejects(t *testing.T) {
	positionKey := "0x" + strings.Repeat("ab", 32)

	tests := []struct {
		name   string
		change LiquidityChange
		held   int64
		kind   ledger.Kind
	}{
		{name: "no token id", change: LiquidityChange{Remove: true, Share: dec("1")}, held: 10, kind: ledger.KindInvalidInput},
		{name: "position key", change: LiquidityChange{Remove: true, Share: dec("1"), PositionMint: positionKey}, held: 10, kind: ledger.KindInvalidInput},
		{name: "zero token id", change: LiquidityChange{Remove: true, Share: dec("1"), PositionMint: "0"}, held: 10, kind: ledger.KindInvalidInput},
		{name: "zero share", change: LiquidityChange{Remove: true, PositionMint: "7"}, held: 10, kind: ledger.KindInvalidInput},
		{name: "share above one", change: LiquidityChange{Remove: true, Share: dec("1.5"), PositionMint: "7"}, held: 10, kind: ledger.KindInvalidInput},
		{name: "empty on chain", change: LiquidityChange{Remove: true, Share: dec("1"), PositionMint: "7"}, held: 0, kind: ledger.KindConflict},
		{name: "dust", change: LiquidityChange{Remove: true, Share: dec("0.01"), PositionMint: "7"}, held: 10, kind: ledger.KindInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := chaintest.New()
			respondPosition(t, fake, tc.held)
			_, err := newTestEVM(t, fake, 0).SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), tc.change, PriceRange{})
			require.Equal(t, tc.kind, ledger.KindOf(err), "error: %v", err)
		})
	}
}

func TestSubmitLiquidityChangeDecreaseReadFailure(t *testing.T) {
	_, err := newTestEVM(t, chaintest.New(), 0).SubmitLiquidityChange(context.Background(), testMarket(), owner.Hex(), LiquidityChange{
		Remove:       true,
		Share:        dec("1"),
		PositionMint: "7",
	}, PriceRange{})
	require.Equal(t, ledger.KindUpstream, ledger.KindOf(err))
}

func TestParseTokenID(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "42", want: "42", ok: true},
		{input: " 0x2a ", want: "42", ok: true},
		{input: "", ok: false},
		{input: "-1", ok: false},
		{input: "0", ok: false},
		{input: "pos-1", ok: false},
		{input: "0x" + strings.Repeat("ff", 32), ok: false},
	}
	for _, tc := range tests {
		got, err := ParseTokenID("test", tc.input)
		if !tc.ok {
			require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err), "input %q", tc.input)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got.String())
	}
}

func TestSubmitFeeCollection(t *testing.T) {
	e := newTestEVM(t, chaintest.New(), 0)

	receipt, err := e.SubmitFeeCollection(context.Background(), testMarket(), owner.Hex(), "42")
	require.NoError(t, err)

	tx := decodeTx(t, receipt.TxHandle)
	require.Equal(t, positionManager, *tx.To())
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	values := decodeCall(t, parsed, "collect", tx.Data())
	params := *abi.ConvertType(values[0], new(collectParams)).(*collectParams)
	require.Equal(t, int64(42), params.TokenId.Int64())
	require.Equal(t, owner, params.Recipient)
	require.Equal(t, 128, params.Amount0Max.BitLen())
	require.Equal(t, 0, params.Amount1Max.Cmp(maxUint128))

	_, err = e.SubmitFeeCollection(context.Background(), testMarket(), owner.Hex(), "")
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))
}

func TestSubmitSwapBToA(t *testing.T) {
	e := newTestEVM(t, chaintest.New(), 0)
	market := testMarket()

	receipt, err := e.SubmitSwap(context.Background(), market, owner.Hex(), dec("0.5"), BToA, dec("900"))
	require.NoError(t, err)
	require.Empty(t, receipt.PositionMint)

	tx := decodeTx(t, receipt.TxHandle)
	require.Equal(t, swapRouter, *tx.To())

	parsed, err := dex.SwapRouterABI()
	require.NoError(t, err)
	values := decodeCall(t, parsed, "exactInputSingle", tx.Data())
	params := *abi.ConvertType(values[0], new(exactInputSingleParams)).(*exactInputSingleParams)
	require.Equal(t, common.HexToAddress(market.Pool.TokenBMint), params.TokenIn)
	require.Equal(t, common.HexToAddress(market.Pool.TokenAMint), params.TokenOut)
	require.Equal(t, "500000000000000000", params.AmountIn.String())
	require.Equal(t, "900000000", params.AmountOutMinimum.String())
}

func TestSubmitSwapValidation(t *testing.T) {
	e := newTestEVM(t, chaintest.New(), 0)

	_, err := e.SubmitSwap(context.Background(), testMarket(), "not-a-wallet", dec("1"), AToB, decimal.Zero)
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	_, err = e.SubmitSwap(context.Background(), testMarket(), owner.Hex(), decimal.Zero, AToB, decimal.Zero)
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	_, err = e.SubmitSwap(context.Background(), testMarket(), owner.Hex(), dec("1"), AToB, dec("-1"))
	require.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))
}

func TestGasEstimationFallback(t *testing.T) {
	fake := chaintest.New()
	fake.EstimateErr = errors.New("execution reverted: STF")

	_, err := newTestEVM(t, fake, 0).SubmitSwap(context.Background(), testMarket(), owner.Hex(), dec("1"), AToB, decimal.Zero)
	require.Equal(t, ledger.KindUpstream, ledger.KindOf(err))

	receipt, err := newTestEVM(t, fake, 300_000).SubmitSwap(context.Background(), testMarket(), owner.Hex(), dec("1"), AToB, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, uint64(300_000), decodeTx(t, receipt.TxHandle).Gas())
}
