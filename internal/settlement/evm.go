package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/chain"
	"github.com/paahaad/hypernova-sub001/internal/dex"
	"github.com/paahaad/hypernova-sub001/internal/ledger"
)

const (
	minTick = -887272
	maxTick = 887272

	// The position manager numbers positions with a uint176 counter.
	tokenIDBits = 176

	defaultDeadline = 20 * time.Minute
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// EVMConfig points the adapter at the periphery contracts.
type EVMConfig struct {
	PositionManager common.Address
	SwapRouter      common.Address

	// GasLimit is used when estimation fails. Zero makes estimation failures fatal.
	GasLimit uint64
	Deadline time.Duration
}

// EVM builds unsigned EIP-1559 transactions against a V3-style position
// manager and swap router. TxHandle is the transaction's binary encoding.
type EVM struct {
	chain  chain.Reader
	cfg    EVMConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewEVM(node chain.Reader, cfg EVMConfig, now func() time.Time, logger *zap.Logger) (*EVM, error) {
	if node == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.PositionManager == (common.Address{}) {
		return nil, fmt.Errorf("position manager address is required")
	}
	if cfg.SwapRouter == (common.Address{}) {
		return nil, fmt.Errorf("swap router address is required")
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EVM{chain: node, cfg: cfg, now: now, logger: logger}, nil
}

type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type increaseLiquidityParams struct {
	TokenId        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

func (e *EVM) SubmitLiquidityChange(ctx context.Context, market Market, wallet string, change LiquidityChange, priceRange PriceRange) (Receipt, error) {
	const op = "settlement.liquidity"
	owner, err := parseAddress(op, "wallet", wallet)
	if err != nil {
		return Receipt{}, err
	}
	parsed, err := dex.PositionManagerABI()
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("parse position manager abi: %w", err))
	}

	if change.Remove {
		return e.decrease(ctx, op, parsed, owner, change)
	}

	amount0, err := toUnits(op, "amount_token_a", change.AmountA, int32(market.TokenA.Decimals), 256)
	if err != nil {
		return Receipt{}, err
	}
	amount1, err := toUnits(op, "amount_token_b", change.AmountB, int32(market.TokenB.Decimals), 256)
	if err != nil {
		return Receipt{}, err
	}

	if change.PositionMint != "" {
		tokenID, err := ParseTokenID(op, change.PositionMint)
		if err != nil {
			return Receipt{}, err
		}
		data, err := parsed.Pack("increaseLiquidity", increaseLiquidityParams{
			TokenId:        tokenID,
			Amount0Desired: amount0,
			Amount1Desired: amount1,
			Amount0Min:     big.NewInt(0),
			Amount1Min:     big.NewInt(0),
			Deadline:       e.deadline(),
		})
		if err != nil {
			return Receipt{}, ledger.Upstream(op, fmt.Errorf("pack increaseLiquidity: %w", err))
		}
		handle, err := e.build(ctx, op, owner, e.cfg.PositionManager, data)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{TxHandle: handle, PositionMint: tokenID.String()}, nil
	}

	token0, err := parseAddress(op, "token_a_mint_address", market.Pool.TokenAMint)
	if err != nil {
		return Receipt{}, err
	}
	token1, err := parseAddress(op, "token_b_mint_address", market.Pool.TokenBMint)
	if err != nil {
		return Receipt{}, err
	}
	lower, upper, err := ticks(op, priceRange, market.Pool.TickSpacing)
	if err != nil {
		return Receipt{}, err
	}
	data, err := parsed.Pack("mint", mintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            new(big.Int).SetUint64(uint64(market.Pool.FeeRate)),
		TickLower:      big.NewInt(int64(lower)),
		TickUpper:      big.NewInt(int64(upper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     big.NewInt(0),
		Amount1Min:     big.NewInt(0),
		Recipient:      owner,
		Deadline:       e.deadline(),
	})
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("pack mint: %w", err))
	}
	handle, err := e.build(ctx, op, owner, e.cfg.PositionManager, data)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxHandle: handle}, nil
}

// decrease burns change.Share of the liquidity the position holds on chain.
func (e *EVM) decrease(ctx context.Context, op string, parsed abi.ABI, owner common.Address, change LiquidityChange) (Receipt, error) {
	tokenID, err := ParseTokenID(op, change.PositionMint)
	if err != nil {
		return Receipt{}, err
	}
	if !change.Share.IsPositive() || change.Share.GreaterThan(decimal.NewFromInt(1)) {
		return Receipt{}, ledger.Invalid(op, "withdrawal share must be in (0, 1]")
	}
	held, err := e.positionLiquidity(ctx, op, parsed, tokenID)
	if err != nil {
		return Receipt{}, err
	}
	if held.Sign() == 0 {
		return Receipt{}, ledger.Conflict(op, "position %s holds no liquidity on chain", tokenID)
	}
	liquidity := held
	if change.Share.LessThan(decimal.NewFromInt(1)) {
		liquidity = decimal.NewFromBigInt(held, 0).Mul(change.Share).Floor().BigInt()
		if liquidity.Sign() == 0 {
			return Receipt{}, ledger.Invalid(op, "withdrawal is below one unit of liquidity")
		}
	}

	data, err := parsed.Pack("decreaseLiquidity", decreaseLiquidityParams{
		TokenId:    tokenID,
		Liquidity:  liquidity,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   e.deadline(),
	})
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("pack decreaseLiquidity: %w", err))
	}
	handle, err := e.build(ctx, op, owner, e.cfg.PositionManager, data)
	if err != nil {
		return Receipt{}, err
	}
	e.logger.Debug("liquidity decrease prepared",
		zap.String("token_id", tokenID.String()),
		zap.String("liquidity", liquidity.String()),
		zap.String("held", held.String()),
	)
	return Receipt{TxHandle: handle, PositionMint: tokenID.String()}, nil
}

// positionLiquidity reads the liquidity field of positions(tokenID).
func (e *EVM) positionLiquidity(ctx context.Context, op string, parsed abi.ABI, tokenID *big.Int) (*big.Int, error) {
	data, err := parsed.Pack("positions", tokenID)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("pack positions: %w", err))
	}
	to := e.cfg.PositionManager
	resp, err := e.chain.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("call positions(%s): %w", tokenID, err))
	}
	values, err := parsed.Unpack("positions", resp)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("unpack positions: %w", err))
	}
	if len(values) < 8 {
		return nil, ledger.Upstream(op, fmt.Errorf("unpack positions: %d values", len(values)))
	}
	liquidity, ok := values[7].(*big.Int)
	if !ok {
		return nil, ledger.Upstream(op, fmt.Errorf("positions liquidity has type %T", values[7]))
	}
	return liquidity, nil
}

// SubmitFeeCollection sweeps everything the position owes to wallet.
func (e *EVM) SubmitFeeCollection(ctx context.Context, market Market, wallet, positionMint string) (Receipt, error) {
	const op = "settlement.collect"
	owner, err := parseAddress(op, "wallet", wallet)
	if err != nil {
		return Receipt{}, err
	}
	tokenID, err := ParseTokenID(op, positionMint)
	if err != nil {
		return Receipt{}, err
	}
	parsed, err := dex.PositionManagerABI()
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("parse position manager abi: %w", err))
	}
	data, err := parsed.Pack("collect", collectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: new(big.Int).Set(maxUint128),
		Amount1Max: new(big.Int).Set(maxUint128),
	})
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("pack collect: %w", err))
	}
	handle, err := e.build(ctx, op, owner, e.cfg.PositionManager, data)
	if err != nil {
		return Receipt{}, err
	}
	e.logger.Debug("fee collection prepared", zap.String("pool_id", market.Pool.ID), zap.String("wallet", wallet))
	return Receipt{TxHandle: handle, PositionMint: positionMint}, nil
}

func (e *EVM) SubmitSwap(ctx context.Context, market Market, wallet string, input decimal.Decimal, direction Direction, minOutput decimal.Decimal) (Receipt, error) {
	const op = "settlement.swap"
	owner, err := parseAddress(op, "wallet", wallet)
	if err != nil {
		return Receipt{}, err
	}
	tokenIn, tokenOut := market.Pool.TokenAMint, market.Pool.TokenBMint
	decimalsIn, decimalsOut := market.TokenA.Decimals, market.TokenB.Decimals
	if direction == BToA {
		tokenIn, tokenOut = tokenOut, tokenIn
		decimalsIn, decimalsOut = decimalsOut, decimalsIn
	}
	in, err := parseAddress(op, "token_in", tokenIn)
	if err != nil {
		return Receipt{}, err
	}
	out, err := parseAddress(op, "token_out", tokenOut)
	if err != nil {
		return Receipt{}, err
	}
	amountIn, err := toUnits(op, "amount_in", input, int32(decimalsIn), 256)
	if err != nil {
		return Receipt{}, err
	}
	if amountIn.Sign() == 0 {
		return Receipt{}, ledger.Invalid(op, "amount_in must be greater than zero")
	}
	amountOutMin, err := toUnits(op, "min_output", minOutput, int32(decimalsOut), 256)
	if err != nil {
		return Receipt{}, err
	}

	parsed, err := dex.SwapRouterABI()
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("parse swap router abi: %w", err))
	}
	data, err := parsed.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           in,
		TokenOut:          out,
		Fee:               new(big.Int).SetUint64(uint64(market.Pool.FeeRate)),
		Recipient:         owner,
		Deadline:          e.deadline(),
		AmountIn:          amountIn,
		AmountOutMinimum:  amountOutMin,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return Receipt{}, ledger.Upstream(op, fmt.Errorf("pack exactInputSingle: %w", err))
	}
	handle, err := e.build(ctx, op, owner, e.cfg.SwapRouter, data)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxHandle: handle}, nil
}

func (e *EVM) build(ctx context.Context, op string, from, to common.Address, data []byte) ([]byte, error) {
	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("chain id: %w", err))
	}
	nonce, err := e.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("pending nonce: %w", err))
	}
	baseFee, err := e.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("gas price: %w", err))
	}
	tip, err := e.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("gas tip: %w", err))
	}

	gas, err := e.chain.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		if e.cfg.GasLimit == 0 {
			return nil, ledger.Upstream(op, fmt.Errorf("estimate gas: %w", err))
		}
		e.logger.Warn("gas estimation failed, using configured limit",
			zap.String("from", from.Hex()),
			zap.Uint64("gas_limit", e.cfg.GasLimit),
			zap.Error(err),
		)
		gas = e.cfg.GasLimit
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: new(big.Int).Add(baseFee, tip),
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, ledger.Upstream(op, fmt.Errorf("encode tx: %w", err))
	}
	e.logger.Debug("built settlement tx",
		zap.String("op", op),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
	)
	return raw, nil
}

func (e *EVM) deadline() *big.Int {
	return big.NewInt(e.now().Add(e.cfg.Deadline).Unix())
}

func ticks(op string, r PriceRange, spacing int32) (int32, int32, error) {
	if spacing <= 0 {
		spacing = 1
	}
	if r.IsZero() {
		return (minTick / spacing) * spacing, (maxTick / spacing) * spacing, nil
	}
	if r.TickLower >= r.TickUpper {
		return 0, 0, ledger.Invalid(op, "tick_lower must be below tick_upper")
	}
	if r.TickLower < minTick || r.TickUpper > maxTick {
		return 0, 0, ledger.Invalid(op, "tick range out of bounds")
	}
	if r.TickLower%spacing != 0 || r.TickUpper%spacing != 0 {
		return 0, 0, ledger.Invalid(op, "ticks must be multiples of tick spacing %d", spacing)
	}
	return r.TickLower, r.TickUpper, nil
}

// ParseTokenID reads a position manager token id in decimal or 0x-hex form.
// Values wider than the manager's id counter are rejected, which also keeps
// 32-byte position keys and hashes out.
func ParseTokenID(op, positionMint string) (*big.Int, error) {
	raw := strings.TrimSpace(positionMint)
	if raw == "" {
		return nil, ledger.Invalid(op, "position has no on-chain token id")
	}
	tokenID, ok := new(big.Int).SetString(raw, 0)
	if !ok || tokenID.Sign() <= 0 || tokenID.BitLen() > tokenIDBits {
		return nil, ledger.Invalid(op, "position_mint is not a position token id: %q", raw)
	}
	return tokenID, nil
}

func parseAddress(op, field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, ledger.Invalid(op, "%s is not a valid address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// toUnits scales a display amount to integer base units, truncating digits
// beyond the token's precision.
func toUnits(op, field string, amount decimal.Decimal, decimals int32, bits int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ledger.Invalid(op, "%s must not be negative", field)
	}
	units := amount.Shift(decimals).BigInt()
	if units.BitLen() > bits {
		return nil, ledger.Invalid(op, "%s overflows uint%d", field, bits)
	}
	return units, nil
}
