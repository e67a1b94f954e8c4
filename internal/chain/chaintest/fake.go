// Package chaintest provides an in-memory chain.Reader for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Fake answers eth_call by (contract, selector) and returns fixed values for
// transaction preparation.
type Fake struct {
	ChainIDValue *big.Int
	Nonce        uint64
	GasPrice     *big.Int
	GasTip       *big.Int
	Gas          uint64
	EstimateErr  error
	NonceErr     error

	mu        sync.Mutex
	responses map[common.Address]map[string][]byte
	calls     int
}

func New() *Fake {
	return &Fake{
		ChainIDValue: big.NewInt(1),
		GasPrice:     big.NewInt(30_000_000_000),
		GasTip:       big.NewInt(1_000_000_000),
		Gas:          250_000,
		responses:    make(map[common.Address]map[string][]byte),
	}
}

// Respond registers the ABI-encoded outputs returned for method on contract.
func (f *Fake) Respond(contract common.Address, method abi.Method, outputs ...interface{}) error {
	data, err := method.Outputs.Pack(outputs...)
	if err != nil {
		return fmt.Errorf("pack %s outputs: %w", method.Name, err)
	}
	f.RespondRaw(contract, method.ID, data)
	return nil
}

// RespondRaw registers raw return data for a selector.
func (f *Fake) RespondRaw(contract common.Address, selector []byte, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byMethod, ok := f.responses[contract]
	if !ok {
		byMethod = make(map[string][]byte)
		f.responses[contract] = byMethod
	}
	byMethod[string(selector)] = data
}

// Calls returns the number of eth_call requests served.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("invalid call")
	}
	data, ok := f.responses[*msg.To][string(msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return data, nil
}

func (f *Fake) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ChainIDValue), nil
}

func (f *Fake) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.Nonce, f.NonceErr
}

func (f *Fake) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.GasPrice), nil
}

func (f *Fake) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.GasTip), nil
}

func (f *Fake) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	return f.Gas, nil
}
