package verify

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultPoints/internal/decode"
	"vaultPoints/internal/model"
)

// ContractCaller performs eth_call at a block.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Mismatch is one address whose replayed balance differs from the chain.
type Mismatch struct {
	Address  string
	Replayed string
	OnChain  string
}

// Result summarizes a spot check.
type Result struct {
	DayIndex   int
	Block      uint64
	Checked    int
	Mismatches []Mismatch
}

func (r Result) OK() bool {
	return len(r.Mismatches) == 0
}

// Balances compares up to samples end-of-day balances of state with balanceOf
// at the day's end block. samples <= 0 checks every address.
func Balances(ctx context.Context, caller ContractCaller, token string, state model.StateRecord, samples int, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !common.IsHexAddress(token) {
		return Result{}, fmt.Errorf("invalid token address: %s", token)
	}
	tokenAddr := common.HexToAddress(token)
	block := new(big.Int).SetUint64(state.EndBlock)

	addrs := make([]string, 0, len(state.PilotVault.EndState))
	for addr := range state.PilotVault.EndState {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	if samples > 0 && len(addrs) > samples {
		addrs = addrs[:samples]
	}

	result := Result{DayIndex: state.DayIndex, Block: state.EndBlock}
	for _, addr := range addrs {
		if !common.IsHexAddress(addr) {
			return Result{}, fmt.Errorf("invalid holder address: %s", addr)
		}
		onChain, err := balanceOf(ctx, caller, tokenAddr, common.HexToAddress(addr), block)
		if err != nil {
			return Result{}, fmt.Errorf("balanceOf %s: %w", addr, err)
		}
		result.Checked++

		replayed := state.PilotVault.EndState[addr].Balance
		if onChain.String() != replayed {
			result.Mismatches = append(result.Mismatches, Mismatch{Address: addr, Replayed: replayed, OnChain: onChain.String()})
			logger.Warn("balance mismatch",
				zap.String("address", addr),
				zap.String("replayed", replayed),
				zap.String("on_chain", onChain.String()),
				zap.Uint64("block", state.EndBlock),
			)
		}
	}
	return result, nil
}

func balanceOf(ctx context.Context, caller ContractCaller, token common.Address, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	balanceABI, err := decode.ERC20ABI()
	if err != nil {
		return nil, err
	}

	data, err := balanceABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := caller.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := balanceABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}
