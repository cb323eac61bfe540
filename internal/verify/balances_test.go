package verify

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"vaultPoints/internal/decode"
	"vaultPoints/internal/model"
)

type fakeCaller struct {
	balances map[common.Address]*big.Int
	blocks   []uint64
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	parsed, err := decode.ERC20ABI()
	if err != nil {
		return nil, err
	}
	args, err := parsed.Methods["balanceOf"].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	f.blocks = append(f.blocks, block.Uint64())
	owner := args[0].(common.Address)
	bal, ok := f.balances[owner]
	if !ok {
		bal = new(big.Int)
	}
	return parsed.Methods["balanceOf"].Outputs.Pack(bal)
}

func TestBalances(t *testing.T) {
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")
	caller := &fakeCaller{balances: map[common.Address]*big.Int{
		alice: big.NewInt(500),
		bob:   big.NewInt(7),
	}}

	state := model.StateRecord{
		DayIndex: 3,
		EndBlock: 99,
		PilotVault: model.VaultStates{EndState: map[string]model.UserStateRecord{
			strings.ToLower(alice.Hex()): {Balance: "500"},
			strings.ToLower(bob.Hex()):   {Balance: "8"},
		}},
	}

	result, err := Balances(context.Background(), caller, "0x9999999999999999999999999999999999999999", state, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.False(t, result.OK())
	require.Equal(t, []Mismatch{{Address: strings.ToLower(bob.Hex()), Replayed: "8", OnChain: "7"}}, result.Mismatches)
	require.Equal(t, []uint64{99, 99}, caller.blocks)

	sampled, err := Balances(context.Background(), caller, "0x9999999999999999999999999999999999999999", state, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sampled.Checked)
	require.True(t, sampled.OK())
}
