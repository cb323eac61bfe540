package replay

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func transfer(block, logIndex uint64, from, to string, value uint64) model.Event {
	return model.Event{
		Kind:        model.EventTransfer,
		BlockNumber: block,
		LogIndex:    logIndex,
		From:        from,
		To:          to,
		Value:       uint256.NewInt(value),
	}
}

func nftTransfer(block, logIndex uint64, from, to string, id uint64) model.Event {
	return model.Event{
		Kind:        model.EventNFTTransfer,
		BlockNumber: block,
		LogIndex:    logIndex,
		From:        from,
		To:          to,
		TokenID:     id,
	}
}

func TestApplyTransfer(t *testing.T) {
	l := ledger.New()
	require.NoError(t, ApplyAll(l, []model.Event{
		transfer(10, 0, ledger.ZeroAddress, alice, 1000),
		transfer(11, 0, alice, bob, 300),
		transfer(12, 0, bob, ledger.ZeroAddress, 100),
	}, day))

	a, _ := l.Lookup(alice)
	require.Equal(t, "700", a.Balance.String())
	require.Equal(t, uint64(10), a.LastPositiveBlock)
	require.Equal(t, uint64(11), a.LastNegativeBlock)
	require.Equal(t, day, a.LastPositiveDay)

	b, _ := l.Lookup(bob)
	require.Equal(t, "200", b.Balance.String())
	require.Equal(t, uint64(11), b.LastPositiveBlock)
	require.Equal(t, uint64(12), b.LastNegativeBlock)

	_, ok := l.Lookup(ledger.ZeroAddress)
	require.False(t, ok, "zero address legs are not recorded")
	require.Equal(t, "900", l.TotalBalance().String())
}

func TestApplyMixedCase(t *testing.T) {
	l := ledger.New()
	require.NoError(t, Apply(l, transfer(1, 0, ledger.ZeroAddress, "0xAbCdEf0123456789aBcDeF0123456789ABCDEF01", 5), day))
	state, ok := l.Lookup("0xabcdef0123456789abcdef0123456789abcdef01")
	require.True(t, ok)
	require.Equal(t, "5", state.Balance.String())
}

func TestApplyNegativeBalanceIsFatal(t *testing.T) {
	l := ledger.New()
	err := Apply(l, transfer(1, 0, alice, bob, 1), day)
	require.ErrorIs(t, err, ledger.ErrNegativeBalance)
}

func TestApplyNFT(t *testing.T) {
	l := ledger.New()
	require.NoError(t, ApplyAll(l, []model.Event{
		nftTransfer(1, 0, ledger.ZeroAddress, alice, 7),
		nftTransfer(2, 0, alice, bob, 7),
		nftTransfer(3, 0, alice, bob, 99),
	}, day))

	a, _ := l.Lookup(alice)
	require.False(t, a.HasNFT())
	b, _ := l.Lookup(bob)
	require.Equal(t, []uint64{7, 99}, b.NFTList())
	require.Zero(t, b.Balance.Sign())
}

func TestApplyUnknownKind(t *testing.T) {
	err := Apply(ledger.New(), model.Event{BlockNumber: 1}, day)
	require.ErrorIs(t, err, ErrUnknownEventKind)
}

func TestApplyAllEmptyIsIdentity(t *testing.T) {
	l := ledger.New()
	l.GetOrCreate(alice).Balance.SetInt64(3)
	before := l.Clone()
	require.NoError(t, ApplyAll(l, nil, day))
	require.True(t, before.Equal(l))
}

func TestApplyAllRejectsUnordered(t *testing.T) {
	l := ledger.New()
	err := ApplyAll(l, []model.Event{
		transfer(2, 0, ledger.ZeroAddress, alice, 1),
		transfer(1, 0, ledger.ZeroAddress, alice, 1),
	}, day)
	require.ErrorIs(t, err, ErrUnordered)
	require.Zero(t, l.Len())
}

func TestApplyAllIdempotentFromSameStart(t *testing.T) {
	start := ledger.New()
	start.GetOrCreate(alice).Balance.SetInt64(50)
	events := []model.Event{
		transfer(5, 0, alice, bob, 20),
		nftTransfer(5, 1, ledger.ZeroAddress, bob, 1),
		transfer(6, 0, ledger.ZeroAddress, alice, 10),
	}

	first := start.Clone()
	second := start.Clone()
	require.NoError(t, ApplyAll(first, events, day))
	require.NoError(t, ApplyAll(second, events, day))
	require.True(t, first.Equal(second))

	s, _ := start.Lookup(alice)
	require.Equal(t, "50", s.Balance.String())
}
