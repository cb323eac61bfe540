package ledger

import (
	"fmt"
	"math/big"

	"vaultPoints/internal/model"
)

// Snapshot is the read-only reference ledger captured at the program start block.
type Snapshot struct {
	Block  uint64
	ledger *Ledger
}

// NewSnapshot copies balances into a snapshot. Addresses are canonicalized.
func NewSnapshot(block uint64, balances map[string]*big.Int) *Snapshot {
	l := New()
	for addr, balance := range balances {
		if balance == nil {
			continue
		}
		state := l.GetOrCreate(addr)
		state.Balance.Add(state.Balance, balance)
	}
	return &Snapshot{Block: block, ledger: l}
}

// SnapshotFromLedger captures a deep copy of l as of block.
func SnapshotFromLedger(block uint64, l *Ledger) *Snapshot {
	return &Snapshot{Block: block, ledger: l.Clone()}
}

// SnapshotFromFile parses a persisted snapshot.
func SnapshotFromFile(file model.SnapshotFile) (*Snapshot, error) {
	balances := make(map[string]*big.Int, len(file.Balances))
	for addr, raw := range file.Balances {
		balance, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid snapshot balance for %s: %q", addr, raw)
		}
		if balance.Sign() < 0 {
			return nil, fmt.Errorf("%w: snapshot %s has %s", ErrNegativeBalance, addr, raw)
		}
		balances[addr] = balance
	}
	return NewSnapshot(file.BlockNumber, balances), nil
}

// BalanceOf returns the snapshot balance for addr, zero when absent.
// The returned value must not be mutated.
func (s *Snapshot) BalanceOf(addr string) *big.Int {
	if s == nil || s.ledger == nil {
		return zero
	}
	state, ok := s.ledger.Lookup(addr)
	if !ok {
		return zero
	}
	return state.Balance
}

// Len returns the number of addresses in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil || s.ledger == nil {
		return 0
	}
	return s.ledger.Len()
}

// File renders the snapshot for persistence, keeping positive balances only.
func (s *Snapshot) File() model.SnapshotFile {
	out := model.SnapshotFile{BlockNumber: s.Block, Balances: make(map[string]string)}
	if s.ledger == nil {
		return out
	}
	for _, addr := range s.ledger.Addresses() {
		state, _ := s.ledger.Lookup(addr)
		if state.Balance.Sign() > 0 {
			out.Balances[addr] = state.Balance.String()
		}
	}
	return out
}

var zero = new(big.Int)
