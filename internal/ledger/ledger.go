package ledger

import (
	"fmt"
	"math/big"
	"sort"

	"vaultPoints/internal/model"
)

// Ledger maps canonical addresses to their UserState.
// Ledgers are not safe for concurrent mutation; hand copies across owners with Clone.
type Ledger struct {
	users map[string]*UserState
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{users: make(map[string]*UserState)}
}

// GetOrCreate returns the state for addr, materializing a zeroed state on first reference.
func (l *Ledger) GetOrCreate(addr string) *UserState {
	key := NormalizeAddress(addr)
	state, ok := l.users[key]
	if !ok {
		state = newUserState()
		l.users[key] = state
	}
	return state
}

// Lookup returns the state for addr without materializing it.
func (l *Ledger) Lookup(addr string) (*UserState, bool) {
	state, ok := l.users[NormalizeAddress(addr)]
	return state, ok
}

// Len returns the number of materialized addresses.
func (l *Ledger) Len() int {
	return len(l.users)
}

// Addresses returns all materialized addresses in ascending order.
func (l *Ledger) Addresses() []string {
	out := make([]string, 0, len(l.users))
	for addr := range l.users {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep, independent copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{users: make(map[string]*UserState, len(l.users))}
	for addr, state := range l.users {
		out.users[addr] = state.clone()
	}
	return out
}

// Equal compares two ledgers field by field. Unmaterialized and zeroed entries differ.
func (l *Ledger) Equal(o *Ledger) bool {
	if len(l.users) != len(o.users) {
		return false
	}
	for addr, state := range l.users {
		other, ok := o.users[addr]
		if !ok || !state.equal(other) {
			return false
		}
	}
	return true
}

// TotalBalance sums every balance in the ledger.
func (l *Ledger) TotalBalance() *big.Int {
	total := new(big.Int)
	for _, state := range l.users {
		total.Add(total, state.Balance)
	}
	return total
}

// CheckNonNegative returns ErrNegativeBalance for the first negative balance found.
func (l *Ledger) CheckNonNegative() error {
	for _, addr := range l.Addresses() {
		if l.users[addr].Balance.Sign() < 0 {
			return fmt.Errorf("%w: %s has %s", ErrNegativeBalance, addr, l.users[addr].Balance)
		}
	}
	return nil
}

// Records returns the persisted form: balances for positive entries and NFT ids for
// non-empty holdings. Zero and empty entries are implicit.
func (l *Ledger) Records() (map[string]model.UserStateRecord, map[string][]uint64) {
	balances := make(map[string]model.UserStateRecord)
	nfts := make(map[string][]uint64)
	for addr, state := range l.users {
		if state.Balance.Sign() > 0 {
			balances[addr] = model.UserStateRecord{
				Balance:                        state.Balance.String(),
				LastPositiveBalanceUpdateDay:   FormatDay(state.LastPositiveDay),
				LastPositiveBalanceUpdateBlock: state.LastPositiveBlock,
				LastNegativeBalanceUpdateBlock: state.LastNegativeBlock,
			}
		}
		if state.HasNFT() {
			nfts[addr] = state.NFTList()
		}
	}
	return balances, nfts
}

// FromRecords rebuilds a ledger from its persisted form.
func FromRecords(balances map[string]model.UserStateRecord, nfts map[string][]uint64) (*Ledger, error) {
	l := New()
	for addr, record := range balances {
		balance, ok := new(big.Int).SetString(record.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("invalid balance for %s: %q", addr, record.Balance)
		}
		day, err := ParseDay(record.LastPositiveBalanceUpdateDay)
		if err != nil {
			return nil, fmt.Errorf("vesting day for %s: %w", addr, err)
		}
		state := l.GetOrCreate(addr)
		state.Balance = balance
		state.LastPositiveDay = day
		state.LastPositiveBlock = record.LastPositiveBalanceUpdateBlock
		state.LastNegativeBlock = record.LastNegativeBalanceUpdateBlock
	}
	for addr, ids := range nfts {
		state := l.GetOrCreate(addr)
		for _, id := range ids {
			state.NFTIDs[id] = struct{}{}
		}
	}
	return l, l.CheckNonNegative()
}
