package ledger

import (
	"math/big"
	"sort"
	"time"
)

// UserState is the mutable per-address record owned by a Ledger.
type UserState struct {
	Balance *big.Int
	NFTIDs  map[uint64]struct{}

	// LastPositiveDay is the zero time until the address first receives tokens.
	LastPositiveDay   time.Time
	LastPositiveBlock uint64
	LastNegativeBlock uint64
}

func newUserState() *UserState {
	return &UserState{
		Balance: new(big.Int),
		NFTIDs:  make(map[uint64]struct{}),
	}
}

// HasNFT reports whether the address holds at least one NFT.
func (s *UserState) HasNFT() bool {
	return len(s.NFTIDs) > 0
}

// NFTList returns the held NFT ids in ascending order.
func (s *UserState) NFTList() []uint64 {
	ids := make([]uint64, 0, len(s.NFTIDs))
	for id := range s.NFTIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Locked reports whether the position is still inside its vesting window on date.
// A position with no positive update day is locked. Exactly vestingDays after the
// last positive update is still locked.
func (s *UserState) Locked(date time.Time, vestingDays int) bool {
	if s.LastPositiveDay.IsZero() {
		return true
	}
	unlockAfter := s.LastPositiveDay.AddDate(0, 0, vestingDays)
	return !TruncateDay(date).After(unlockAfter)
}

func (s *UserState) clone() *UserState {
	ids := make(map[uint64]struct{}, len(s.NFTIDs))
	for id := range s.NFTIDs {
		ids[id] = struct{}{}
	}
	return &UserState{
		Balance:           new(big.Int).Set(s.Balance),
		NFTIDs:            ids,
		LastPositiveDay:   s.LastPositiveDay,
		LastPositiveBlock: s.LastPositiveBlock,
		LastNegativeBlock: s.LastNegativeBlock,
	}
}

func (s *UserState) equal(o *UserState) bool {
	if s.Balance.Cmp(o.Balance) != 0 ||
		!s.LastPositiveDay.Equal(o.LastPositiveDay) ||
		s.LastPositiveBlock != o.LastPositiveBlock ||
		s.LastNegativeBlock != o.LastNegativeBlock ||
		len(s.NFTIDs) != len(o.NFTIDs) {
		return false
	}
	for id := range s.NFTIDs {
		if _, ok := o.NFTIDs[id]; !ok {
			return false
		}
	}
	return true
}
