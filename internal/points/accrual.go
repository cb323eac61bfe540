package points

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"vaultPoints/internal/ledger"
)

// Config carries the reward constants and the reference snapshot for a run.
type Config struct {
	RateBase    int64
	RateNFT     int64
	VestingDays int
	Snapshot    *ledger.Snapshot
}

const (
	DefaultRateBase    = 1500
	DefaultRateNFT     = 2130
	DefaultVestingDays = 90
)

func DefaultConfig() Config {
	return Config{
		RateBase:    DefaultRateBase,
		RateNFT:     DefaultRateNFT,
		VestingDays: DefaultVestingDays,
	}
}

func (c Config) Validate() error {
	if c.RateBase <= 0 || c.RateNFT <= 0 {
		return errors.New("rates must be positive")
	}
	if c.RateNFT <= c.RateBase {
		return fmt.Errorf("nft rate %d must exceed base rate %d", c.RateNFT, c.RateBase)
	}
	if c.VestingDays < 0 {
		return errors.New("vesting days must not be negative")
	}
	return nil
}

// Accruer converts ledger evaluations into points increments.
type Accruer struct {
	cfg      Config
	rateBase *big.Int
	rateNFT  *big.Int
}

func NewAccruer(cfg Config) (*Accruer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Accruer{
		cfg:      cfg,
		rateBase: big.NewInt(cfg.RateBase),
		rateNFT:  big.NewInt(cfg.RateNFT),
	}, nil
}

// Rate returns the per-block rate for s.
func (a *Accruer) Rate(s *ledger.UserState) *big.Int {
	if s.HasNFT() {
		return a.rateNFT
	}
	return a.rateBase
}

// EligibleBalance applies the snapshot subtraction while the position is locked on date.
func (a *Accruer) EligibleBalance(addr string, s *ledger.UserState, date time.Time) *big.Int {
	if !s.Locked(date, a.cfg.VestingDays) {
		return new(big.Int).Set(s.Balance)
	}
	eligible := new(big.Int).Sub(s.Balance, a.cfg.Snapshot.BalanceOf(addr))
	if eligible.Sign() < 0 {
		eligible.SetInt64(0)
	}
	return eligible
}

// Accrue adds one block's worth of points for every address in l.
func (a *Accruer) Accrue(l *ledger.Ledger, date time.Time, table Table) error {
	return a.AccrueSpan(l, date, table, 1)
}

// AccrueSpan adds blocks consecutive per-block increments for an unchanging ledger.
func (a *Accruer) AccrueSpan(l *ledger.Ledger, date time.Time, table Table, blocks uint64) error {
	if blocks == 0 {
		return nil
	}
	k := new(big.Int).SetUint64(blocks)
	for _, addr := range l.Addresses() {
		s, _ := l.Lookup(addr)
		if s.Balance.Sign() < 0 {
			return fmt.Errorf("%w: %s has %s", ledger.ErrNegativeBalance, addr, s.Balance)
		}
		inc := a.EligibleBalance(addr, s, date)
		inc.Mul(inc, a.Rate(s))
		inc.Mul(inc, k)
		table.Add(addr, inc)
	}
	return nil
}
