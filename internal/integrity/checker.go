package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vaultPoints/internal/daily"
	"vaultPoints/internal/ledger"
	"vaultPoints/internal/metrics"
	"vaultPoints/internal/model"
)

// Checker evaluates the snapshot invariant: while a position is locked its
// balance must not fall below the snapshot balance.
type Checker struct {
	snapshot    *ledger.Snapshot
	vestingDays int
}

func NewChecker(snapshot *ledger.Snapshot, vestingDays int) *Checker {
	return &Checker{snapshot: snapshot, vestingDays: vestingDays}
}

// Broken reports whether addr violates the invariant on date.
// A positive balance with no positive update day is a fatal inconsistency.
func (c *Checker) Broken(addr string, s *ledger.UserState, date time.Time) (bool, error) {
	if s.LastPositiveDay.IsZero() {
		if s.Balance.Sign() > 0 {
			return false, fmt.Errorf("%w: user %s has balance %s", ledger.ErrMissingVestingDay, addr, s.Balance)
		}
		return false, nil
	}
	if !s.Locked(date, c.vestingDays) {
		return false, nil
	}
	return s.Balance.Cmp(c.snapshot.BalanceOf(addr)) < 0, nil
}

// Violations returns the sorted addresses of l that violate the invariant on date.
func (c *Checker) Violations(l *ledger.Ledger, date time.Time) ([]string, error) {
	var out []string
	for _, addr := range l.Addresses() {
		s, _ := l.Lookup(addr)
		broken, err := c.Broken(addr, s, date)
		if err != nil {
			return nil, err
		}
		if broken {
			out = append(out, addr)
		}
	}
	return out, nil
}

// Report holds the first violating block per address.
type Report struct {
	SnapshotBlock uint64
	DaysChecked   int
	first         map[string]uint64
}

func newReport(snapshotBlock uint64) *Report {
	return &Report{SnapshotBlock: snapshotBlock, first: make(map[string]uint64)}
}

// record keeps only the first offense per address.
func (r *Report) record(addr string, block uint64) bool {
	if _, ok := r.first[addr]; ok {
		return false
	}
	r.first[addr] = block
	return true
}

// FirstViolationBlock returns the first violating block for addr, or -1 if it never violated.
func (r *Report) FirstViolationBlock(addr string) int64 {
	block, ok := r.first[ledger.NormalizeAddress(addr)]
	if !ok {
		return -1
	}
	return int64(block)
}

func (r *Report) Passed() bool {
	return len(r.first) == 0
}

// Violations returns a copy of address -> first violating block.
func (r *Report) Violations() map[string]uint64 {
	out := make(map[string]uint64, len(r.first))
	for addr, block := range r.first {
		out[addr] = block
	}
	return out
}

// Addresses returns the violating addresses in ascending order.
func (r *Report) Addresses() []string {
	out := make([]string, 0, len(r.first))
	for addr := range r.first {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Record renders the persisted report.
func (r *Report) Record(checkedAt time.Time) model.IntegrityReport {
	return model.IntegrityReport{
		Passed:        r.Passed(),
		SnapshotBlock: r.SnapshotBlock,
		DaysChecked:   r.DaysChecked,
		Violations:    r.Violations(),
		CheckedAt:     checkedAt.UTC().Format(time.RFC3339),
	}
}

// Runner replays days and evaluates the invariant after every block at or above
// the snapshot block. Violations are collected, not returned as errors.
type Runner struct {
	builder *daily.Builder
	checker *Checker
	logger  *zap.Logger
	metrics *metrics.Replay
}

func NewRunner(builder *daily.Builder, checker *Checker, logger *zap.Logger, m *metrics.Replay) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{builder: builder, checker: checker, logger: logger, metrics: m}
}

func (r *Runner) Run(ctx context.Context, days []daily.DayRange) (*Report, error) {
	snapshotBlock := r.checker.snapshot.Block
	report := newReport(snapshotBlock)

	hook := func(day daily.DayRange, from, to uint64, l *ledger.Ledger) error {
		if to < snapshotBlock {
			return nil
		}
		if from < snapshotBlock {
			from = snapshotBlock
		}
		broken, err := r.checker.Violations(l, day.Date)
		if err != nil {
			return fmt.Errorf("day %d block %d: %w", day.Index, from, err)
		}
		for _, addr := range broken {
			if report.record(addr, from) {
				r.logger.Warn("integrity broken",
					zap.String("address", addr),
					zap.Uint64("block", from),
					zap.Int("day", day.Index),
				)
			}
		}
		return nil
	}

	err := r.builder.Run(ctx, days, hook, func(daily.DailyState) error {
		report.DaysChecked++
		r.metrics.SetViolations(len(report.first))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Passed() {
		r.logger.Info("integrity check passed", zap.Int("days", report.DaysChecked))
	} else {
		r.logger.Warn("integrity check failed",
			zap.Int("days", report.DaysChecked),
			zap.Int("users", len(report.first)),
		)
	}
	return report, nil
}
