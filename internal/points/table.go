package points

import (
	"fmt"
	"math/big"
	"sort"

	"vaultPoints/internal/ledger"
)

// Table maps canonical addresses to accrued points.
type Table map[string]*big.Int

// Add credits v to addr, creating the entry when missing.
func (t Table) Add(addr string, v *big.Int) {
	key := ledger.NormalizeAddress(addr)
	cur, ok := t[key]
	if !ok {
		cur = new(big.Int)
		t[key] = cur
	}
	cur.Add(cur, v)
}

// Get returns the points for addr, zero when absent.
func (t Table) Get(addr string) *big.Int {
	if v, ok := t[ledger.NormalizeAddress(addr)]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Merge adds every entry of o into t.
func (t Table) Merge(o Table) {
	for addr, v := range o {
		t.Add(addr, v)
	}
}

func (t Table) Clone() Table {
	out := make(Table, len(t))
	for addr, v := range t {
		out[addr] = new(big.Int).Set(v)
	}
	return out
}

// Total sums all entries.
func (t Table) Total() *big.Int {
	total := new(big.Int)
	for _, v := range t {
		total.Add(total, v)
	}
	return total
}

// Addresses returns the keys in ascending order.
func (t Table) Addresses() []string {
	out := make([]string, 0, len(t))
	for addr := range t {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Strings renders values as decimal strings for persistence.
func (t Table) Strings() map[string]string {
	out := make(map[string]string, len(t))
	for addr, v := range t {
		out[addr] = v.String()
	}
	return out
}

// TableFromStrings parses a persisted points map.
func TableFromStrings(in map[string]string) (Table, error) {
	out := make(Table, len(in))
	for addr, raw := range in {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid points for %s: %q", addr, raw)
		}
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative points for %s: %s", addr, raw)
		}
		out.Add(addr, v)
	}
	return out, nil
}

// Cumulate turns per-day increments into running totals.
func Cumulate(increments []Table) []Table {
	out := make([]Table, 0, len(increments))
	running := make(Table)
	for _, inc := range increments {
		running.Merge(inc)
		out = append(out, running.Clone())
	}
	return out
}
