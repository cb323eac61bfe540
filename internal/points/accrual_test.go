package points

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vaultPoints/internal/daily"
	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

var (
	programDay = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	evalDay    = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
)

func newAccruer(t *testing.T, snapshot map[string]int64) *Accruer {
	t.Helper()
	balances := make(map[string]*big.Int, len(snapshot))
	for addr, v := range snapshot {
		balances[addr] = big.NewInt(v)
	}
	cfg := DefaultConfig()
	cfg.Snapshot = ledger.NewSnapshot(0, balances)
	a, err := NewAccruer(cfg)
	require.NoError(t, err)
	return a
}

func holder(l *ledger.Ledger, addr string, balance int64, lastPositive time.Time, nfts ...uint64) {
	s := l.GetOrCreate(addr)
	s.Balance.SetInt64(balance)
	s.LastPositiveDay = lastPositive
	for _, id := range nfts {
		s.NFTIDs[id] = struct{}{}
	}
}

func TestAccrueWithoutNFT(t *testing.T) {
	addr := "0x1234567890123456789012345678901234567890"
	a := newAccruer(t, map[string]int64{addr: 100})
	l := ledger.New()
	holder(l, addr, 500, programDay)

	table := make(Table)
	require.NoError(t, a.Accrue(l, evalDay, table))
	require.Equal(t, "600000", table.Get(addr).String())
}

func TestAccrueWithNFT(t *testing.T) {
	addr := "0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD"
	a := newAccruer(t, map[string]int64{addr: 200})
	l := ledger.New()
	holder(l, addr, 1000, programDay, 1, 2, 3)

	table := make(Table)
	require.NoError(t, a.Accrue(l, evalDay, table))
	require.Equal(t, "1704000", table["0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"].String())
	require.NotContains(t, table, addr)
}

func TestAccrueSnapshotAboveBalance(t *testing.T) {
	addr := "0x1111111111111111111111111111111111111111"
	a := newAccruer(t, map[string]int64{addr: 1000})
	l := ledger.New()
	holder(l, addr, 500, programDay)

	table := make(Table)
	require.NoError(t, a.Accrue(l, evalDay, table))
	require.Contains(t, table, addr)
	require.Zero(t, table[addr].Sign())
}

func TestAccrueAccumulates(t *testing.T) {
	addr := "0x2222222222222222222222222222222222222222"
	a := newAccruer(t, nil)
	l := ledger.New()
	holder(l, addr, 100, programDay)

	table := Table{addr: big.NewInt(5000)}
	require.NoError(t, a.Accrue(l, evalDay, table))
	require.Equal(t, "155000", table[addr].String())
}

func TestAccrueVestingBoundary(t *testing.T) {
	addr := "0x3333333333333333333333333333333333333333"
	a := newAccruer(t, map[string]int64{addr: 100})

	cases := []struct {
		name string
		date time.Time
		want string
	}{
		{"inside window", programDay.AddDate(0, 0, 10), "600000"},
		{"exactly at window", programDay.AddDate(0, 0, 90), "600000"},
		{"one day after window", programDay.AddDate(0, 0, 91), "750000"},
		{"well after window", programDay.AddDate(0, 0, 100), "750000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ledger.New()
			holder(l, addr, 500, programDay)
			table := make(Table)
			require.NoError(t, a.Accrue(l, tc.date, table))
			require.Equal(t, tc.want, table[addr].String())
		})
	}
}

func TestAccrueEmptyVestingDayIsLocked(t *testing.T) {
	addr := "0x4444444444444444444444444444444444444444"
	a := newAccruer(t, nil)
	l := ledger.New()
	holder(l, addr, 100, time.Time{})

	table := make(Table)
	require.NoError(t, a.Accrue(l, evalDay, table))
	require.Equal(t, "150000", table[addr].String())
}

func TestAccrueSpanMatchesRepeatedBlocks(t *testing.T) {
	a := newAccruer(t, map[string]int64{"0x5555555555555555555555555555555555555555": 40})
	l := ledger.New()
	holder(l, "0x5555555555555555555555555555555555555555", 100, programDay)
	holder(l, "0x6666666666666666666666666666666666666666", 7, programDay, 4)

	span := make(Table)
	require.NoError(t, a.AccrueSpan(l, evalDay, span, 17))

	repeated := make(Table)
	for i := 0; i < 17; i++ {
		require.NoError(t, a.Accrue(l, evalDay, repeated))
	}
	require.Equal(t, repeated.Strings(), span.Strings())

	none := make(Table)
	require.NoError(t, a.AccrueSpan(l, evalDay, none, 0))
	require.Empty(t, none)
}

func TestAccrueRejectsNegativeBalance(t *testing.T) {
	a := newAccruer(t, nil)
	l := ledger.New()
	holder(l, "0x7777777777777777777777777777777777777777", -1, programDay)
	require.ErrorIs(t, a.Accrue(l, evalDay, make(Table)), ledger.ErrNegativeBalance)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.RateNFT = 0
	_, err := NewAccruer(cfg)
	require.Error(t, err)

	cfg.RateNFT = cfg.RateBase
	require.Error(t, cfg.Validate())
	cfg.RateNFT = cfg.RateBase + 1
	require.NoError(t, cfg.Validate())
}

type fixedSource map[uint64][]model.Event

func (s fixedSource) EventsForDay(_ context.Context, day daily.DayRange) (map[uint64][]model.Event, error) {
	out := make(map[uint64][]model.Event)
	for block, events := range s {
		if block >= day.StartBlock && block <= day.EndBlock {
			out[block] = events
		}
	}
	return out, nil
}

func TestEngineLinearAccrual(t *testing.T) {
	addr := "0x8888888888888888888888888888888888888888"
	days := []daily.DayRange{
		{Index: 0, Date: programDay, StartBlock: 1, EndBlock: 10},
		{Index: 1, Date: programDay.AddDate(0, 0, 1), StartBlock: 11, EndBlock: 30},
	}
	source := fixedSource{
		5: {{Kind: model.EventTransfer, BlockNumber: 5, From: ledger.ZeroAddress, To: addr, Value: uint256.NewInt(3)}},
	}

	a := newAccruer(t, nil)
	engine := NewEngine(daily.NewBuilder(source, "points", nil, nil), a, nil, nil)

	var results []DayResult
	require.NoError(t, engine.Run(context.Background(), days, func(r DayResult) error {
		results = append(results, r)
		return nil
	}))
	require.Len(t, results, 2)

	// day 0: blocks 5..10 hold 3 tokens
	require.Equal(t, big.NewInt(3*6*DefaultRateBase).String(), results[0].Increment[addr].String())
	// day 1: constant balance across k = 20 blocks
	require.Equal(t, big.NewInt(3*20*DefaultRateBase).String(), results[1].Increment[addr].String())
	require.Equal(t, big.NewInt(3*26*DefaultRateBase).String(), results[1].Cumulative[addr].String())
	require.Equal(t, results[0].Increment.Strings(), results[0].Cumulative.Strings())

	inc, cum := results[1].Records()
	require.Equal(t, 1, inc.DayIndex)
	require.Equal(t, uint64(11), inc.StartBlock)
	require.Equal(t, uint64(30), cum.EndBlock)
	require.Equal(t, "2026-01-02", cum.Date)
	require.Equal(t, results[1].Cumulative[addr].String(), cum.Points[addr])
}

func TestCumulate(t *testing.T) {
	out := Cumulate([]Table{
		{"0xaa": big.NewInt(1)},
		{"0xaa": big.NewInt(2), "0xbb": big.NewInt(5)},
	})
	require.Len(t, out, 2)
	require.Equal(t, map[string]string{"0xaa": "1"}, out[0].Strings())
	require.Equal(t, map[string]string{"0xaa": "3", "0xbb": "5"}, out[1].Strings())
}

func TestTableFromStrings(t *testing.T) {
	table, err := TableFromStrings(map[string]string{"0xAA": "10"})
	require.NoError(t, err)
	require.Equal(t, "10", table.Get("0xaa").String())

	_, err = TableFromStrings(map[string]string{"0xaa": "ten"})
	require.Error(t, err)
}

func TestReplayedDayAccruesIdenticalIncrements(t *testing.T) {
	alice := "0x1111111111111111111111111111111111111111"
	bob := "0x2222222222222222222222222222222222222222"
	a := newAccruer(t, map[string]int64{alice: 200})

	start := ledger.New()
	holder(start, alice, 1000, programDay, 1)
	before := start.Clone()

	day := daily.DayRange{Index: 3, Date: evalDay, StartBlock: 100, EndBlock: 120}
	source := fixedSource{
		105: {{Kind: model.EventTransfer, BlockNumber: 105, From: alice, To: bob, Value: uint256.NewInt(300)}},
		110: {{Kind: model.EventNFTTransfer, BlockNumber: 110, From: alice, To: bob, TokenID: 1}},
	}
	builder := daily.NewBuilder(source, "points", nil, nil)

	build := func() (daily.DailyState, Table) {
		table := make(Table)
		state, err := builder.BuildDay(context.Background(), day, start, func(d daily.DayRange, from, to uint64, l *ledger.Ledger) error {
			return a.AccrueSpan(l, d.Date, table, to-from+1)
		})
		require.NoError(t, err)
		return state, table
	}

	first, firstPoints := build()
	second, secondPoints := build()

	require.True(t, start.Equal(before))
	require.True(t, first.End.Equal(second.End))
	require.Equal(t, firstPoints.Strings(), secondPoints.Strings())
	require.NotEmpty(t, firstPoints.Strings())

	// the engine yields the same per-day increments on a second run
	days := []daily.DayRange{
		{Index: 0, Date: programDay, StartBlock: 1, EndBlock: 99},
		day,
	}
	source[50] = []model.Event{
		{Kind: model.EventTransfer, BlockNumber: 50, From: ledger.ZeroAddress, To: alice, Value: uint256.NewInt(1000)},
		{Kind: model.EventNFTTransfer, BlockNumber: 50, LogIndex: 1, From: ledger.ZeroAddress, To: alice, TokenID: 1},
	}
	engine := NewEngine(daily.NewBuilder(source, "points", nil, nil), a, nil, nil)
	run := func() []map[string]string {
		var out []map[string]string
		require.NoError(t, engine.Run(context.Background(), days, func(r DayResult) error {
			out = append(out, r.Increment.Strings())
			return nil
		}))
		return out
	}
	require.Equal(t, run(), run())
}
