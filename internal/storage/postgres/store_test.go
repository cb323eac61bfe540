package postgres

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultPoints/internal/model"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "", 0)
	require.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	require.Equal(t, []string{"0xa", "0xb", "0xc"}, sortedKeys(map[string]int{"0xc": 1, "0xa": 2, "0xb": 3}))
	require.Empty(t, sortedKeys(map[string]string{}))
}

func TestTokenIDStrings(t *testing.T) {
	require.Equal(t, []string{"1", "18446744073709551615"}, tokenIDStrings([]uint64{1, math.MaxUint64}))
	require.Empty(t, tokenIDStrings(nil))
}

// Runs against a live database when POINTS_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("POINTS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POINTS_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	store, err := NewStore(ctx, dsn, 2)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	state := model.StateRecord{
		StartBlock: 100,
		EndBlock:   199,
		Date:       "2025-06-01",
		DayIndex:   9001,
		PilotVault: model.VaultStates{EndState: map[string]model.UserStateRecord{
			"0xaaaa": {Balance: "1000000000000000000000", LastPositiveBalanceUpdateDay: "2025-06-01", LastPositiveBalanceUpdateBlock: 150},
			"0xbbbb": {Balance: "5", LastNegativeBalanceUpdateBlock: 160},
			"0xcccc": {Balance: "7"},
		}},
		NFT: model.NFTStates{EndState: map[string][]uint64{"0xaaaa": {1, math.MaxUint64}}},
	}
	require.NoError(t, store.PutDailyState(ctx, state))
	// replacing the day must not duplicate rows
	require.NoError(t, store.PutDailyState(ctx, state))

	var rows int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT count(*) FROM vault_balances WHERE day_index=$1`, state.DayIndex).Scan(&rows))
	require.Equal(t, 3, rows)

	var maxID string
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT token_ids[2]::text FROM nft_holdings WHERE day_index=$1 AND address=$2`, state.DayIndex, "0xaaaa").Scan(&maxID))
	require.Equal(t, "18446744073709551615", maxID)

	inc := model.PointsRecord{DayIndex: 9001, Date: "2025-06-01", StartBlock: 100, EndBlock: 199, Points: map[string]string{"0xaaaa": "15"}}
	cum := model.PointsRecord{DayIndex: 9001, Date: "2025-06-01", StartBlock: 100, EndBlock: 199, Points: map[string]string{"0xaaaa": "30", "0xbbbb": "0"}}
	require.NoError(t, store.PutPoints(ctx, inc, cum))

	var increment string
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT increment::text FROM daily_points WHERE day_index=$1 AND address=$2`, 9001, "0xbbbb").Scan(&increment))
	require.Equal(t, "0", increment)

	require.NoError(t, store.SaveState(ctx, "test", 9001))
	day, ok, err := store.LoadState(ctx, "test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9001, day)
}
