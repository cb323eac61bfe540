package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimestampStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timestamps.db")
	store, err := OpenTimestampStore(path)
	require.NoError(t, err)

	_, ok, err := store.Get(100)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(100, 1700000000))
	require.NoError(t, store.Put(101, 1700000012))

	ts, ok, err := store.Get(100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1700000000), ts)
	require.NoError(t, store.Close())

	reopened, err := OpenTimestampStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	ts, ok, err = reopened.Get(101)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1700000012), ts)

	n, err := reopened.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
