package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.Get(ctx, KeyUserID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyUserID, "one"))
	require.NoError(t, s.Set(ctx, KeyUserID, "two"))
	v, ok, err := s.Get(ctx, KeyUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", v)

	require.NoError(t, s.Delete(ctx, KeyUserID))
	_, ok, err = s.Get(ctx, KeyUserID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var out []string
	ok, err := s.GetJSON(ctx, KeyRecents, &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetJSON(ctx, KeyRecents, []string{"a", "b"}))
	ok, err = s.GetJSON(ctx, KeyRecents, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, out)

	require.NoError(t, s.Set(ctx, "broken", "{"))
	_, err = s.GetJSON(ctx, "broken", &out)
	require.Error(t, err)
}

func TestClearCacheKeepsUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Set(ctx, KeyUserID, "u"))
	require.NoError(t, s.Set(ctx, KeyRecents, "[]"))
	require.NoError(t, s.Set(ctx, BoostUsageKey("u", "2025-06-15"), "2"))
	require.NoError(t, s.Set(ctx, "theme", "dark"))

	removed, err := s.ClearCache(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{KeyUserID, KeyRecents, "gloop-boosts-used-u-2025-06-15"}, removed)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"theme"}, keys)
}
