package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "waypoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestRecentSearches_NewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSearch(ctx, "s1", KindItem, "cup"))
	require.NoError(t, s.RecordSearch(ctx, "s2", KindText, "exit"))
	require.NoError(t, s.RecordSearch(ctx, "s3", KindItem, "door"))

	got, err := s.RecentSearches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "door", got[0].Query)
	assert.Equal(t, "exit", got[1].Query)
	assert.Equal(t, KindText, got[1].Kind)
}

func TestPreferences_Upsert(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	_, found, err := s.Preference(ctx, "voice")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetPreference(ctx, "voice", "en-GB"))
	require.NoError(t, s.SetPreference(ctx, "voice", "en-US"))

	value, found, err := s.Preference(ctx, "voice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "en-US", value)
}

func TestMigrateDown_RemovesSchema(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.MigrateDown())

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)
}
