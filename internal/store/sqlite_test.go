package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSQLiteStore creates a migrated SQLite store on a temp file.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_HistoryRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.AddHistoryBatch(ctx, []string{"12345678000195", "98765432000110"}, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// re-adding the same identifiers inserts nothing
	n, err = s.AddHistoryBatch(ctx, []string{"12345678000195"}, "batch-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	ids, err := s.LoadHistory(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"12345678000195", "98765432000110"}, ids)
}

func TestSQLiteStore_DeleteHistoryBatch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.AddHistoryBatch(ctx, []string{"12345678000195"}, "batch-1")
	require.NoError(t, err)
	_, err = s.AddHistoryBatch(ctx, []string{"98765432000110"}, "batch-2")
	require.NoError(t, err)

	deleted, err := s.DeleteHistoryBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"12345678000195"}, deleted)

	// only batch-2 remains
	ids, err := s.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"98765432000110"}, ids)

	// deleting an unknown tag removes nothing
	deleted, err = s.DeleteHistoryBatch(ctx, "batch-404")
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestSQLiteStore_DeleteHistoryBatch_EmptyTag(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.DeleteHistoryBatch(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty history batch tag")
}

func TestSQLiteStore_RootRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.AddRootBatch(ctx, []string{"12345678000195", "12345678909"}, "clients.xlsx", "root-feed-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := s.LoadRoot(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"12345678000195", "12345678909"}, ids)
}

func TestSQLiteStore_DirectoryChunkAndLookup(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	chunk := map[string][]string{
		"12345678000195": {"11987654321", "11987654321", "1133334444"},
		"98765432000110": {"21999990000"},
	}
	res, err := s.SaveDirectoryChunk(ctx, 2026, chunk)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Identifiers)
	assert.Equal(t, int64(3), res.Phones)

	got, err := s.LookupPhones(ctx, []string{"12345678000195", "98765432000110", "00000000000000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"11987654321", "1133334444"}, got["12345678000195"])
	assert.Equal(t, []string{"21999990000"}, got["98765432000110"])
	assert.NotContains(t, got, "00000000000000")

	// year filter excludes other load years
	got, err = s.LookupPhones(ctx, []string{"12345678000195"}, []int{2024})
	require.NoError(t, err)
	assert.Empty(t, got["12345678000195"])

	count, err := s.DirectoryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_DirectoryChunk_Idempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	chunk := map[string][]string{"12345678000195": {"11987654321"}}
	_, err := s.SaveDirectoryChunk(ctx, 2026, chunk)
	require.NoError(t, err)

	res, err := s.SaveDirectoryChunk(ctx, 2026, chunk)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Identifiers)
	assert.Equal(t, int64(0), res.Phones)
}

func TestSQLiteStore_Blocklist(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.AddBlocklistPhones(ctx, []string{"11987654321", "1133334444", "11987654321"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	blocked, err := s.FindBlockedPhones(ctx, []string{"11987654321", "21999990000"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11987654321"}, blocked)

	st, err := s.GetBlocklistStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
}
