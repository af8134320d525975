package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradecart/gradecart/internal/config"
	"github.com/gradecart/gradecart/internal/scan"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(&config.Config{Storage: config.StorageConfig{
		DataDir:    dir,
		SQLitePath: filepath.Join(dir, "test.db"),
		BadgerPath: filepath.Join(dir, "badger"),
	}})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionKVRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.Set("scannedItems", []byte(`[{"id":"a"}]`)))

	val, err := store.Get("scannedItems")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"a"}]`), val)

	require.NoError(t, store.Delete("scannedItems"))
	val, err = store.Get("scannedItems")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestGetMissingKeyIsNotAnError(t *testing.T) {
	store := setupTestStore(t)
	val, err := store.Get("never-set")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestHistoryAppendAndList(t *testing.T) {
	store := setupTestStore(t)

	older := scan.HistoryEntry{
		ID:         "h1",
		Timestamp:  time.Now().Add(-time.Hour).UTC(),
		SchoolName: "Lincoln Elementary",
		Grade:      "Grade 2",
		ItemCount:  1,
		Items:      []scan.CartItem{{ID: "a", Name: "Pencils", InCart: true}},
	}
	newer := scan.HistoryEntry{
		ID:         "h2",
		Timestamp:  time.Now().UTC(),
		SchoolName: "Oak Hill",
		Grade:      "Grade 4",
		ItemCount:  0,
	}
	require.NoError(t, store.Append(older))
	require.NoError(t, store.Append(newer))

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h2", entries[0].ID, "newest first")
	assert.Equal(t, "Pencils", entries[1].Items[0].Name)
}

func TestHistoryListHonorsLimit(t *testing.T) {
	store := setupTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(scan.HistoryEntry{
			ID:        string(rune('a' + i)),
			Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.List(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	_, ok := store.GetSearch("glue sticks")
	assert.False(t, ok)

	require.NoError(t, store.PutSearch("glue sticks", []byte(`[{"id":5}]`)))
	payload, ok := store.GetSearch("glue sticks")
	require.True(t, ok)
	assert.Equal(t, []byte(`[{"id":5}]`), []byte(payload))

	// Overwriting the same term keeps one row
	require.NoError(t, store.PutSearch("glue sticks", []byte(`[{"id":6}]`)))
	payload, ok = store.GetSearch("glue sticks")
	require.True(t, ok)
	assert.Equal(t, []byte(`[{"id":6}]`), []byte(payload))
}

func TestPruneHistory(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Append(scan.HistoryEntry{
		ID:        "old",
		Timestamp: time.Now().Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, store.Append(scan.HistoryEntry{
		ID:        "recent",
		Timestamp: time.Now(),
	}))

	pruned, err := store.PruneHistory(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].ID)
}
