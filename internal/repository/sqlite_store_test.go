package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"IndiCache/internal/domain/models"
	domrepo "IndiCache/internal/domain/repository"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "indicache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreEntryRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.GetEntry(ctx, "high", "sma", "600000")
	require.ErrorIs(t, err, domrepo.ErrEntryNotFound)

	entry := &models.CacheEntry{
		Code: "600000", Family: "sma",
		Fingerprint: "deadbeef", LastDate: "2024-03-10", RowCount: 8,
		PluginState:  []byte(`{"count":10}`),
		LastCalcTime: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.PutEntry(ctx, "high", entry))

	got, err := store.GetEntry(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Equal(t, entry.Fingerprint, got.Fingerprint)
	require.Equal(t, entry.RowCount, got.RowCount)
	require.JSONEq(t, string(entry.PluginState), string(got.PluginState))
	require.True(t, entry.LastCalcTime.Equal(got.LastCalcTime))

	// Upsert replaces in place.
	entry.Fingerprint = "cafef00d"
	entry.LastDate = "2024-03-11"
	require.NoError(t, store.PutEntry(ctx, "high", entry))
	got, err = store.GetEntry(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Equal(t, "cafef00d", got.Fingerprint)

	require.NoError(t, store.DeleteEntry(ctx, "high", "sma", "600000"))
	_, err = store.GetEntry(ctx, "high", "sma", "600000")
	require.ErrorIs(t, err, domrepo.ErrEntryNotFound)
}

func TestSQLiteStoreListEntriesScopedAndSorted(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	put := func(cohort, family, code string) {
		require.NoError(t, store.PutEntry(ctx, cohort, &models.CacheEntry{
			Code: code, Family: family, Fingerprint: "f", LastDate: "2024-03-10",
			PluginState: []byte(`{}`), LastCalcTime: time.Now().UTC(),
		}))
	}
	put("high", "sma", "600002")
	put("high", "sma", "600000")
	put("high", "macd", "600000")
	put("low", "sma", "600000")

	entries, err := store.ListEntries(ctx, "high", "sma")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "600000", entries[0].Code)
	require.Equal(t, "600002", entries[1].Code)
}

func TestSQLiteStoreMetaRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	// Missing records come back empty, not as errors.
	meta, err := store.LoadCohortMeta(ctx, "high")
	require.NoError(t, err)
	require.Equal(t, "high", meta.Cohort)
	require.Empty(t, meta.Symbols)

	meta.CacheHits = 7
	meta.Symbols = map[string]*models.SymbolMeta{"600000": {}}
	require.NoError(t, store.SaveCohortMeta(ctx, meta))

	got, err := store.LoadCohortMeta(ctx, "high")
	require.NoError(t, err)
	require.Equal(t, 7, got.CacheHits)
	require.Contains(t, got.Symbols, "600000")

	global, err := store.LoadGlobalMeta(ctx)
	require.NoError(t, err)
	global.CacheHits += 7
	global.Cohorts = []string{"high"}
	require.NoError(t, store.SaveGlobalMeta(ctx, global))
	global, err = store.LoadGlobalMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, global.CacheHits)
	require.Equal(t, []string{"high"}, global.Cohorts)
}

func TestSQLiteStoreMetaCorruptionKind(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO meta_records (scope, payload) VALUES (?, ?)`,
		"cohort:high", []byte("{torn"))
	require.NoError(t, err)

	_, err = store.LoadCohortMeta(ctx, "high")
	require.Error(t, err)
	require.Equal(t, models.ErrMetaCorruption, models.KindOf(err))
}
