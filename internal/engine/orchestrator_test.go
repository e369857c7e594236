package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/indicator"
	internalrepo "IndiCache/internal/repository"
	applogger "IndiCache/pkg/logger"
)

type fakeSource struct {
	series map[string]*models.SymbolSeries
}

func (f *fakeSource) ReadSeries(_ context.Context, code string) (*models.SymbolSeries, error) {
	s, ok := f.series[code]
	if !ok {
		return nil, os.ErrNotExist
	}
	return s, nil
}

func newTestOrchestrator(t *testing.T, src *fakeSource) (*Orchestrator, *internalrepo.FileStore, string) {
	t.Helper()
	base := t.TempDir()
	store := internalrepo.NewFileStore(base)
	require.NoError(t, store.EnsureInitialized(context.Background(), []string{"high"}))

	orch := NewOrchestrator(src, store, store, nil, applogger.Nop(), OrchestratorConfig{
		MinLookback: 3,
	})
	return orch, store, base
}

func seriesOf(bars []models.Bar) *models.SymbolSeries {
	return &models.SymbolSeries{Code: "600000", Bars: bars}
}

func TestOrchestratorFullThenSkip(t *testing.T) {
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(testBars(10))}}
	orch, store, _ := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})
	ctx := context.Background()

	res := orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionFull, res.Action)
	require.Equal(t, 8, res.RowsWritten)

	entry, err := store.GetEntry(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", entry.LastDate)
	require.Equal(t, 8, entry.RowCount)
	require.NotEmpty(t, entry.PluginState)

	res = orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionSkip, res.Action)
	require.Zero(t, res.RowsWritten)
}

func TestOrchestratorAppendKeepsPrefixBytes(t *testing.T) {
	bars := testBars(11)
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(bars[:10])}}
	orch, store, base := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})
	ctx := context.Background()

	res := orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.ActionFull, res.Action)

	artifact := filepath.Join(base, "output", "high", "sma", "600000.csv")
	before, err := os.ReadFile(artifact)
	require.NoError(t, err)

	src.series["600000"] = seriesOf(bars)
	res = orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionAppend, res.Action)
	require.Equal(t, 1, res.RowsWritten)

	after, err := os.ReadFile(artifact)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(after), string(before)), "append must leave existing bytes untouched")

	// Incremental result must equal a from-scratch rebuild.
	rows, err := store.ReadArtifact(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	fresh, _, err := plugin.Compute(bars, plugin.NewState())
	require.NoError(t, err)
	require.Len(t, rows, len(fresh))
	for i := range fresh {
		require.Equal(t, fresh[i].Date, rows[i].Date)
		require.InDelta(t, fresh[i].Values[0].Float, rows[i].Values[0].Float, 1e-8)
	}
}

func TestOrchestratorHistoricalEditRebuilds(t *testing.T) {
	bars := testBars(12)
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(bars[:10])}}
	orch, store, _ := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})
	ctx := context.Background()

	orch.ProcessSymbol(ctx, "high", plugin, "600000", false)

	edited := testBars(12)
	edited[5].Close += 1.5
	src.series["600000"] = seriesOf(edited)

	res := orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionFull, res.Action)
	require.Equal(t, 10, res.RowsWritten)

	entry, err := store.GetEntry(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Equal(t, Fingerprint(edited), entry.Fingerprint)
}

func TestOrchestratorInsufficientHistory(t *testing.T) {
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(testBars(2))}}
	orch, _, _ := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})

	res := orch.ProcessSymbol(context.Background(), "high", plugin, "600000", false)
	require.Equal(t, models.TaskFailed, res.Status)
	require.Equal(t, models.ErrInsufficientHistory, models.KindOf(res.Err))
}

func TestOrchestratorInvalidSeries(t *testing.T) {
	bars := testBars(5)
	bars[3].Date = bars[2].Date
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(bars)}}
	orch, _, _ := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})

	res := orch.ProcessSymbol(context.Background(), "high", plugin, "600000", false)
	require.Equal(t, models.TaskFailed, res.Status)
	require.Equal(t, models.ErrInputData, models.KindOf(res.Err))
}

func TestOrchestratorCorruptStateFallsBackToFull(t *testing.T) {
	bars := testBars(11)
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(bars[:10])}}
	orch, store, _ := newTestOrchestrator(t, src)
	plugin := indicator.NewSMA([]int{3})
	ctx := context.Background()

	orch.ProcessSymbol(ctx, "high", plugin, "600000", false)

	entry, err := store.GetEntry(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	entry.PluginState = []byte(`{"closes":"truncated"}`)
	require.NoError(t, store.PutEntry(ctx, "high", entry))

	src.series["600000"] = seriesOf(bars)
	res := orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionFull, res.Action)
	require.Equal(t, 9, res.RowsWritten)
}

// flakyCache fails a number of entry writes, then recovers.
type flakyCache struct {
	*internalrepo.FileStore
	failPuts int
}

func (c *flakyCache) PutEntry(ctx context.Context, cohort string, entry *models.CacheEntry) error {
	if c.failPuts > 0 {
		c.failPuts--
		return errors.New("disk full")
	}
	return c.FileStore.PutEntry(ctx, cohort, entry)
}

func TestOrchestratorResumeAfterPartialAppendDoesNotDuplicate(t *testing.T) {
	bars := testBars(12)
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": seriesOf(bars[:10])}}
	store := internalrepo.NewFileStore(t.TempDir())
	cache := &flakyCache{FileStore: store}
	orch := NewOrchestrator(src, cache, store, nil, applogger.Nop(), OrchestratorConfig{
		MinLookback:   3,
		RetryAttempts: 1,
	})
	plugin := indicator.NewSMA([]int{3})
	ctx := context.Background()

	res := orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, 8, res.RowsWritten)

	// The artifact append lands but the entry update fails, leaving the
	// artifact one row ahead of the entry.
	cache.failPuts = 1
	src.series["600000"] = seriesOf(bars[:11])
	res = orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskFailed, res.Status)
	require.Equal(t, models.ErrIO, models.KindOf(res.Err))

	rows, err := store.ReadArtifact(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Len(t, rows, 9, "the interrupted append itself succeeded")

	// The next run must notice the divergence, rebuild, and end with no
	// duplicated dates.
	src.series["600000"] = seriesOf(bars)
	res = orch.ProcessSymbol(ctx, "high", plugin, "600000", false)
	require.Equal(t, models.TaskWritten, res.Status)
	require.Equal(t, models.ActionFull, res.Action)

	rows, err = store.ReadArtifact(ctx, "high", "sma", "600000")
	require.NoError(t, err)
	require.Len(t, rows, 10)
	seen := make(map[string]int)
	for _, row := range rows {
		seen[row.Date]++
		require.Equal(t, 1, seen[row.Date], "date %s written more than once", row.Date)
	}

	fresh, _, err := plugin.Compute(bars, plugin.NewState())
	require.NoError(t, err)
	require.Len(t, rows, len(fresh))
	for i := range fresh {
		require.Equal(t, fresh[i].Date, rows[i].Date)
		require.InDelta(t, fresh[i].Values[0].Float, rows[i].Values[0].Float, 1e-8)
	}
}
