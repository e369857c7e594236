package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/domain/repository"
	"IndiCache/internal/indicator"
	internalrepo "IndiCache/internal/repository"
	"IndiCache/pkg/lock"
	applogger "IndiCache/pkg/logger"
)

type fakeCohorts struct {
	members map[string][]string
}

func (f *fakeCohorts) Cohorts() ([]string, error) {
	names := make([]string, 0, len(f.members))
	for name := range f.members {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeCohorts) Members(cohort string) ([]string, error) {
	m, ok := f.members[cohort]
	if !ok {
		return nil, errors.New("unknown cohort")
	}
	return m, nil
}

func newTestBatch(t *testing.T, src *fakeSource, cohorts *fakeCohorts, ceiling float64) (*Batch, *internalrepo.FileStore) {
	t.Helper()
	store := internalrepo.NewFileStore(t.TempDir())
	log := applogger.Nop()

	orch := NewOrchestrator(src, store, store, nil, log, OrchestratorConfig{MinLookback: 3})
	meta := NewMetaManager(store, store, log)
	return NewBatch(orch, meta, cohorts, store, nil, nil, lock.NewLocal(), log, BatchConfig{
		MaxWorkers:     4,
		TaskTimeout:    time.Minute,
		FailureCeiling: ceiling,
	}), store
}

func barsSeries(code string, n int) *models.SymbolSeries {
	return &models.SymbolSeries{Code: code, Bars: testBars(n)}
}

func TestBatchRunThenRerunIsAllSkips(t *testing.T) {
	src := &fakeSource{series: map[string]*models.SymbolSeries{
		"600000": barsSeries("600000", 10),
		"600001": barsSeries("600001", 12),
		"600002": barsSeries("600002", 15),
	}}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000", "600001", "600002"}}}
	batch, store := newTestBatch(t, src, cohorts, 0.99)
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3}), indicator.NewOBV()}
	ctx := context.Background()

	report, err := batch.RunAll(ctx, plugins, false)
	require.NoError(t, err)
	totals := report.Totals()
	require.Equal(t, 6, totals.Total)
	require.Equal(t, 6, totals.Rebuilt)
	require.Zero(t, totals.Failed)
	require.Len(t, report.Changes, 1)
	require.Len(t, report.Changes[0].Entered, 3)

	report, err = batch.RunAll(ctx, plugins, false)
	require.NoError(t, err)
	totals = report.Totals()
	require.Equal(t, 6, totals.Skipped)
	require.Zero(t, totals.Rebuilt)
	require.Equal(t, 3, report.Changes[0].Continued)
	require.Empty(t, report.Changes[0].Entered)

	meta, err := store.LoadCohortMeta(ctx, "high")
	require.NoError(t, err)
	require.Equal(t, 3, meta.TotalSymbols)
	require.Len(t, meta.UpdateHistory, 4) // one record per (run, family) pass
}

func TestBatchFailureIsolation(t *testing.T) {
	broken := barsSeries("600001", 8)
	broken.Bars[4].Date = broken.Bars[3].Date
	src := &fakeSource{series: map[string]*models.SymbolSeries{
		"600000": barsSeries("600000", 10),
		"600001": broken,
		"600002": barsSeries("600002", 15),
	}}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000", "600001", "600002"}}}
	batch, store := newTestBatch(t, src, cohorts, 0.5)
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3})}
	ctx := context.Background()

	report, err := batch.RunAll(ctx, plugins, false)
	require.NoError(t, err)
	totals := report.Totals()
	require.Equal(t, 3, totals.Total)
	require.Equal(t, 1, totals.Failed)
	require.Equal(t, 2, totals.Rebuilt)

	meta, err := store.LoadCohortMeta(ctx, "high")
	require.NoError(t, err)
	require.Equal(t, 1, meta.Failures)
	fm := meta.Symbols["600001"].Families["sma"]
	require.NotEmpty(t, fm.FailureReason)
}

func TestBatchFailureCeilingBreach(t *testing.T) {
	broken := barsSeries("600001", 8)
	broken.Bars[4].Date = broken.Bars[3].Date
	src := &fakeSource{series: map[string]*models.SymbolSeries{
		"600000": barsSeries("600000", 10),
		"600001": broken,
	}}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000", "600001"}}}
	batch, _ := newTestBatch(t, src, cohorts, 0.2)
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3})}

	report, err := batch.RunAll(context.Background(), plugins, false)
	require.ErrorIs(t, err, ErrFailureCeiling)
	require.NotNil(t, report, "report must accompany a ceiling breach")
}

func TestBatchConcurrentCountsMatchSerial(t *testing.T) {
	series := make(map[string]*models.SymbolSeries)
	members := make([]string, 0, 24)
	for i := 0; i < 24; i++ {
		code := "6000" + string([]byte{byte('0' + i/10), byte('0' + i%10)})
		series[code] = barsSeries(code, 10+i%5)
		members = append(members, code)
	}
	src := &fakeSource{series: series}
	cohorts := &fakeCohorts{members: map[string][]string{"high": members}}
	batch, store := newTestBatch(t, src, cohorts, 0.99)
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3})}
	ctx := context.Background()

	report, err := batch.RunAll(ctx, plugins, false)
	require.NoError(t, err)
	require.Equal(t, 24, report.Totals().Rebuilt)

	meta, err := store.LoadCohortMeta(ctx, "high")
	require.NoError(t, err)
	require.Equal(t, 24, meta.Recomputes)
	require.Equal(t, 24, len(meta.Symbols))
}

func TestBatchRunSymbol(t *testing.T) {
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": barsSeries("600000", 10)}}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000"}}}
	batch, _ := newTestBatch(t, src, cohorts, 0.99)
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3})}

	report, err := batch.RunSymbol(context.Background(), "high", "600000", plugins, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Totals().Total)
	require.Equal(t, 1, report.Totals().Rebuilt)
}

func TestBatchRunLockExcludesSecondRun(t *testing.T) {
	src := &fakeSource{series: map[string]*models.SymbolSeries{"600000": barsSeries("600000", 10)}}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000"}}}

	store := internalrepo.NewFileStore(t.TempDir())
	log := applogger.Nop()
	locks := lock.NewLocal()
	orch := NewOrchestrator(src, store, store, nil, log, OrchestratorConfig{MinLookback: 3})
	meta := NewMetaManager(store, store, log)
	batch := NewBatch(orch, meta, cohorts, store, nil, nil, locks, log, BatchConfig{FailureCeiling: 0.99})

	ctx := context.Background()
	held, err := locks.TryLock(ctx, runLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = batch.RunAll(ctx, []indicator.Plugin{indicator.NewSMA([]int{3})}, false)
	require.ErrorIs(t, err, ErrRunLocked)
}

// abortingSource cancels the run context during its first read, then
// serves the rest of the series normally.
type abortingSource struct {
	inner  *fakeSource
	cancel context.CancelFunc
	once   sync.Once
}

func (s *abortingSource) ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error) {
	s.once.Do(s.cancel)
	return s.inner.ReadSeries(ctx, code)
}

func TestBatchAbortDropsQueuedKeepsInFlight(t *testing.T) {
	members := []string{"600000", "600001", "600002", "600003", "600004"}
	series := make(map[string]*models.SymbolSeries, len(members))
	for _, code := range members {
		series[code] = barsSeries(code, 10)
	}
	cohorts := &fakeCohorts{members: map[string][]string{"high": members}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &abortingSource{inner: &fakeSource{series: series}, cancel: cancel}

	store := internalrepo.NewFileStore(t.TempDir())
	log := applogger.Nop()
	orch := NewOrchestrator(src, store, store, nil, log, OrchestratorConfig{MinLookback: 3})
	mgr := NewMetaManager(store, store, log)
	// One worker makes the drop point deterministic: the first task is
	// in flight when the context dies, everything behind it is queued.
	batch := NewBatch(orch, mgr, cohorts, store, nil, nil, lock.NewLocal(), log, BatchConfig{
		MaxWorkers:     1,
		TaskTimeout:    time.Minute,
		FailureCeiling: 0.99,
	})

	report, err := batch.RunAll(ctx, []indicator.Plugin{indicator.NewSMA([]int{3})}, false)
	require.NoError(t, err)
	totals := report.Totals()
	require.Equal(t, 1, totals.Total, "queued tasks must be dropped after abort")
	require.Equal(t, 1, totals.Rebuilt)
	require.Zero(t, totals.Failed)

	// The in-flight task ran to completion and its committed state is
	// valid and resumable.
	entry, err := store.GetEntry(context.Background(), "high", "sma", "600000")
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", entry.LastDate)
	_, err = store.GetEntry(context.Background(), "high", "sma", "600001")
	require.ErrorIs(t, err, repository.ErrEntryNotFound)

	meta, err := store.LoadCohortMeta(context.Background(), "high")
	require.NoError(t, err)
	require.Equal(t, 1, meta.Recomputes)
}

// stallingSource never returns for one chosen symbol until the task
// context gives up.
type stallingSource struct {
	inner *fakeSource
	stall string
}

func (s *stallingSource) ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error) {
	if code == s.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.inner.ReadSeries(ctx, code)
}

func TestBatchTaskTimeoutFailsOnlyThatTask(t *testing.T) {
	src := &stallingSource{
		inner: &fakeSource{series: map[string]*models.SymbolSeries{
			"600000": barsSeries("600000", 10),
		}},
		stall: "600001",
	}
	cohorts := &fakeCohorts{members: map[string][]string{"high": {"600000", "600001"}}}

	store := internalrepo.NewFileStore(t.TempDir())
	log := applogger.Nop()
	orch := NewOrchestrator(src, store, store, nil, log, OrchestratorConfig{MinLookback: 3})
	mgr := NewMetaManager(store, store, log)
	batch := NewBatch(orch, mgr, cohorts, store, nil, nil, lock.NewLocal(), log, BatchConfig{
		MaxWorkers:     2,
		TaskTimeout:    25 * time.Millisecond,
		FailureCeiling: 0.99,
	})

	report, err := batch.RunAll(context.Background(), []indicator.Plugin{indicator.NewSMA([]int{3})}, false)
	require.NoError(t, err)
	totals := report.Totals()
	require.Equal(t, 1, totals.Failed, "the stalled task times out")
	require.Equal(t, 1, totals.Rebuilt, "siblings are unaffected")

	meta, err := store.LoadCohortMeta(context.Background(), "high")
	require.NoError(t, err)
	require.NotEmpty(t, meta.Symbols["600001"].Families["sma"].FailureReason)
}

func TestBatchHighFanoutCounts(t *testing.T) {
	series := make(map[string]*models.SymbolSeries)
	members := make([]string, 0, 32)
	for i := 0; i < 32; i++ {
		code := "6001" + string([]byte{byte('0' + i/10), byte('0' + i%10)})
		series[code] = barsSeries(code, 10+i%7)
		members = append(members, code)
	}
	cohorts := &fakeCohorts{members: map[string][]string{"high": members}}

	store := internalrepo.NewFileStore(t.TempDir())
	log := applogger.Nop()
	orch := NewOrchestrator(&fakeSource{series: series}, store, store, nil, log, OrchestratorConfig{MinLookback: 3})
	mgr := NewMetaManager(store, store, log)
	batch := NewBatch(orch, mgr, cohorts, store, nil, nil, lock.NewLocal(), log, BatchConfig{
		MaxWorkers:     8,
		TaskTimeout:    time.Minute,
		FailureCeiling: 0.99,
	})
	plugins := []indicator.Plugin{indicator.NewSMA([]int{3}), indicator.NewOBV()}

	report, err := batch.RunAll(context.Background(), plugins, false)
	require.NoError(t, err)
	totals := report.Totals()
	require.Equal(t, 64, totals.Total)
	require.Equal(t, 64, totals.Rebuilt)
	require.Zero(t, totals.Failed)

	report, err = batch.RunAll(context.Background(), plugins, false)
	require.NoError(t, err)
	require.Equal(t, 64, report.Totals().Skipped)
}
