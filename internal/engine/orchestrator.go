package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/domain/repository"
	"IndiCache/internal/indicator"
	applogger "IndiCache/pkg/logger"
)

// Orchestrator runs the full per-symbol pipeline for one indicator family:
// read source, classify against the cache, compute through the plugin,
// persist output and cache entry. One call is one task; tasks never share
// mutable state, so any number of them may run concurrently.
type Orchestrator struct {
	source  repository.SourceReader
	cache   repository.CacheStore
	out     repository.OutputWriter
	metrics repository.Metrics
	log     *applogger.Logger

	minLookback   int
	retryAttempts int
	retryBackoff  time.Duration
}

// OrchestratorConfig bundles the engine-level knobs.
type OrchestratorConfig struct {
	MinLookback   int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// NewOrchestrator creates a compute orchestrator.
func NewOrchestrator(
	source repository.SourceReader,
	cache repository.CacheStore,
	out repository.OutputWriter,
	metrics repository.Metrics,
	log *applogger.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.MinLookback <= 0 {
		cfg.MinLookback = 30
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	return &Orchestrator{
		source:        source,
		cache:         cache,
		out:           out,
		metrics:       metrics,
		log:           log,
		minLookback:   cfg.MinLookback,
		retryAttempts: cfg.RetryAttempts,
		retryBackoff:  cfg.RetryBackoff,
	}
}

// ProcessSymbol executes one symbol task. All typed failures are folded
// into the returned result; the error inside never escapes the task
// boundary.
func (o *Orchestrator) ProcessSymbol(ctx context.Context, cohort string, plugin indicator.Plugin, code string, force bool) *models.TaskResult {
	start := time.Now()
	res := &models.TaskResult{
		Cohort: cohort,
		Family: plugin.Name(),
		Code:   code,
		Status: models.TaskPending,
	}
	defer func() {
		res.Duration = time.Since(start)
		o.observe(res)
	}()

	series, err := o.readSeries(ctx, code, plugin)
	if err != nil {
		return o.fail(res, err)
	}

	entry := o.loadEntry(ctx, cohort, plugin.Name(), code)
	dec := Classify(series, entry, force)
	res.Status = models.TaskClassified
	res.Action = dec.Action

	switch dec.Action {
	case models.ActionSkip:
		res.Entry = entry
		res.Status = models.TaskWritten
		return res

	case models.ActionAppend:
		state, ok := o.carriedState(plugin, entry)
		if ok {
			ok = o.artifactConsistent(ctx, cohort, plugin, entry)
		}
		if !ok {
			// No usable carried state, or the artifact disagrees with
			// the entry; degrade to a rebuild.
			dec = Decision{Action: models.ActionFull, NewBars: series.Bars}
			res.Action = models.ActionFull
			return o.rebuild(ctx, res, cohort, plugin, series, entry, dec)
		}
		return o.extend(ctx, res, cohort, plugin, series, entry, dec, state)

	default:
		return o.rebuild(ctx, res, cohort, plugin, series, entry, dec)
	}
}

// readSeries loads and validates the source series, enforcing the history
// floor.
func (o *Orchestrator) readSeries(ctx context.Context, code string, plugin indicator.Plugin) (*models.SymbolSeries, error) {
	series, err := o.source.ReadSeries(ctx, code)
	if err != nil {
		return nil, models.InputDataError(code, err)
	}
	if err := series.Validate(); err != nil {
		return nil, models.InputDataError(code, err)
	}

	floor := o.minLookback
	if plugin.MinLookback() > floor {
		floor = plugin.MinLookback()
	}
	if len(series.Bars) < floor {
		return nil, models.InsufficientHistoryError(code, len(series.Bars), floor)
	}
	return series, nil
}

// loadEntry fetches the cache entry; unreadable entries degrade to a cold
// cache rather than failing the task.
func (o *Orchestrator) loadEntry(ctx context.Context, cohort, family, code string) *models.CacheEntry {
	entry, err := o.cache.GetEntry(ctx, cohort, family, code)
	if err != nil {
		if !errors.Is(err, repository.ErrEntryNotFound) {
			o.log.Warn("cache entry unreadable, rebuilding",
				applogger.String("cohort", cohort),
				applogger.String("family", family),
				applogger.String("symbol", code),
				applogger.Error(err),
			)
		}
		return nil
	}
	return entry
}

// carriedState decodes the entry's plugin state for an incremental append.
func (o *Orchestrator) carriedState(plugin indicator.Plugin, entry *models.CacheEntry) (indicator.State, bool) {
	if entry == nil || len(entry.PluginState) == 0 {
		return nil, false
	}
	state, err := plugin.DecodeState(entry.PluginState)
	if err != nil {
		o.log.Warn("carried state undecodable, rebuilding",
			applogger.String("symbol", entry.Code),
			applogger.String("family", plugin.Name()),
			applogger.Error(err),
		)
		return nil, false
	}
	return state, true
}

// artifactConsistent checks that the existing artifact ends exactly where
// the cache entry says it does. A crash or entry-write failure after a
// successful append leaves the artifact ahead of the entry; appending
// against it again would duplicate rows, so such a task rebuilds instead.
func (o *Orchestrator) artifactConsistent(ctx context.Context, cohort string, plugin indicator.Plugin, entry *models.CacheEntry) bool {
	rows, err := o.out.ReadArtifact(ctx, cohort, plugin.Name(), entry.Code)
	if err != nil {
		o.log.Warn("artifact unreadable before append, rebuilding",
			applogger.String("symbol", entry.Code),
			applogger.String("family", plugin.Name()),
			applogger.Error(err),
		)
		return false
	}
	if len(rows) != entry.RowCount || (len(rows) > 0 && rows[len(rows)-1].Date > entry.LastDate) {
		o.log.Warn("artifact diverges from cache entry, rebuilding",
			applogger.String("symbol", entry.Code),
			applogger.String("family", plugin.Name()),
			applogger.Int("artifact_rows", len(rows)),
			applogger.Int("entry_rows", entry.RowCount),
		)
		return false
	}
	return true
}

// extend computes only the trailing bars against carried state and appends
// the new rows to the existing artifact.
func (o *Orchestrator) extend(ctx context.Context, res *models.TaskResult, cohort string, plugin indicator.Plugin, series *models.SymbolSeries, entry *models.CacheEntry, dec Decision, state indicator.State) *models.TaskResult {
	rows, newState, err := plugin.Compute(dec.NewBars, state)
	if err != nil {
		return o.fail(res, models.ComputeError(res.Code, err))
	}
	res.Status = models.TaskComputed
	o.stampRows(res.Code, rows)

	if len(rows) > 0 {
		err = o.withRetry(ctx, func() error {
			return o.out.AppendRows(ctx, cohort, plugin.Name(), res.Code, plugin.FieldNames(), rows)
		})
		if err != nil {
			return o.fail(res, models.IOError(res.Code, err))
		}
	}

	newEntry, err := o.buildEntry(plugin, series, newState, entry.RowCount+len(rows))
	if err != nil {
		return o.fail(res, models.ComputeError(res.Code, err))
	}
	if err := o.putEntry(ctx, cohort, newEntry); err != nil {
		return o.fail(res, models.IOError(res.Code, err))
	}
	o.log.Debug("series extended",
		applogger.String("symbol", res.Code),
		applogger.String("family", res.Family),
		applogger.Int("rows", len(rows)),
		applogger.String("fingerprint", shortFP(newEntry.Fingerprint)),
	)

	res.RowsWritten = len(rows)
	res.Entry = newEntry
	res.Status = models.TaskWritten
	return res
}

// rebuild recomputes the entire series from a fresh state, invalidating
// any stale entry before recreating it.
func (o *Orchestrator) rebuild(ctx context.Context, res *models.TaskResult, cohort string, plugin indicator.Plugin, series *models.SymbolSeries, entry *models.CacheEntry, dec Decision) *models.TaskResult {
	rows, newState, err := plugin.Compute(dec.NewBars, plugin.NewState())
	if err != nil {
		return o.fail(res, models.ComputeError(res.Code, err))
	}
	res.Status = models.TaskComputed
	o.stampRows(res.Code, rows)

	if entry != nil {
		if err := o.cache.DeleteEntry(ctx, cohort, plugin.Name(), res.Code); err != nil {
			return o.fail(res, models.IOError(res.Code, err))
		}
	}

	err = o.withRetry(ctx, func() error {
		return o.out.WriteFull(ctx, cohort, plugin.Name(), res.Code, plugin.FieldNames(), rows)
	})
	if err != nil {
		return o.fail(res, models.IOError(res.Code, err))
	}

	newEntry, err := o.buildEntry(plugin, series, newState, len(rows))
	if err != nil {
		return o.fail(res, models.ComputeError(res.Code, err))
	}
	if err := o.putEntry(ctx, cohort, newEntry); err != nil {
		return o.fail(res, models.IOError(res.Code, err))
	}

	res.RowsWritten = len(rows)
	res.Entry = newEntry
	res.Status = models.TaskWritten
	return res
}

// buildEntry assembles the cache entry recording the series as of its
// current last date.
func (o *Orchestrator) buildEntry(plugin indicator.Plugin, series *models.SymbolSeries, state indicator.State, rowCount int) (*models.CacheEntry, error) {
	encoded, err := state.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode plugin state: %w", err)
	}
	return &models.CacheEntry{
		Code:         series.Code,
		Family:       plugin.Name(),
		Fingerprint:  Fingerprint(series.Bars),
		LastDate:     series.LastDate(),
		RowCount:     rowCount,
		PluginState:  encoded,
		LastCalcTime: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) putEntry(ctx context.Context, cohort string, entry *models.CacheEntry) error {
	return o.withRetry(ctx, func() error {
		return o.cache.PutEntry(ctx, cohort, entry)
	})
}

func (o *Orchestrator) stampRows(code string, rows []models.IndicatorRow) {
	now := time.Now().UTC()
	for i := range rows {
		rows[i].Code = code
		rows[i].CalcTime = now
	}
}

// withRetry retries I/O with linear backoff; classification and compute
// are never retried.
func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == o.retryAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * o.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (o *Orchestrator) fail(res *models.TaskResult, err error) *models.TaskResult {
	res.Status = models.TaskFailed
	res.Err = err
	o.log.Error("symbol task failed",
		applogger.String("cohort", res.Cohort),
		applogger.String("family", res.Family),
		applogger.String("symbol", res.Code),
		applogger.Error(err),
	)
	return res
}

func (o *Orchestrator) observe(res *models.TaskResult) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordTaskDuration(res.Cohort, res.Family, res.Duration.Seconds())
	if res.Status == models.TaskFailed {
		o.metrics.RecordFailure(res.Cohort, res.Family, models.KindOf(res.Err))
		return
	}
	o.metrics.RecordTask(res.Cohort, res.Family, res.Action)
	if res.RowsWritten > 0 {
		o.metrics.RecordRowsWritten(res.Cohort, res.Family, res.RowsWritten)
	}
}
