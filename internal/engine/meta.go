package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/domain/repository"
	applogger "IndiCache/pkg/logger"
)

// MetaManager owns all mutation of the cohort and global metadata records.
// Workers never touch meta directly; they hand their TaskResult to a
// session and the session's single goroutine folds it in. This keeps the
// meta files free of write races without any locking on the hot path.
type MetaManager struct {
	store repository.MetaStore
	cache repository.CacheStore
	log   *applogger.Logger
}

// NewMetaManager creates a meta manager over the given store.
func NewMetaManager(store repository.MetaStore, cache repository.CacheStore, log *applogger.Logger) *MetaManager {
	return &MetaManager{store: store, cache: cache, log: log}
}

// MetaSession is one cohort's single-writer fold. Apply may be called from
// any number of workers; Finish drains, records the update history entry
// and persists the record.
type MetaSession struct {
	mgr    *MetaManager
	cohort string
	meta   *models.CohortMeta
	in     chan *models.TaskResult
	done   chan struct{}
}

// Begin opens a meta session for one cohort pass. A corrupt or unreadable
// record is healed by rebuilding from the surviving cache entries.
func (m *MetaManager) Begin(ctx context.Context, cohort string, families []string) (*MetaSession, error) {
	meta, err := m.loadOrHeal(ctx, cohort, families)
	if err != nil {
		return nil, err
	}
	// Top-level counters describe the most recent pass only.
	meta.CacheHits, meta.Appends, meta.Recomputes, meta.Failures = 0, 0, 0, 0

	s := &MetaSession{
		mgr:    m,
		cohort: cohort,
		meta:   meta,
		in:     make(chan *models.TaskResult, 64),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// loadOrHeal loads the cohort record, rebuilding it from cache entries
// when the stored copy is corrupt.
func (m *MetaManager) loadOrHeal(ctx context.Context, cohort string, families []string) (*models.CohortMeta, error) {
	meta, err := m.store.LoadCohortMeta(ctx, cohort)
	if err == nil {
		return meta, nil
	}
	var terr *models.TaskError
	if !errors.As(err, &terr) || terr.Kind != models.ErrMetaCorruption {
		return nil, err
	}

	m.log.Warn("cohort meta corrupt, rebuilding from cache entries",
		applogger.String("cohort", cohort),
		applogger.Error(err),
	)
	meta = models.NewCohortMeta(cohort)
	for _, family := range families {
		entries, lerr := m.cache.ListEntries(ctx, cohort, family)
		if lerr != nil {
			m.log.Warn("cache scan during meta heal failed",
				applogger.String("cohort", cohort),
				applogger.String("family", family),
				applogger.Error(lerr),
			)
			continue
		}
		for _, e := range entries {
			meta.Symbol(e.Code).Families[family] = &models.FamilyMeta{
				Fingerprint:  e.Fingerprint,
				LastDate:     e.LastDate,
				RowCount:     e.RowCount,
				LastCalcTime: e.LastCalcTime,
			}
		}
	}
	if err := m.store.SaveCohortMeta(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Apply hands one finished task to the session's writer goroutine and
// promotes the result to its terminal status.
func (s *MetaSession) Apply(res *models.TaskResult) {
	s.in <- res
}

func (s *MetaSession) run() {
	defer close(s.done)
	for res := range s.in {
		s.fold(res)
		if res.Status == models.TaskWritten {
			res.Status = models.TaskMetaUpdated
		}
		// Persist whenever the writer catches up, so a crash mid-pass
		// loses at most the results still queued in the channel.
		if len(s.in) == 0 {
			s.persist()
		}
	}
}

func (s *MetaSession) persist() {
	if err := s.mgr.store.SaveCohortMeta(context.Background(), s.meta); err != nil {
		s.mgr.log.Warn("cohort meta save failed",
			applogger.String("cohort", s.cohort),
			applogger.Error(err),
		)
	}
}

func (s *MetaSession) fold(res *models.TaskResult) {
	sm := s.meta.Symbol(res.Code)

	if res.Status == models.TaskFailed {
		s.meta.Failures++
		fm, ok := sm.Families[res.Family]
		if !ok {
			fm = &models.FamilyMeta{}
			sm.Families[res.Family] = fm
		}
		fm.FailureReason = res.Err.Error()
		return
	}

	switch res.Action {
	case models.ActionSkip:
		s.meta.CacheHits++
	case models.ActionAppend:
		s.meta.Appends++
	case models.ActionFull:
		s.meta.Recomputes++
	}
	if res.Entry != nil {
		sm.Families[res.Family] = &models.FamilyMeta{
			Fingerprint:  res.Entry.Fingerprint,
			LastDate:     res.Entry.LastDate,
			RowCount:     res.Entry.RowCount,
			LastCalcTime: res.Entry.LastCalcTime,
		}
	}
}

// Finish drains the session, appends the pass to the update history ring
// and persists the cohort record atomically.
func (s *MetaSession) Finish(ctx context.Context, report *models.CohortReport) error {
	close(s.in)
	<-s.done

	s.meta.LastRun = time.Now().UTC()
	s.meta.TotalSymbols = len(s.meta.Symbols)
	s.meta.UpdateHistory = append(s.meta.UpdateHistory, models.UpdateRecord{
		Timestamp: s.meta.LastRun,
		Family:    report.Family,
		Skipped:   report.Skipped,
		Appended:  report.Appends,
		Rebuilt:   report.Rebuilt,
		Failed:    report.Failed,
		Elapsed:   report.Elapsed,
	})
	if n := len(s.meta.UpdateHistory); n > models.UpdateHistoryLimit {
		s.meta.UpdateHistory = s.meta.UpdateHistory[n-models.UpdateHistoryLimit:]
	}
	return s.mgr.store.SaveCohortMeta(ctx, s.meta)
}

// Meta exposes the folded record; callers must only use it after Finish.
func (s *MetaSession) Meta() *models.CohortMeta {
	return s.meta
}

// ChangeAnalysis compares the current membership list against the
// symbols the cohort record already tracks. It reads the record as it
// stands before the pass; an unreadable record degrades to "everything
// entered".
func (m *MetaManager) ChangeAnalysis(ctx context.Context, cohort string, members []string) *models.MembershipChange {
	change := &models.MembershipChange{Cohort: cohort}

	known := make(map[string]struct{})
	if meta, err := m.store.LoadCohortMeta(ctx, cohort); err == nil {
		for code := range meta.Symbols {
			known[code] = struct{}{}
		}
	}

	current := make(map[string]struct{}, len(members))
	for _, code := range members {
		current[code] = struct{}{}
		if _, ok := known[code]; ok {
			change.Continued++
		} else {
			change.Entered = append(change.Entered, code)
		}
	}
	for code := range known {
		if _, ok := current[code]; !ok {
			change.Departed = append(change.Departed, code)
		}
	}
	sort.Strings(change.Entered)
	sort.Strings(change.Departed)
	return change
}

// UpdateGlobal folds a finished run into the global record.
func (m *MetaManager) UpdateGlobal(ctx context.Context, report *models.RunReport) error {
	global, err := m.store.LoadGlobalMeta(ctx)
	if err != nil {
		var terr *models.TaskError
		if !errors.As(err, &terr) || terr.Kind != models.ErrMetaCorruption {
			return err
		}
		m.log.Warn("global meta corrupt, starting fresh", applogger.Error(err))
		global = &models.GlobalMeta{}
	}

	seen := make(map[string]struct{}, len(global.Cohorts))
	for _, c := range global.Cohorts {
		seen[c] = struct{}{}
	}
	totals := report.Totals()
	global.LastRun = time.Now().UTC()
	global.TotalSymbols = totals.Total
	global.CacheHits = totals.Skipped
	global.Appends = totals.Appends
	global.Recomputes = totals.Rebuilt
	global.Failures = totals.Failed
	for _, c := range report.Cohorts {
		if _, ok := seen[c.Cohort]; !ok {
			seen[c.Cohort] = struct{}{}
			global.Cohorts = append(global.Cohorts, c.Cohort)
		}
	}
	sort.Strings(global.Cohorts)
	return m.store.SaveGlobalMeta(ctx, global)
}
