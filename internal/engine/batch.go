package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/domain/repository"
	"IndiCache/internal/indicator"
	applogger "IndiCache/pkg/logger"
	"IndiCache/pkg/lock"
)

// ErrFailureCeiling signals that the run finished but its failure rate
// crossed the configured ceiling. Callers translate it into a non-zero
// exit; individual task failures alone never do.
var ErrFailureCeiling = errors.New("failure rate ceiling exceeded")

// ErrRunLocked signals that another process already holds the run lock.
var ErrRunLocked = errors.New("another run holds the lock")

const runLockKey = "batch-run"

// Batch drives cohort passes over a bounded worker pool. Each (symbol,
// family) pair is one task; failures are isolated to their task and the
// pass always runs to completion.
type Batch struct {
	orch    *Orchestrator
	meta    *MetaManager
	cohorts repository.CohortProvider
	cache   repository.CacheStore
	metrics repository.Metrics
	pub     repository.ReportPublisher
	locks   lock.Service
	log     *applogger.Logger

	maxWorkers     int
	taskTimeout    time.Duration
	failureCeiling float64
	lockTTL        time.Duration
}

// BatchConfig bundles the pool and policy knobs.
type BatchConfig struct {
	MaxWorkers     int
	TaskTimeout    time.Duration
	FailureCeiling float64
	LockTTL        time.Duration
}

// NewBatch creates the batch driver.
func NewBatch(
	orch *Orchestrator,
	meta *MetaManager,
	cohorts repository.CohortProvider,
	cache repository.CacheStore,
	metrics repository.Metrics,
	pub repository.ReportPublisher,
	locks lock.Service,
	log *applogger.Logger,
	cfg BatchConfig,
) *Batch {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.FailureCeiling <= 0 {
		cfg.FailureCeiling = 0.2
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &Batch{
		orch:           orch,
		meta:           meta,
		cohorts:        cohorts,
		cache:          cache,
		metrics:        metrics,
		pub:            pub,
		locks:          locks,
		log:            log,
		maxWorkers:     cfg.MaxWorkers,
		taskTimeout:    cfg.TaskTimeout,
		failureCeiling: cfg.FailureCeiling,
		lockTTL:        cfg.LockTTL,
	}
}

// RunAll processes every cohort the provider knows about.
func (b *Batch) RunAll(ctx context.Context, plugins []indicator.Plugin, force bool) (*models.RunReport, error) {
	names, err := b.cohorts.Cohorts()
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return b.RunCohorts(ctx, names, plugins, force)
}

// RunCohorts processes the named cohorts under a single run lock and
// publishes the finished report.
func (b *Batch) RunCohorts(ctx context.Context, names []string, plugins []indicator.Plugin, force bool) (*models.RunReport, error) {
	unlock, err := b.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := b.cache.EnsureInitialized(ctx, names); err != nil {
		return nil, fmt.Errorf("initialize cache: %w", err)
	}

	report := &models.RunReport{StartedAt: time.Now().UTC()}
	for _, cohort := range names {
		if ctx.Err() != nil {
			break
		}
		reports, change, err := b.runCohort(ctx, cohort, plugins, force)
		if err != nil {
			return nil, err
		}
		report.Cohorts = append(report.Cohorts, reports...)
		report.Changes = append(report.Changes, change)
	}
	report.FinishedAt = time.Now().UTC()

	if err := b.meta.UpdateGlobal(ctx, report); err != nil {
		b.log.Error("global meta update failed", applogger.Error(err))
	}
	b.publish(ctx, report)

	if report.FailureRate() > b.failureCeiling {
		return report, fmt.Errorf("%w: %.2f > %.2f", ErrFailureCeiling, report.FailureRate(), b.failureCeiling)
	}
	return report, nil
}

// RunSymbol processes one symbol within one cohort across all families.
func (b *Batch) RunSymbol(ctx context.Context, cohort, code string, plugins []indicator.Plugin, force bool) (*models.RunReport, error) {
	return b.run(ctx, cohort, []string{code}, plugins, force)
}

// runCohort runs one full cohort pass over its membership list. The
// membership change analysis reads the cohort record before the pass
// rewrites it.
func (b *Batch) runCohort(ctx context.Context, cohort string, plugins []indicator.Plugin, force bool) ([]*models.CohortReport, *models.MembershipChange, error) {
	members, err := b.cohorts.Members(cohort)
	if err != nil {
		return nil, nil, fmt.Errorf("cohort %s membership: %w", cohort, err)
	}
	change := b.meta.ChangeAnalysis(ctx, cohort, members)
	if len(change.Entered) > 0 || len(change.Departed) > 0 {
		b.log.Info("cohort membership changed",
			applogger.String("cohort", cohort),
			applogger.Int("entered", len(change.Entered)),
			applogger.Int("continued", change.Continued),
			applogger.Int("departed", len(change.Departed)),
		)
	}
	rep, err := b.run(ctx, cohort, members, plugins, force)
	if err != nil {
		return nil, nil, err
	}
	return rep.Cohorts, change, nil
}

// run is the shared pass body: one meta session and one worker pool per
// (cohort, family).
func (b *Batch) run(ctx context.Context, cohort string, members []string, plugins []indicator.Plugin, force bool) (*models.RunReport, error) {
	out := &models.RunReport{StartedAt: time.Now().UTC()}
	families := make([]string, 0, len(plugins))
	for _, p := range plugins {
		families = append(families, p.Name())
	}

	for _, plugin := range plugins {
		if ctx.Err() != nil {
			break
		}
		session, err := b.meta.Begin(ctx, cohort, families)
		if err != nil {
			return nil, fmt.Errorf("cohort %s meta: %w", cohort, err)
		}

		passStart := time.Now()
		report := &models.CohortReport{Cohort: cohort, Family: plugin.Name()}
		var mu sync.Mutex

		g := new(errgroup.Group)
		g.SetLimit(b.maxWorkers)
		for _, code := range members {
			// Abort drops queued tasks; in-flight ones run to
			// completion so no artifact is torn mid-write.
			if ctx.Err() != nil {
				break
			}
			code := code
			g.Go(func() error {
				// A task still waiting on a pool slot at abort time
				// counts as queued, not in-flight.
				if ctx.Err() != nil {
					return nil
				}
				taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.taskTimeout)
				defer cancel()

				res := b.orch.ProcessSymbol(taskCtx, cohort, plugin, code, force)
				mu.Lock()
				report.Record(res)
				mu.Unlock()
				// Hand off last: the session goroutine owns res from
				// here on and promotes its terminal status.
				session.Apply(res)
				return nil
			})
		}
		_ = g.Wait()
		report.Elapsed = time.Since(passStart)

		if err := session.Finish(ctx, report); err != nil {
			b.log.Error("cohort meta save failed",
				applogger.String("cohort", cohort),
				applogger.String("family", plugin.Name()),
				applogger.Error(err),
			)
		}
		if b.metrics != nil {
			b.metrics.RecordHitRate(cohort, plugin.Name(), report.HitRate())
		}
		b.log.Info("cohort pass finished",
			applogger.String("cohort", cohort),
			applogger.String("family", plugin.Name()),
			applogger.Int("total", report.Total),
			applogger.Int("skipped", report.Skipped),
			applogger.Int("appended", report.Appends),
			applogger.Int("rebuilt", report.Rebuilt),
			applogger.Int("failed", report.Failed),
			applogger.Duration("elapsed", report.Elapsed),
		)
		out.Cohorts = append(out.Cohorts, report)
	}
	out.FinishedAt = time.Now().UTC()
	return out, nil
}

func (b *Batch) acquireLock(ctx context.Context) (func(), error) {
	if b.locks == nil {
		return func() {}, nil
	}
	ok, err := b.locks.TryLock(ctx, runLockKey, b.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunLocked
	}
	return func() {
		if err := b.locks.Unlock(context.WithoutCancel(ctx), runLockKey); err != nil {
			b.log.Warn("run lock release failed", applogger.Error(err))
		}
	}, nil
}

func (b *Batch) publish(ctx context.Context, report *models.RunReport) {
	if b.pub == nil {
		return
	}
	if err := b.pub.PublishRunReport(ctx, report); err != nil {
		b.log.Warn("run report publish failed", applogger.Error(err))
	}
}
