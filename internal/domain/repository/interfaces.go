package repository

import (
	"context"
	"errors"

	"IndiCache/internal/domain/models"
)

// ErrEntryNotFound is returned by CacheStore when no entry exists for a
// (cohort, family, symbol) triple.
var ErrEntryNotFound = errors.New("cache entry not found")

// SourceReader supplies the ordered per-symbol bar sequence. Acquisition
// and synchronization of the underlying price data is outside this core.
type SourceReader interface {
	ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error)
}

// CohortProvider exposes the externally supplied threshold membership
// lists. Read-only to this core.
type CohortProvider interface {
	Cohorts() ([]string, error)
	Members(cohort string) ([]string, error)
}

// CacheStore owns the per-(symbol, family) cache entries. Entries are
// partitioned per symbol, so no cross-worker synchronization is required.
type CacheStore interface {
	EnsureInitialized(ctx context.Context, cohorts []string) error
	GetEntry(ctx context.Context, cohort, family, code string) (*models.CacheEntry, error)
	PutEntry(ctx context.Context, cohort string, entry *models.CacheEntry) error
	DeleteEntry(ctx context.Context, cohort, family, code string) error
	ListEntries(ctx context.Context, cohort, family string) ([]*models.CacheEntry, error)
	Close() error
}

// OutputWriter persists finalized indicator rows. Both paths write through
// a temp file plus atomic rename, so a crash never leaves a half-written
// artifact observable.
type OutputWriter interface {
	WriteFull(ctx context.Context, cohort, family, code string, fields []string, rows []models.IndicatorRow) error
	AppendRows(ctx context.Context, cohort, family, code string, fields []string, rows []models.IndicatorRow) error
	ReadArtifact(ctx context.Context, cohort, family, code string) ([]models.IndicatorRow, error)
	RemoveArtifact(ctx context.Context, cohort, family, code string) error
	ListArtifacts(ctx context.Context, cohort, family string) ([]string, error)
}

// MetaStore persists the per-cohort and global run metadata records.
// Corrupt records surface as a models.ErrMetaCorruption task error so the
// meta manager can self-heal.
type MetaStore interface {
	LoadCohortMeta(ctx context.Context, cohort string) (*models.CohortMeta, error)
	SaveCohortMeta(ctx context.Context, meta *models.CohortMeta) error
	LoadGlobalMeta(ctx context.Context) (*models.GlobalMeta, error)
	SaveGlobalMeta(ctx context.Context, meta *models.GlobalMeta) error
}

// ReportPublisher emits finished run reports to downstream consumers.
type ReportPublisher interface {
	PublishRunReport(ctx context.Context, report *models.RunReport) error
	Close() error
}

// Metrics records engine-level observations.
type Metrics interface {
	RecordTask(cohort, family string, action models.Action)
	RecordFailure(cohort, family string, kind models.ErrKind)
	RecordTaskDuration(cohort, family string, seconds float64)
	RecordRowsWritten(cohort, family string, n int)
	RecordHitRate(cohort, family string, rate float64)
}
