package engine

import (
	"context"
	"fmt"

	"IndiCache/internal/domain/models"
	"IndiCache/internal/domain/repository"
	applogger "IndiCache/pkg/logger"
)

// CleanupReport summarizes one cohort cleanup pass.
type CleanupReport struct {
	Cohort           string `json:"cohort"`
	RemovedEntries   int    `json:"removed_entries"`
	RemovedArtifacts int    `json:"removed_artifacts"`
	PrunedSymbols    int    `json:"pruned_symbols"`
}

// StatusReport is the read-only view served by the status operation.
type StatusReport struct {
	Global  *models.GlobalMeta   `json:"global"`
	Cohorts []*models.CohortMeta `json:"cohorts"`
}

// Maintainer hosts the non-compute housekeeping operations: orphan
// cleanup and status inspection. It shares the stores with the batch
// driver but never computes indicators.
type Maintainer struct {
	cohorts repository.CohortProvider
	cache   repository.CacheStore
	out     repository.OutputWriter
	meta    repository.MetaStore
	log     *applogger.Logger
}

// NewMaintainer creates a maintainer over the shared stores.
func NewMaintainer(
	cohorts repository.CohortProvider,
	cache repository.CacheStore,
	out repository.OutputWriter,
	meta repository.MetaStore,
	log *applogger.Logger,
) *Maintainer {
	return &Maintainer{cohorts: cohorts, cache: cache, out: out, meta: meta, log: log}
}

// Cleanup removes entries, artifacts and meta records for symbols that
// left the cohort's membership list.
func (m *Maintainer) Cleanup(ctx context.Context, cohort string, families []string) (*CleanupReport, error) {
	members, err := m.cohorts.Members(cohort)
	if err != nil {
		return nil, fmt.Errorf("cohort %s membership: %w", cohort, err)
	}
	keep := make(map[string]struct{}, len(members))
	for _, code := range members {
		keep[code] = struct{}{}
	}

	report := &CleanupReport{Cohort: cohort}
	for _, family := range families {
		entries, err := m.cache.ListEntries(ctx, cohort, family)
		if err != nil {
			return nil, fmt.Errorf("list entries %s/%s: %w", cohort, family, err)
		}
		for _, e := range entries {
			if _, ok := keep[e.Code]; ok {
				continue
			}
			if err := m.cache.DeleteEntry(ctx, cohort, family, e.Code); err != nil {
				m.log.Warn("orphan entry delete failed",
					applogger.String("cohort", cohort),
					applogger.String("family", family),
					applogger.String("symbol", e.Code),
					applogger.Error(err),
				)
				continue
			}
			report.RemovedEntries++
		}

		codes, err := m.out.ListArtifacts(ctx, cohort, family)
		if err != nil {
			return nil, fmt.Errorf("list artifacts %s/%s: %w", cohort, family, err)
		}
		for _, code := range codes {
			if _, ok := keep[code]; ok {
				continue
			}
			if err := m.out.RemoveArtifact(ctx, cohort, family, code); err != nil {
				m.log.Warn("orphan artifact delete failed",
					applogger.String("cohort", cohort),
					applogger.String("family", family),
					applogger.String("symbol", code),
					applogger.Error(err),
				)
				continue
			}
			report.RemovedArtifacts++
		}
	}

	meta, err := m.meta.LoadCohortMeta(ctx, cohort)
	if err == nil {
		for code := range meta.Symbols {
			if _, ok := keep[code]; !ok {
				delete(meta.Symbols, code)
				report.PrunedSymbols++
			}
		}
		meta.TotalSymbols = len(meta.Symbols)
		if err := m.meta.SaveCohortMeta(ctx, meta); err != nil {
			return nil, fmt.Errorf("save cohort meta %s: %w", cohort, err)
		}
	} else {
		m.log.Warn("cohort meta unreadable during cleanup",
			applogger.String("cohort", cohort),
			applogger.Error(err),
		)
	}

	m.log.Info("cleanup finished",
		applogger.String("cohort", cohort),
		applogger.Int("removed_entries", report.RemovedEntries),
		applogger.Int("removed_artifacts", report.RemovedArtifacts),
		applogger.Int("pruned_symbols", report.PrunedSymbols),
	)
	return report, nil
}

// Status assembles the read-only cohort and global view.
func (m *Maintainer) Status(ctx context.Context, cohorts []string) (*StatusReport, error) {
	report := &StatusReport{}
	if len(cohorts) == 0 {
		names, err := m.cohorts.Cohorts()
		if err != nil {
			return nil, fmt.Errorf("list cohorts: %w", err)
		}
		cohorts = names
	}

	for _, cohort := range cohorts {
		meta, err := m.meta.LoadCohortMeta(ctx, cohort)
		if err != nil {
			m.log.Warn("cohort meta unreadable",
				applogger.String("cohort", cohort),
				applogger.Error(err),
			)
			meta = models.NewCohortMeta(cohort)
		}
		report.Cohorts = append(report.Cohorts, meta)
	}

	global, err := m.meta.LoadGlobalMeta(ctx)
	if err != nil {
		m.log.Warn("global meta unreadable", applogger.Error(err))
		global = &models.GlobalMeta{}
	}
	report.Global = global
	return report, nil
}
