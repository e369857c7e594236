package models

import "time"

// FamilyMeta is the per-indicator-family slice of a symbol's meta record.
type FamilyMeta struct {
	Fingerprint   string    `json:"fingerprint"`
	LastDate      string    `json:"last_date"`
	RowCount      int       `json:"row_count"`
	LastCalcTime  time.Time `json:"last_calc_time"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// SymbolMeta aggregates a symbol's per-family records within a cohort.
type SymbolMeta struct {
	Families map[string]*FamilyMeta `json:"families"`
}

// UpdateRecord is one entry of the cohort update history ring.
type UpdateRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Family    string        `json:"family"`
	Skipped   int           `json:"skipped"`
	Appended  int           `json:"appended"`
	Rebuilt   int           `json:"rebuilt"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// UpdateHistoryLimit bounds the cohort update history ring.
const UpdateHistoryLimit = 10

// CohortMeta is the per-cohort run metadata record, keyed by symbol code.
// It is mutated only by the meta manager through a single writer.
type CohortMeta struct {
	Cohort        string                 `json:"cohort"`
	TotalSymbols  int                    `json:"total_symbols"`
	CacheHits     int                    `json:"cache_hits"`
	Appends       int                    `json:"appends"`
	Recomputes    int                    `json:"recomputes"`
	Failures      int                    `json:"failures"`
	LastRun       time.Time              `json:"last_run"`
	Symbols       map[string]*SymbolMeta `json:"symbols"`
	UpdateHistory []UpdateRecord         `json:"update_history,omitempty"`
}

// NewCohortMeta returns an empty, initialized cohort record.
func NewCohortMeta(cohort string) *CohortMeta {
	return &CohortMeta{
		Cohort:  cohort,
		Symbols: make(map[string]*SymbolMeta),
	}
}

// Symbol returns the meta record for code, creating it when absent.
func (m *CohortMeta) Symbol(code string) *SymbolMeta {
	if m.Symbols == nil {
		m.Symbols = make(map[string]*SymbolMeta)
	}
	sm, ok := m.Symbols[code]
	if !ok {
		sm = &SymbolMeta{Families: make(map[string]*FamilyMeta)}
		m.Symbols[code] = sm
	}
	if sm.Families == nil {
		sm.Families = make(map[string]*FamilyMeta)
	}
	return sm
}

// GlobalMeta is the single cross-cohort metadata record.
type GlobalMeta struct {
	LastRun      time.Time `json:"last_run"`
	TotalSymbols int       `json:"total_symbols"`
	CacheHits    int       `json:"cache_hits"`
	Appends      int       `json:"appends"`
	Recomputes   int       `json:"recomputes"`
	Failures     int       `json:"failures"`
	Cohorts      []string  `json:"cohorts"`
}
