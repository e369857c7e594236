package models

import "time"

// Action is the scheduler's classification of a symbol task.
type Action string

const (
	ActionSkip   Action = "skip"   // cache hit, output reused untouched
	ActionAppend Action = "append" // incremental compute of trailing bars
	ActionFull   Action = "full"   // invalidate and rebuild from scratch
)

// TaskStatus tracks the per-symbol task state machine:
// PENDING -> CLASSIFIED -> COMPUTED -> WRITTEN -> META_UPDATED, with FAILED
// reachable from CLASSIFIED or COMPUTED on any typed error.
type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskClassified  TaskStatus = "classified"
	TaskComputed    TaskStatus = "computed"
	TaskWritten     TaskStatus = "written"
	TaskMetaUpdated TaskStatus = "meta_updated"
	TaskFailed      TaskStatus = "failed"
)

// TaskResult is the terminal outcome of one symbol task, consumed by the
// meta manager and folded into the run report.
type TaskResult struct {
	Cohort      string
	Family      string
	Code        string
	Status      TaskStatus
	Action      Action
	RowsWritten int
	Entry       *CacheEntry
	Err         error
	Duration    time.Duration
}

// CohortReport summarizes one (cohort, family) pass.
type CohortReport struct {
	Cohort  string        `json:"cohort"`
	Family  string        `json:"family"`
	Total   int           `json:"total"`
	Skipped int           `json:"skipped"`
	Appends int           `json:"appends"`
	Rebuilt int           `json:"rebuilt"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// HitRate is the advertised cache reuse rate: (skip+append)/total.
func (r *CohortReport) HitRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Skipped+r.Appends) / float64(r.Total)
}

// Record folds a task result into the report counters.
func (r *CohortReport) Record(res *TaskResult) {
	r.Total++
	if res.Status == TaskFailed {
		r.Failed++
		return
	}
	switch res.Action {
	case ActionSkip:
		r.Skipped++
	case ActionAppend:
		r.Appends++
	case ActionFull:
		r.Rebuilt++
	}
}

// MembershipChange compares a cohort's current membership list against
// the symbols known from previous runs: who entered, who is still
// tracked, who dropped out of the screen.
type MembershipChange struct {
	Cohort    string   `json:"cohort"`
	Entered   []string `json:"entered,omitempty"`
	Continued int      `json:"continued"`
	Departed  []string `json:"departed,omitempty"`
}

// RunReport is the aggregate outcome of a batch run.
type RunReport struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Cohorts    []*CohortReport     `json:"cohorts"`
	Changes    []*MembershipChange `json:"changes,omitempty"`
}

// Totals sums the per-cohort counters.
func (r *RunReport) Totals() CohortReport {
	var t CohortReport
	for _, c := range r.Cohorts {
		t.Total += c.Total
		t.Skipped += c.Skipped
		t.Appends += c.Appends
		t.Rebuilt += c.Rebuilt
		t.Failed += c.Failed
		t.Elapsed += c.Elapsed
	}
	return t
}

// FailureRate is the fraction of failed tasks across the run.
func (r *RunReport) FailureRate() float64 {
	t := r.Totals()
	if t.Total == 0 {
		return 0
	}
	return float64(t.Failed) / float64(t.Total)
}
