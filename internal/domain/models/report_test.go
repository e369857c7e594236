package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestCohortReportRecordAndHitRate(t *testing.T) {
	r := &CohortReport{Cohort: "high", Family: "sma"}
	r.Record(&TaskResult{Status: TaskMetaUpdated, Action: ActionSkip})
	r.Record(&TaskResult{Status: TaskMetaUpdated, Action: ActionAppend})
	r.Record(&TaskResult{Status: TaskMetaUpdated, Action: ActionFull})
	r.Record(&TaskResult{Status: TaskFailed, Action: ActionFull, Err: errors.New("x")})

	if r.Total != 4 || r.Skipped != 1 || r.Appends != 1 || r.Rebuilt != 1 || r.Failed != 1 {
		t.Fatalf("counters = %+v", r)
	}
	if got := r.HitRate(); got != 0.5 {
		t.Fatalf("hit rate = %f", got)
	}
	if got := (&CohortReport{}).HitRate(); got != 0 {
		t.Fatalf("empty hit rate = %f", got)
	}
}

func TestRunReportTotalsAndFailureRate(t *testing.T) {
	r := &RunReport{Cohorts: []*CohortReport{
		{Total: 10, Skipped: 8, Failed: 1, Rebuilt: 1},
		{Total: 10, Appends: 7, Failed: 3},
	}}
	totals := r.Totals()
	if totals.Total != 20 || totals.Failed != 4 {
		t.Fatalf("totals = %+v", totals)
	}
	if got := r.FailureRate(); got != 0.2 {
		t.Fatalf("failure rate = %f", got)
	}
	if got := (&RunReport{}).FailureRate(); got != 0 {
		t.Fatalf("empty failure rate = %f", got)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(InputDataError("600000", errors.New("bad row"))); got != ErrInputData {
		t.Fatalf("kind = %s", got)
	}
	wrapped := fmt.Errorf("task: %w", InsufficientHistoryError("600000", 5, 30))
	if got := KindOf(wrapped); got != ErrInsufficientHistory {
		t.Fatalf("wrapped kind = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != ErrIO {
		t.Fatalf("untyped kind = %s", got)
	}
}
