package models

import (
	"errors"
	"fmt"
)

// ErrKind classifies task-boundary failures. Every symbol task failure is
// one of these; they are recorded in the run report and never abort the
// batch or sibling tasks.
type ErrKind string

const (
	ErrInputData           ErrKind = "input_data"
	ErrInsufficientHistory ErrKind = "insufficient_history"
	ErrCompute             ErrKind = "compute"
	ErrIO                  ErrKind = "io"
	ErrMetaCorruption      ErrKind = "meta_corruption"
)

// TaskError is a typed, wrapped failure attributed to one symbol task.
type TaskError struct {
	Kind ErrKind
	Code string
	Err  error
}

func (e *TaskError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError wraps err with a kind and symbol attribution.
func NewTaskError(kind ErrKind, code string, err error) *TaskError {
	return &TaskError{Kind: kind, Code: code, Err: err}
}

// InputDataError marks malformed or missing source rows.
func InputDataError(code string, err error) *TaskError {
	return NewTaskError(ErrInputData, code, err)
}

// InsufficientHistoryError marks a series shorter than the lookback window.
func InsufficientHistoryError(code string, have, want int) *TaskError {
	return NewTaskError(ErrInsufficientHistory, code,
		fmt.Errorf("series has %d bars, lookback requires %d", have, want))
}

// ComputeError marks a plugin arithmetic or logic failure.
func ComputeError(code string, err error) *TaskError {
	return NewTaskError(ErrCompute, code, err)
}

// IOError marks an artifact or meta write failure.
func IOError(code string, err error) *TaskError {
	return NewTaskError(ErrIO, code, err)
}

// MetaCorruptionError marks an unreadable or corrupt meta record.
func MetaCorruptionError(err error) *TaskError {
	return NewTaskError(ErrMetaCorruption, "", err)
}

// KindOf extracts the error kind, defaulting to io for untyped errors.
func KindOf(err error) ErrKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ErrIO
}
