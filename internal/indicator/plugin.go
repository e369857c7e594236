// Package indicator holds the pluggable per-bar computations driven by the
// compute orchestrator. Plugins are streaming: state carries every recursive
// accumulator, so appending k bars costs O(k) regardless of history length,
// even across process restarts.
package indicator

import (
	"fmt"

	"IndiCache/internal/domain/models"
)

// State is a plugin's serializable carried computation state.
type State interface {
	Encode() ([]byte, error)
}

// Plugin maps a bar stream to indicator rows.
//
// Compute consumes bars in order, updating st and emitting one row per bar
// once the lookback window is satisfied. A full rebuild passes the whole
// series with NewState(); an incremental append passes only the trailing
// bars with the previously carried state.
type Plugin interface {
	Name() string
	FieldNames() []string
	MinLookback() int
	NewState() State
	DecodeState(data []byte) (State, error)
	Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error)
}

// checkOrder verifies that bars continue strictly after lastDate and are
// themselves strictly increasing. Violations are compute failures, not
// process faults.
func checkOrder(lastDate string, bars []models.Bar) error {
	prev := lastDate
	for i, b := range bars {
		if b.Date == "" {
			return fmt.Errorf("bar %d has empty date", i)
		}
		if prev != "" && b.Date <= prev {
			return fmt.Errorf("bar %d out of order: %s <= %s", i, b.Date, prev)
		}
		prev = b.Date
	}
	return nil
}

// pushCap appends v to buf, keeping at most n trailing elements.
func pushCap(buf []float64, v float64, n int) []float64 {
	buf = append(buf, v)
	if len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	return buf
}

// mean averages the last n elements of buf; buf must hold at least n.
func mean(buf []float64, n int) float64 {
	sum := 0.0
	for _, v := range buf[len(buf)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func maxPeriod(periods []int) int {
	m := 0
	for _, p := range periods {
		if p > m {
			m = p
		}
	}
	return m
}
