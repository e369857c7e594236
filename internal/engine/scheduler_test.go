package engine

import (
	"testing"

	"IndiCache/internal/domain/models"
)

func entryFor(bars []models.Bar) *models.CacheEntry {
	return &models.CacheEntry{
		Code:        "600000",
		Family:      "sma",
		Fingerprint: Fingerprint(bars),
		LastDate:    bars[len(bars)-1].Date,
		RowCount:    len(bars),
	}
}

func TestClassifyColdCacheIsFull(t *testing.T) {
	series := &models.SymbolSeries{Code: "600000", Bars: testBars(10)}
	dec := Classify(series, nil, false)
	if dec.Action != models.ActionFull {
		t.Fatalf("got %s, want full", dec.Action)
	}
	if len(dec.NewBars) != 10 {
		t.Fatalf("full rebuild should span the whole series")
	}
}

func TestClassifyForceOverridesMatch(t *testing.T) {
	bars := testBars(10)
	series := &models.SymbolSeries{Code: "600000", Bars: bars}
	dec := Classify(series, entryFor(bars), true)
	if dec.Action != models.ActionFull {
		t.Fatalf("got %s, want full", dec.Action)
	}
}

func TestClassifyUnchangedIsSkip(t *testing.T) {
	bars := testBars(10)
	series := &models.SymbolSeries{Code: "600000", Bars: bars}
	dec := Classify(series, entryFor(bars), false)
	if dec.Action != models.ActionSkip {
		t.Fatalf("got %s, want skip", dec.Action)
	}
}

func TestClassifyTrailingBarsAreAppend(t *testing.T) {
	bars := testBars(12)
	series := &models.SymbolSeries{Code: "600000", Bars: bars}
	dec := Classify(series, entryFor(bars[:10]), false)
	if dec.Action != models.ActionAppend {
		t.Fatalf("got %s, want append", dec.Action)
	}
	if len(dec.NewBars) != 2 || dec.NewBars[0].Date != bars[10].Date {
		t.Fatalf("append should carry exactly the trailing bars, got %v", dec.NewBars)
	}
}

func TestClassifyHistoricalEditIsFull(t *testing.T) {
	bars := testBars(12)
	entry := entryFor(bars[:10])

	// A corrected close inside the cached window invalidates the prefix
	// even though newer bars also exist.
	bars[5].Close += 0.5
	series := &models.SymbolSeries{Code: "600000", Bars: bars}
	dec := Classify(series, entry, false)
	if dec.Action != models.ActionFull {
		t.Fatalf("got %s, want full", dec.Action)
	}
}

func TestClassifyTruncatedSeriesIsFull(t *testing.T) {
	bars := testBars(12)
	entry := entryFor(bars)

	series := &models.SymbolSeries{Code: "600000", Bars: bars[:8]}
	dec := Classify(series, entry, false)
	if dec.Action != models.ActionFull {
		t.Fatalf("got %s, want full", dec.Action)
	}
}
