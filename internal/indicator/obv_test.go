package indicator

import "testing"

func TestOBVRunningTotal(t *testing.T) {
	obv := NewOBV()
	bars := barsFromCloses(1, 2, 2, 1)

	rows, _, err := obv.Compute(bars, obv.NewState())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	// Constant volume 1000: flat start, up, unchanged, down.
	want := []float64{0, 1000, 1000, 0}
	for i, w := range want {
		assertClose(t, "OBV "+rows[i].Date, mustValue(t, rows[i], 0), w)
		if rows[i].Values[1].Valid {
			t.Errorf("row %s: OBV_MA10 should be null before 10 bars", rows[i].Date)
		}
	}
}

func TestOBVMovingAverageFills(t *testing.T) {
	obv := NewOBV()
	rows, _, err := obv.Compute(waveBars(15), obv.NewState())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, row := range rows {
		if got := row.Values[1].Valid; got != (i >= obvMAPeriod-1) {
			t.Errorf("row %d: OBV_MA10 valid=%v", i, got)
		}
	}
}
