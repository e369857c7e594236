package indicator

import "testing"

func TestSMAGoldenPeriod3(t *testing.T) {
	sma := NewSMA([]int{3})
	bars := barsFromCloses(1, 2, 3, 4, 5)

	rows, _, err := sma.Compute(bars, sma.NewState())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		assertClose(t, "SMA3 row "+rows[i].Date, mustValue(t, rows[i], 0), w)
	}
}

func TestSMARowCountMatchesLookback(t *testing.T) {
	sma := NewSMA([]int{5, 10})
	n := 37
	bars := waveBars(n)

	rows, _, err := sma.Compute(bars, sma.NewState())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := n - sma.MinLookback() + 1
	if len(rows) != want {
		t.Fatalf("expected %d rows, got %d", want, len(rows))
	}
	if rows[0].Date != bars[sma.MinLookback()-1].Date {
		t.Fatalf("first row at %s, want %s", rows[0].Date, bars[sma.MinLookback()-1].Date)
	}
}

func TestSMARejectsOutOfOrderBars(t *testing.T) {
	sma := NewSMA([]int{3})
	bars := barsFromCloses(1, 2, 3)
	bars[2].Date = bars[0].Date

	if _, _, err := sma.Compute(bars, sma.NewState()); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestSMAShortSeriesEmitsNothing(t *testing.T) {
	sma := NewSMA([]int{10})
	rows, _, err := sma.Compute(barsFromCloses(1, 2, 3), sma.NewState())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
