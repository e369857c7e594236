package indicator

import (
	"math"
	"testing"
	"time"

	"IndiCache/internal/domain/models"
)

// barsFromCloses builds a daily series where only the close matters.
func barsFromCloses(closes ...float64) []models.Bar {
	bars := make([]models.Bar, 0, len(closes))
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		bars = append(bars, models.Bar{
			Date:   day.Format(models.DayLayout),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		})
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

// waveBars builds a deterministic series with price and volume movement.
func waveBars(n int) []models.Bar {
	bars := make([]models.Bar, 0, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 50.0 + 0.2*float64(i) + 4.0*math.Sin(float64(i)/6.0)
		bars = append(bars, models.Bar{
			Date:   day.Format(models.DayLayout),
			Open:   base - 0.3,
			High:   base + 0.8,
			Low:    base - 0.8,
			Close:  base + 0.1*math.Cos(float64(i)/4.0),
			Volume: 5e5 + 1e5*math.Sin(float64(i)/3.0),
		})
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-8 {
		t.Errorf("%s: got %.10f, want %.10f", label, got, want)
	}
}

func mustValue(t *testing.T, row models.IndicatorRow, i int) float64 {
	t.Helper()
	if i >= len(row.Values) {
		t.Fatalf("row %s has %d values, want index %d", row.Date, len(row.Values), i)
	}
	if !row.Values[i].Valid {
		t.Fatalf("row %s value %d is null", row.Date, i)
	}
	return row.Values[i].Float
}
