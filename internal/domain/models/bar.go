package models

import "fmt"

// DayLayout is the canonical date format for daily bars.
const DayLayout = "2006-01-02"

// Bar is a single daily OHLCV record.
type Bar struct {
	Date   string // DayLayout; lexicographic order equals chronological order
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SymbolSeries is the ordered daily bar history for one symbol code.
type SymbolSeries struct {
	Code string
	Bars []Bar
}

// Validate checks the series ordering invariant: strictly increasing,
// unique dates. Calendar gaps are tolerated.
func (s *SymbolSeries) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("series has empty symbol code")
	}
	for i, b := range s.Bars {
		if b.Date == "" {
			return fmt.Errorf("%s: bar %d has empty date", s.Code, i)
		}
		if i > 0 && s.Bars[i-1].Date >= b.Date {
			return fmt.Errorf("%s: bars out of order at %d (%s >= %s)",
				s.Code, i, s.Bars[i-1].Date, b.Date)
		}
	}
	return nil
}

// LastDate returns the date of the newest bar, or "" for an empty series.
func (s *SymbolSeries) LastDate() string {
	if len(s.Bars) == 0 {
		return ""
	}
	return s.Bars[len(s.Bars)-1].Date
}

// BarsAfter returns the bars strictly newer than date.
func (s *SymbolSeries) BarsAfter(date string) []Bar {
	for i, b := range s.Bars {
		if b.Date > date {
			return s.Bars[i:]
		}
	}
	return nil
}

// PrefixThrough returns the bars up to and including date.
func (s *SymbolSeries) PrefixThrough(date string) []Bar {
	for i := len(s.Bars); i > 0; i-- {
		if s.Bars[i-1].Date <= date {
			return s.Bars[:i]
		}
	}
	return nil
}
