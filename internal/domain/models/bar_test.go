package models

import "testing"

func seriesWithDates(dates ...string) *SymbolSeries {
	s := &SymbolSeries{Code: "600000"}
	for _, d := range dates {
		s.Bars = append(s.Bars, Bar{Date: d, Close: 1})
	}
	return s
}

func TestSeriesValidate(t *testing.T) {
	ok := seriesWithDates("2024-03-08", "2024-03-11", "2024-03-12")
	if err := ok.Validate(); err != nil {
		t.Fatalf("gapped but ordered series rejected: %v", err)
	}

	if err := seriesWithDates("2024-03-08", "2024-03-08").Validate(); err == nil {
		t.Fatal("duplicate date accepted")
	}
	if err := seriesWithDates("2024-03-09", "2024-03-08").Validate(); err == nil {
		t.Fatal("descending dates accepted")
	}
	if err := (&SymbolSeries{Bars: []Bar{{Date: "2024-03-08"}}}).Validate(); err == nil {
		t.Fatal("empty code accepted")
	}
	if err := seriesWithDates("2024-03-08", "").Validate(); err == nil {
		t.Fatal("empty date accepted")
	}
}

func TestSeriesSlices(t *testing.T) {
	s := seriesWithDates("2024-03-08", "2024-03-11", "2024-03-12")

	if got := s.LastDate(); got != "2024-03-12" {
		t.Fatalf("LastDate = %s", got)
	}
	if got := (&SymbolSeries{Code: "600000"}).LastDate(); got != "" {
		t.Fatalf("empty series LastDate = %q", got)
	}

	after := s.BarsAfter("2024-03-08")
	if len(after) != 2 || after[0].Date != "2024-03-11" {
		t.Fatalf("BarsAfter = %v", after)
	}
	if got := s.BarsAfter("2024-03-12"); got != nil {
		t.Fatalf("BarsAfter(last) = %v", got)
	}
	// A date inside a calendar gap splits correctly.
	if got := s.BarsAfter("2024-03-09"); len(got) != 2 {
		t.Fatalf("BarsAfter(gap) = %v", got)
	}

	prefix := s.PrefixThrough("2024-03-11")
	if len(prefix) != 2 || prefix[1].Date != "2024-03-11" {
		t.Fatalf("PrefixThrough = %v", prefix)
	}
	if got := s.PrefixThrough("2024-03-01"); got != nil {
		t.Fatalf("PrefixThrough(before first) = %v", got)
	}
}
