package util

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the canonical trading-day format used across the engine.
const DayLayout = "2006-01-02"

const compactLayout = "20060102"

// ParseDay parses a trading-day string, accepting the canonical
// YYYY-MM-DD form plus compact YYYYMMDD and slash-separated inputs as
// they appear in upstream exports.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DayLayout, compactLayout, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// NormalizeDay rewrites any accepted date form into the canonical one.
func NormalizeDay(s string) (string, error) {
	t, err := ParseDay(s)
	if err != nil {
		return "", err
	}
	return t.Format(DayLayout), nil
}

// FormatDay renders t as a canonical trading-day string.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}
