package models

import (
	"math"
	"testing"
)

func TestNumRoundsToPrecision(t *testing.T) {
	v := Num(1.234567894999)
	if !v.Valid {
		t.Fatal("number marked null")
	}
	if v.Float != 1.23456789 {
		t.Fatalf("got %v", v.Float)
	}
	if s := v.String(); s != "1.23456789" {
		t.Fatalf("got %q", s)
	}
}

func TestNumCollapsesNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if v := Num(f); v.Valid {
			t.Fatalf("Num(%v) = %v, want null", f, v)
		}
	}
}

func TestNullSerializesEmpty(t *testing.T) {
	if s := Null().String(); s != "" {
		t.Fatalf("got %q", s)
	}
}

func TestRatio(t *testing.T) {
	if v := Ratio(1, 3); !v.Valid || v.Float != 0.33333333 {
		t.Fatalf("got %+v", v)
	}
	if v := Ratio(1, 0); v.Valid {
		t.Fatalf("zero denominator produced %+v", v)
	}
	if v := Ratio(1, 1e-13); v.Valid {
		t.Fatalf("near-zero denominator produced %+v", v)
	}
}

func TestValueStringFixedWidth(t *testing.T) {
	if s := Num(2).String(); s != "2.00000000" {
		t.Fatalf("got %q", s)
	}
	if s := Num(-0.5).String(); s != "-0.50000000" {
		t.Fatalf("got %q", s)
	}
}
