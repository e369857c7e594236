package models

import (
	"math"
	"strconv"
	"time"
)

// Precision is the fixed decimal precision of every numeric output field.
const Precision = 8

// nearZero is the denominator threshold below which a ratio is undefined.
const nearZero = 1e-12

// Round8 rounds to the fixed output precision.
func Round8(f float64) float64 {
	return math.Round(f*1e8) / 1e8
}

// Value is a single indicator field: either a rounded number or the null
// sentinel. Nulls serialize as an empty field and never propagate as
// Inf/NaN into downstream ratios.
type Value struct {
	Float float64
	Valid bool
}

// Num returns a valid Value rounded to output precision. NaN and Inf
// inputs collapse to the null sentinel.
func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Float: Round8(f), Valid: true}
}

// Null returns the null sentinel.
func Null() Value {
	return Value{}
}

// Ratio divides num by den, yielding null on a zero or near-zero
// denominator.
func Ratio(num, den float64) Value {
	if math.Abs(den) < nearZero {
		return Value{}
	}
	return Num(num / den)
}

// String formats the value at exactly 8 decimal digits, or "" for null.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', Precision, 64)
}

// IndicatorRow is one computed output record. Values are positionally
// aligned with the owning plugin's field names.
type IndicatorRow struct {
	Code     string
	Date     string
	Values   []Value
	CalcTime time.Time
}
