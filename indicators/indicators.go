// Package indicators computes technical indicators over price sequences.
//
// Every function returns a slice the same length as its input. Positions
// without enough history hold NaN. Short input never panics or errors; it
// yields an all-NaN result.
package indicators

import (
	"errors"
	"math"
)

// ErrInvalidPeriods is returned for period combinations that can never
// produce a value, such as a MACD fast period that is not below the slow one.
var ErrInvalidPeriods = errors.New("invalid indicator periods")

// Last returns the final element of series and whether it is defined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return math.NaN(), false
	}
	v := series[len(series)-1]
	return v, !math.IsNaN(v)
}

// Defined reports whether v holds a value.
func Defined(v float64) bool { return !math.IsNaN(v) }

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstDefined returns the index of the first non-NaN value, or -1.
func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}
