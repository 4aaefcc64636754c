// Package grid computes price ladders and per-level order sizes for grid
// trading.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidBounds is returned when a ladder cannot be built from the
	// given bounds or level count.
	ErrInvalidBounds = errors.New("invalid grid bounds")

	// ErrInvalidSize is returned when a per-level order size cannot be
	// derived.
	ErrInvalidSize = errors.New("invalid grid sizing")
)

// Kind selects the spacing between levels.
type Kind string

const (
	Arithmetic Kind = "arithmetic"
	Geometric  Kind = "geometric"
)

// ParseKind defaults to Arithmetic for an empty string.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Arithmetic:
		return Arithmetic, nil
	case Geometric:
		return Geometric, nil
	}
	return "", fmt.Errorf("unknown grid type %q", s)
}

// Levels dispatches to Arithmetic or Geometric spacing.
func Levels(kind Kind, lower, upper float64, n int) ([]float64, error) {
	switch kind {
	case Arithmetic, "":
		return ArithmeticLevels(lower, upper, n)
	case Geometric:
		return GeometricLevels(lower, upper, n)
	}
	return nil, fmt.Errorf("unknown grid type %q", kind)
}

// ArithmeticLevels returns n+1 equally spaced levels from lower to upper
// inclusive.
func ArithmeticLevels(lower, upper float64, n int) ([]float64, error) {
	if err := checkBounds(lower, upper, n); err != nil {
		return nil, err
	}
	step := (upper - lower) / float64(n)
	levels := make([]float64, n+1)
	for i := range levels {
		levels[i] = lower + float64(i)*step
	}
	levels[n] = upper
	return levels, nil
}

// GeometricLevels returns n+1 levels with a constant ratio between
// neighbours. The last level is pinned to upper.
func GeometricLevels(lower, upper float64, n int) ([]float64, error) {
	if err := checkBounds(lower, upper, n); err != nil {
		return nil, err
	}
	ratio := math.Pow(upper/lower, 1/float64(n))
	levels := make([]float64, n+1)
	for i := range levels {
		levels[i] = lower * math.Pow(ratio, float64(i))
	}
	levels[n] = upper
	return levels, nil
}

// OrderSize splits totalInvestment evenly across numBuyGrids levels and
// converts it to base units at referencePrice.
func OrderSize(totalInvestment float64, numBuyGrids int, referencePrice float64) (float64, error) {
	if numBuyGrids <= 0 || referencePrice <= 0 || totalInvestment <= 0 {
		return 0, fmt.Errorf("investment %g over %d levels at %g: %w",
			totalInvestment, numBuyGrids, referencePrice, ErrInvalidSize)
	}
	return totalInvestment / float64(numBuyGrids) / referencePrice, nil
}

// CountBelow returns how many levels sit strictly below price.
func CountBelow(levels []float64, price float64) int {
	n := 0
	for _, l := range levels {
		if l < price {
			n++
		}
	}
	return n
}

func checkBounds(lower, upper float64, n int) error {
	if n < 1 || lower <= 0 || upper <= lower ||
		math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(upper, 0) {
		return fmt.Errorf("lower %g upper %g levels %d: %w", lower, upper, n, ErrInvalidBounds)
	}
	return nil
}
