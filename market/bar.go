package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnordered is returned when a bar series is not strictly ascending in time.
var ErrUnordered = errors.New("bars not strictly ascending")

// Bar is one OHLCV candle. Time is the bar's open time.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes returns the closing prices of bars in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// OrderError locates the first bar that does not strictly follow its
// predecessor.
type OrderError struct {
	Index int
	Time  time.Time
	Prev  time.Time
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("bar %d at %s after %s: %v",
		e.Index, e.Time.UTC().Format(time.RFC3339), e.Prev.UTC().Format(time.RFC3339), ErrUnordered)
}

func (e *OrderError) Unwrap() error { return ErrUnordered }

// ValidateSeries reports the first bar whose timestamp does not strictly
// follow its predecessor as an *OrderError. It never reorders anything.
func ValidateSeries(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return &OrderError{Index: i, Time: bars[i].Time, Prev: bars[i-1].Time}
		}
	}
	return nil
}
