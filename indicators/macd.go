package indicators

import "fmt"

// MACDResult holds the three MACD series, each aligned with the input.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), its signal EMA and the histogram.
// The line is undefined until slow values exist; the signal needs a further
// signal-1 values.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDResult{}, fmt.Errorf("macd(%d,%d,%d): %w", fast, slow, signal, ErrInvalidPeriods)
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line := undefined(len(values))
	for i := range values {
		if Defined(fastEMA[i]) && Defined(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	sig := EMA(line, signal)
	hist := undefined(len(values))
	for i := range values {
		if Defined(line[i]) && Defined(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}

	return MACDResult{Line: line, Signal: sig, Histogram: hist}, nil
}
