package indicators

// SMA is the simple moving average over window values. The first window-1
// positions are undefined.
func SMA(values []float64, window int) []float64 {
	out := undefined(len(values))
	if window <= 0 || len(values) < window {
		return out
	}

	sum := 0.0
	for i := 0; i < window; i++ {
		sum += values[i]
	}
	out[window-1] = sum / float64(window)

	for i := window; i < len(values); i++ {
		sum += values[i] - values[i-window]
		out[i] = sum / float64(window)
	}
	return out
}

// EMA is the exponential moving average with smoothing 2/(window+1), seeded
// with the SMA of the first window defined values. Leading NaNs in values
// are skipped, so an EMA can be taken of another indicator's output.
func EMA(values []float64, window int) []float64 {
	out := undefined(len(values))
	if window <= 0 {
		return out
	}
	start := firstDefined(values)
	if start < 0 || len(values)-start < window {
		return out
	}

	seed := start + window - 1
	sum := 0.0
	for i := start; i <= seed; i++ {
		sum += values[i]
	}
	ema := sum / float64(window)
	out[seed] = ema

	k := 2.0 / float64(window+1)
	for i := seed + 1; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		out[i] = ema
	}
	return out
}
