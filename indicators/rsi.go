package indicators

// RSI is the relative strength index with Wilder smoothing. The first
// average gain and loss are simple means over the first window changes, so
// the first window positions are undefined. When the average loss is zero
// the RSI is 100.
func RSI(values []float64, window int) []float64 {
	out := undefined(len(values))
	if window <= 0 || len(values) <= window {
		return out
	}

	w := float64(window)
	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		g, l := change(values[i-1], values[i])
		avgGain += g
		avgLoss += l
	}
	avgGain /= w
	avgLoss /= w
	out[window] = rsi(avgGain, avgLoss)

	for i := window + 1; i < len(values); i++ {
		g, l := change(values[i-1], values[i])
		avgGain = (avgGain*(w-1) + g) / w
		avgLoss = (avgLoss*(w-1) + l) / w
		out[i] = rsi(avgGain, avgLoss)
	}
	return out
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsi(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	v := 100 - 100/(1+avgGain/avgLoss)
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
