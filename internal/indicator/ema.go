package indicator

import "math"

// EMA computes an exponential moving average over a close-price series.
//
// The first window-1 positions are undefined (NaN). Position window-1 is
// seeded with the simple average of the first window closes, and from there
//
//	ema[i] = closes[i]*k + ema[i-1]*(1-k),  k = 2/(window+1)
//
// A series shorter than the window is undefined everywhere.
func EMA(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(closes) < window {
		return out
	}

	k := 2.0 / float64(window+1)

	var sum float64
	for _, v := range closes[:window] {
		sum += v
	}
	out[window-1] = sum / float64(window)

	for i := window; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Defined reports whether an indicator value at a position is usable.
func Defined(v float64) bool { return !math.IsNaN(v) }
