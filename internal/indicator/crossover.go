package indicator

// GoldenCrosses scans the last lookback bars for bars where the fast EMA
// closed above the slow EMA after sitting at or below it on the previous
// bar, and returns their offsets oldest first. An offset counts back from
// the end of the series, -1 being the newest bar. Bars whose EMA values
// are still undefined, or whose previous bar falls before the start of
// the series, are skipped. Touching (fast == slow) is not a cross; the
// fast EMA must close strictly above the slow one.
func GoldenCrosses(fast, slow []float64, lookback int) []int {
	var out []int
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}
	for offset := -lookback; offset <= -1; offset++ {
		i := n + offset
		if i < 1 {
			continue
		}
		if !Defined(fast[i]) || !Defined(slow[i]) || !Defined(fast[i-1]) || !Defined(slow[i-1]) {
			continue
		}
		if fast[i-1] <= slow[i-1] && fast[i] > slow[i] {
			out = append(out, offset)
		}
	}
	return out
}
