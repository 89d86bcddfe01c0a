package indicators

// SMA calculates the simple moving average over the last window values.
// Returns ok=false when there is not enough history; callers must treat a
// missing average as "no signal", never as zero.
func SMA(values []float64, window int) (float64, bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}
	sum := 0.0
	for i := len(values) - window; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(window), true
}
