package indicators

// DefaultRSIWindow is the conventional RSI lookback.
const DefaultRSIWindow = 14

// NeutralRSI is returned when there is too little history to compute RSI.
// 50 is the oscillator's midpoint and reads as "no momentum either way".
const NeutralRSI = 50.0

// RSI computes the Relative Strength Index over the last window changes.
func RSI(values []float64, window int) float64 {
	if window <= 0 || len(values) < window+1 {
		return NeutralRSI
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - window; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

// RSISeries computes the RSI at every index where enough history exists; the
// leading window entries are filled with NeutralRSI so indexes line up with
// the input. Divergence detection needs the whole path, not just the latest.
func RSISeries(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = RSI(values[:i+1], window)
	}
	return out
}
