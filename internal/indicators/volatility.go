package indicators

import "math"

// Volatility computes the standard deviation of period-over-period returns
// across the last window values. ok=false when history is too short.
func Volatility(values []float64, window int) (float64, bool) {
	if window <= 1 || len(values) < window+1 {
		return 0, false
	}

	returns := make([]float64, 0, window)
	for i := len(values) - window; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (values[i]-prev)/prev)
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance), true
}
