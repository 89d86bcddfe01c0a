package indicators

import "autotrader/internal/market"

// VWAP computes the volume-weighted average price over the last window bars,
// using the typical price (H+L+C)/3 per bar. ok=false when history is short
// or traded volume over the window is zero.
func VWAP(bars market.Series, window int) (float64, bool) {
	if window <= 0 || len(bars) < window {
		return 0, false
	}

	priceVolume := 0.0
	volume := 0.0
	for i := len(bars) - window; i < len(bars); i++ {
		b := bars[i]
		typical := (b.High + b.Low + b.Close) / 3
		priceVolume += typical * b.Volume
		volume += b.Volume
	}
	if volume == 0 {
		return 0, false
	}
	return priceVolume / volume, true
}
