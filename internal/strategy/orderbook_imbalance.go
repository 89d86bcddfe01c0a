package strategy

import (
	"fmt"

	"autotrader/internal/market"
)

// OrderbookImbalance votes on order book depth pressure: when top-of-book bid
// volume materially outweighs ask volume (and the spread is tight enough for
// the fill to be cheap), it reads buying pressure, and symmetrically for sells.
//
// When no real book is available it can fall back to a synthetic one built
// around the last trade price. The synthetic book encodes no real liquidity,
// so the fallback is off unless explicitly enabled in configuration.
type OrderbookImbalance struct {
	depthLevels    int
	allowSynthetic bool
}

const (
	strongImbalance   = 0.3
	moderateImbalance = 0.15
	buySpreadLimit    = 0.1 // percent
	sellSpreadLimit   = 0.2 // percent
)

// NewOrderbookImbalance creates the evaluator. depthLevels is the number of
// book levels summed per side.
func NewOrderbookImbalance(depthLevels int, allowSynthetic bool) *OrderbookImbalance {
	if depthLevels <= 0 {
		depthLevels = 10
	}
	return &OrderbookImbalance{depthLevels: depthLevels, allowSynthetic: allowSynthetic}
}

func (s *OrderbookImbalance) Name() string { return "orderbook_imbalance" }

func (s *OrderbookImbalance) Evaluate(snap market.Snapshot, history market.Series) (Vote, error) {
	depth := snap.Depth
	synthetic := false
	if depth == nil {
		if !s.allowSynthetic {
			return Vote{Direction: Hold, Rationale: "no order book available"}, nil
		}
		depth = market.SyntheticDepth(snap.LastPrice, recentVolume(history), s.depthLevels)
		synthetic = true
	}

	bestBid, okBid := depth.BestBid()
	bestAsk, okAsk := depth.BestAsk()
	if !okBid || !okAsk || bestBid.Price <= 0 || bestAsk.Price <= 0 {
		return Vote{Direction: Hold, Rationale: "order book has an empty side"}, nil
	}

	mid := (bestBid.Price + bestAsk.Price) / 2
	spreadPct := (bestAsk.Price - bestBid.Price) / mid * 100

	bidVol := sumQty(depth.Bids, s.depthLevels)
	askVol := sumQty(depth.Asks, s.depthLevels)
	if bidVol+askVol == 0 {
		return Vote{Direction: Hold, Rationale: "order book has no volume"}, nil
	}
	imbalance := (bidVol - askVol) / (bidVol + askVol)

	tag := ""
	if synthetic {
		tag = " (synthetic book)"
	}

	switch {
	case imbalance > strongImbalance && spreadPct < buySpreadLimit:
		strength := scale(imbalance, strongImbalance, 1.0, 60, 90)
		return Vote{
			Direction: Buy,
			Strength:  strength,
			Rationale: fmt.Sprintf("bid pressure: imbalance=%.2f spread=%.3f%%%s", imbalance, spreadPct, tag),
		}, nil

	case imbalance > moderateImbalance:
		strength := scale(imbalance, moderateImbalance, strongImbalance, 50, 75)
		return Vote{
			Direction: Buy,
			Strength:  strength,
			Rationale: fmt.Sprintf("moderate bid pressure: imbalance=%.2f%s", imbalance, tag),
		}, nil

	case imbalance < -strongImbalance && spreadPct < sellSpreadLimit:
		strength := scale(-imbalance, strongImbalance, 1.0, 60, 90)
		return Vote{
			Direction: Sell,
			Strength:  strength,
			Rationale: fmt.Sprintf("ask pressure: imbalance=%.2f spread=%.3f%%%s", imbalance, spreadPct, tag),
		}, nil

	case imbalance < -moderateImbalance:
		strength := scale(-imbalance, moderateImbalance, strongImbalance, 50, 75)
		return Vote{
			Direction: Sell,
			Strength:  strength,
			Rationale: fmt.Sprintf("moderate ask pressure: imbalance=%.2f%s", imbalance, tag),
		}, nil
	}

	return Vote{
		Direction: Hold,
		Rationale: fmt.Sprintf("book balanced: imbalance=%.2f spread=%.3f%%", imbalance, spreadPct),
	}, nil
}

func sumQty(levels []market.DepthLevel, n int) float64 {
	total := 0.0
	for i, l := range levels {
		if i >= n {
			break
		}
		total += l.Qty
	}
	return total
}

func recentVolume(history market.Series) float64 {
	total := 0.0
	start := len(history) - 10
	if start < 0 {
		start = 0
	}
	for _, b := range history[start:] {
		total += b.Volume
	}
	return total
}

// scale maps v from [lo,hi] onto [outLo,outHi], clamping at both ends.
func scale(v, lo, hi, outLo, outHi float64) float64 {
	if v <= lo {
		return outLo
	}
	if v >= hi {
		return outHi
	}
	return outLo + (v-lo)/(hi-lo)*(outHi-outLo)
}
