package market

import "time"

// Bar represents a single OHLCV candlestick.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Series is an ordered, append-only sequence of bars for one instrument.
// The core only reads it; ownership stays with the market-data provider.
type Series []Bar

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price float64
	Qty   float64
}

// Depth is an order book snapshot, both sides sorted best-first.
type Depth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// BestBid returns the top bid level.
func (d *Depth) BestBid() (DepthLevel, bool) {
	if d == nil || len(d.Bids) == 0 {
		return DepthLevel{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the top ask level.
func (d *Depth) BestAsk() (DepthLevel, bool) {
	if d == nil || len(d.Asks) == 0 {
		return DepthLevel{}, false
	}
	return d.Asks[0], true
}

// Snapshot is the ephemeral per-tick view of an instrument.
// Depth is nil when no real order book is available.
type Snapshot struct {
	Instrument string
	LastPrice  float64
	Volume     float64
	Depth      *Depth
	At         time.Time
}
