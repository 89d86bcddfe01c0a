package market

import "context"

// Provider supplies snapshots and history to the trading core.
// Implementations own the data; the core never mutates what it gets back.
type Provider interface {
	GetSnapshot(ctx context.Context, instrument string) (Snapshot, error)
	GetHistory(ctx context.Context, instrument string, bars int) (Series, error)
}

// SyntheticDepth builds an artificial order book around the last trade price.
// Volume at each level is proportional to recently traded volume and price
// offsets step in fixed 0.1% increments. It encodes no real liquidity; use it
// only where configuration explicitly allows synthetic books.
func SyntheticDepth(lastPrice, recentVolume float64, levels int) *Depth {
	if lastPrice <= 0 || levels <= 0 {
		return nil
	}
	perLevel := recentVolume / float64(levels*4)
	if perLevel <= 0 {
		perLevel = 1
	}

	d := &Depth{
		Bids: make([]DepthLevel, 0, levels),
		Asks: make([]DepthLevel, 0, levels),
	}
	for i := 1; i <= levels; i++ {
		offset := lastPrice * 0.001 * float64(i)
		// Liquidity thins out away from the touch.
		qty := perLevel * (1 + float64(levels-i)/float64(levels))
		d.Bids = append(d.Bids, DepthLevel{Price: lastPrice - offset, Qty: qty})
		d.Asks = append(d.Asks, DepthLevel{Price: lastPrice + offset, Qty: qty})
	}
	return d
}
