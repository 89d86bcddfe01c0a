package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const seedBars = 120

// MockProvider generates synthetic random-walk data for local development
// and tests. Each instrument gets its own price path, seeded on first use.
type MockProvider struct {
	mu         sync.Mutex
	rng        *rand.Rand
	startPrice float64
	step       float64
	withDepth  bool
	bars       map[string]Series
}

// NewMockProvider creates a mock feed. step is the max per-bar price move.
func NewMockProvider(startPrice, step float64, withDepth bool) *MockProvider {
	if startPrice <= 0 {
		startPrice = 100
	}
	if step <= 0 {
		step = 0.5
	}
	return &MockProvider{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		startPrice: startPrice,
		step:       step,
		withDepth:  withDepth,
		bars:       make(map[string]Series),
	}
}

// Seed replaces the RNG source, for deterministic tests.
func (m *MockProvider) Seed(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// GetSnapshot advances the walk one bar and returns the fresh tick view.
func (m *MockProvider) GetSnapshot(ctx context.Context, instrument string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.ensure(instrument)
	series = append(series, m.nextBar(series))
	m.bars[instrument] = series

	last := series[len(series)-1]
	snap := Snapshot{
		Instrument: instrument,
		LastPrice:  last.Close,
		Volume:     last.Volume,
		At:         last.OpenTime,
	}
	if m.withDepth {
		snap.Depth = m.randomDepth(last.Close, last.Volume)
	}
	return snap, nil
}

// GetHistory returns a copy of the most recent bars.
func (m *MockProvider) GetHistory(ctx context.Context, instrument string, bars int) (Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.ensure(instrument)
	if bars > len(series) {
		bars = len(series)
	}
	out := make(Series, bars)
	copy(out, series[len(series)-bars:])
	return out, nil
}

func (m *MockProvider) ensure(instrument string) Series {
	if s, ok := m.bars[instrument]; ok {
		return s
	}
	series := make(Series, 0, seedBars)
	for i := 0; i < seedBars; i++ {
		series = append(series, m.nextBar(series))
	}
	m.bars[instrument] = series
	return series
}

func (m *MockProvider) nextBar(prev Series) Bar {
	price := m.startPrice
	at := time.Now().Add(-time.Duration(seedBars) * time.Minute)
	if len(prev) > 0 {
		last := prev[len(prev)-1]
		price = last.Close
		at = last.OpenTime.Add(time.Minute)
	}

	// simple random walk
	closePx := price + (m.rng.Float64()*2-1)*m.step
	high := closePx
	low := closePx
	if price > closePx {
		high = price
	} else {
		low = price
	}
	return Bar{
		OpenTime: at,
		Open:     price,
		High:     high + m.rng.Float64()*m.step/2,
		Low:      low - m.rng.Float64()*m.step/2,
		Close:    closePx,
		Volume:   500 + m.rng.Float64()*1000,
	}
}

func (m *MockProvider) randomDepth(price, volume float64) *Depth {
	d := &Depth{}
	skew := m.rng.Float64()*1.6 - 0.8 // bid/ask bias
	for i := 1; i <= 10; i++ {
		offset := price * 0.0005 * float64(i)
		base := volume / 40
		d.Bids = append(d.Bids, DepthLevel{
			Price: price - offset,
			Qty:   base * (1 + skew) * (1 + m.rng.Float64()),
		})
		d.Asks = append(d.Asks, DepthLevel{
			Price: price + offset,
			Qty:   base * (1 - skew) * (1 + m.rng.Float64()),
		})
	}
	return d
}
