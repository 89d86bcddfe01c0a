package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/market"
)

func flatSeries(n int, price, volume float64) market.Series {
	s := make(market.Series, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range s {
		s[i] = market.Bar{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     price, High: price, Low: price, Close: price,
			Volume: volume,
		}
	}
	return s
}

func depth(bidQty, askQty, bid, ask float64) *market.Depth {
	d := &market.Depth{}
	for i := 0; i < 5; i++ {
		d.Bids = append(d.Bids, market.DepthLevel{Price: bid - float64(i)*0.01, Qty: bidQty / 5})
		d.Asks = append(d.Asks, market.DepthLevel{Price: ask + float64(i)*0.01, Qty: askQty / 5})
	}
	return d
}

func TestOrderbookImbalanceStrongBuy(t *testing.T) {
	ev := NewOrderbookImbalance(10, false)
	snap := market.Snapshot{
		Instrument: "BTC-USDT",
		LastPrice:  100,
		Depth:      depth(70, 30, 99.99, 100.01), // imbalance 0.4, spread ~0.02%
	}

	v, err := ev.Evaluate(snap, flatSeries(30, 100, 1000))
	require.NoError(t, err)
	assert.Equal(t, Buy, v.Direction)
	assert.GreaterOrEqual(t, v.Strength, 60.0)
	assert.LessOrEqual(t, v.Strength, 90.0)
}

func TestOrderbookImbalanceModerateAndSell(t *testing.T) {
	ev := NewOrderbookImbalance(10, false)

	moderate := market.Snapshot{LastPrice: 100, Depth: depth(60, 40, 99.9, 100.1)} // imb 0.2
	v, err := ev.Evaluate(moderate, nil)
	require.NoError(t, err)
	assert.Equal(t, Buy, v.Direction)
	assert.GreaterOrEqual(t, v.Strength, 50.0)
	assert.LessOrEqual(t, v.Strength, 75.0)

	sell := market.Snapshot{LastPrice: 100, Depth: depth(30, 70, 99.95, 100.05)} // imb -0.4
	v, err = ev.Evaluate(sell, nil)
	require.NoError(t, err)
	assert.Equal(t, Sell, v.Direction)
}

func TestOrderbookImbalanceNoBookHoldsWhenSyntheticDisabled(t *testing.T) {
	ev := NewOrderbookImbalance(10, false)
	v, err := ev.Evaluate(market.Snapshot{LastPrice: 100}, flatSeries(30, 100, 1000))
	require.NoError(t, err)
	assert.Equal(t, Hold, v.Direction)
	assert.Zero(t, v.Strength)
}

func TestOrderbookImbalanceSyntheticFallback(t *testing.T) {
	ev := NewOrderbookImbalance(10, true)
	// Synthetic book is symmetric, so the vote is HOLD, but the evaluator
	// must not fail for lack of depth.
	v, err := ev.Evaluate(market.Snapshot{LastPrice: 100}, flatSeries(30, 100, 1000))
	require.NoError(t, err)
	assert.Equal(t, Hold, v.Direction)
}

func TestVWAPReversionSellsAboveBand(t *testing.T) {
	ev := NewVWAPReversion(20)
	// Alternate around 100 for some volatility, then price at +3%.
	hist := flatSeries(30, 100, 1000)
	for i := range hist {
		if i%2 == 0 {
			hist[i].Close = 100.5
			hist[i].High = 100.5
		} else {
			hist[i].Close = 99.5
			hist[i].Low = 99.5
		}
	}

	v, err := ev.Evaluate(market.Snapshot{LastPrice: 103}, hist)
	require.NoError(t, err)
	assert.Equal(t, Sell, v.Direction)
	assert.GreaterOrEqual(t, v.Strength, 75.0)

	v, err = ev.Evaluate(market.Snapshot{LastPrice: 97}, hist)
	require.NoError(t, err)
	assert.Equal(t, Buy, v.Direction)
}

func TestVWAPReversionShortHistoryErrors(t *testing.T) {
	ev := NewVWAPReversion(20)
	_, err := ev.Evaluate(market.Snapshot{LastPrice: 100}, flatSeries(5, 100, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestMAMomentumCrossover(t *testing.T) {
	ev := NewMAMomentum()
	hist := flatSeries(30, 100, 1000)
	// Final bar jumps, pushing the short MA above the long MA.
	hist[len(hist)-1].Close = 110
	hist[len(hist)-1].High = 110

	v, err := ev.Evaluate(market.Snapshot{LastPrice: 110}, hist)
	require.NoError(t, err)
	assert.Equal(t, Buy, v.Direction)
	// RSI pinned at the top makes this an unconfirmed crossover.
	assert.Equal(t, 60.0, v.Strength)
	// Suggested protective levels must sit on the correct sides.
	assert.Less(t, v.StopLoss, 110.0)
	assert.Greater(t, v.TakeProfit, 110.0)
}

func TestMAMomentumFlatHolds(t *testing.T) {
	ev := NewMAMomentum()
	v, err := ev.Evaluate(market.Snapshot{LastPrice: 100}, flatSeries(40, 100, 1000))
	require.NoError(t, err)
	assert.Equal(t, Hold, v.Direction)
}

func TestRSIDivergenceOverboughtSells(t *testing.T) {
	ev := NewRSIDivergence()
	hist := flatSeries(30, 100, 1000)
	for i := range hist {
		hist[i].Close = 100 + float64(i) // monotonic rise, RSI -> 100
	}

	v, err := ev.Evaluate(market.Snapshot{LastPrice: 130}, hist)
	require.NoError(t, err)
	assert.Equal(t, Sell, v.Direction)
	assert.GreaterOrEqual(t, v.Strength, 55.0)
}

func TestRSIDivergenceShortHistoryErrors(t *testing.T) {
	ev := NewRSIDivergence()
	_, err := ev.Evaluate(market.Snapshot{LastPrice: 100}, flatSeries(10, 100, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

// Too little RSI history must end up excluded from the decision
// denominator, with the other evaluators still deciding.
func TestShortHistoryExcludedEndToEnd(t *testing.T) {
	evs := []WeightedEvaluator{
		{Evaluator: NewRSIDivergence(), Weight: 0.5},
		{Evaluator: stubEvaluator{dir: Buy, strength: 80}, Weight: 0.5},
	}
	snap := market.Snapshot{LastPrice: 100}
	hist := flatSeries(5, 100, 1000)

	results := make([]EvalResult, 0, len(evs))
	for _, we := range evs {
		results = append(results, Evaluate(we.Evaluator, we.Weight, snap, hist))
	}

	require.Error(t, results[0].Err)
	assert.Equal(t, Hold, results[0].Vote.Direction)

	d := Aggregate(100, results)
	assert.Equal(t, Buy, d.Direction)
	assert.InDelta(t, 80, d.Confidence, 1e-9) // 0.4 / 0.5 * 100
}

func TestEvaluateRecoversPanics(t *testing.T) {
	res := Evaluate(panicEvaluator{}, 0.25, market.Snapshot{}, nil)
	require.Error(t, res.Err)
	assert.Equal(t, Hold, res.Vote.Direction)
	assert.Zero(t, res.Vote.Strength)
	assert.Contains(t, res.Vote.Rationale, "panic")
}

func TestPolicyBuildValidatesWeights(t *testing.T) {
	p := DefaultPolicy()
	evs, err := p.Build()
	require.NoError(t, err)
	assert.Len(t, evs, 4)

	p.Evaluators[0].Weight = 0.5 // sums to 1.25 now
	_, err = p.Build()
	require.Error(t, err)
}

type stubEvaluator struct {
	dir      Direction
	strength float64
}

func (s stubEvaluator) Name() string { return "stub" }
func (s stubEvaluator) Evaluate(market.Snapshot, market.Series) (Vote, error) {
	return Vote{Direction: s.dir, Strength: s.strength, Rationale: "stub"}, nil
}

type panicEvaluator struct{}

func (panicEvaluator) Name() string { return "panics" }
func (panicEvaluator) Evaluate(market.Snapshot, market.Series) (Vote, error) {
	panic("index out of range")
}
