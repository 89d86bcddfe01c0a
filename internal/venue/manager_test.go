package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/order"
)

func TestSymbolConventions(t *testing.T) {
	cases := []struct {
		venue      string
		instrument string
		want       string
	}{
		{"binance", "BTC-USDT", "BTCUSDT"},
		{"binance", "eth-usdt", "ETHUSDT"},
		{"kraken", "BTC-USDT", "XBT/USDT"},
		{"kraken", "DOGE-USD", "XDG/USD"},
		{"kraken", "ETH-USD", "ETH/USD"},
		{"alpaca", "AAPL", "AAPL"},
		{"binance", "SOL", "SOL"},
	}
	for _, tc := range cases {
		t.Run(tc.venue+"/"+tc.instrument, func(t *testing.T) {
			assert.Equal(t, tc.want, Symbol(tc.venue, tc.instrument))
		})
	}
}

func TestManagerUnknownVenue(t *testing.T) {
	m := NewManager()

	_, err := m.Balance(context.Background(), "ghost", "USDT")
	assert.ErrorIs(t, err, ErrVenueUnknown)

	_, err = m.Place(context.Background(), "ghost", order.Intent{Instrument: "BTC-USDT", Side: order.SideBuy}, 10, 50_000)
	assert.ErrorIs(t, err, ErrVenueUnknown)

	assert.Equal(t, 0.0, m.MinNotional("ghost"))
}

func TestManagerPlaceThroughSim(t *testing.T) {
	sim := NewSim("binance", SimConfig{MinNotional: 10})
	sim.Deposit("USDT", 1_000)

	m := NewManager()
	m.Register(sim)

	res, err := m.Place(context.Background(), "binance",
		order.Intent{Instrument: "BTC-USDT", Side: order.SideBuy, Notional: 100},
		100, 50_000)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExecuted, res.Status)
	assert.Equal(t, "binance", res.Venue)
	assert.InDelta(t, 100.0/50_000, res.FilledQty, 1e-12)

	bal, err := m.Balance(context.Background(), "binance", "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 900, bal, 1e-9)
}

func TestManagerBreakerTrips(t *testing.T) {
	sim := NewSim("kraken", SimConfig{})
	sim.FailPlace(errors.New("gateway unavailable"))

	m := NewManager()
	m.Register(sim, WithBreaker(2, time.Minute))

	intent := order.Intent{Instrument: "BTC-USD", Side: order.SideBuy, Notional: 10}
	for i := 0; i < 2; i++ {
		_, err := m.Place(context.Background(), "kraken", intent, 10, 50_000)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrVenueTripped)
	}

	// Breaker is now open; the adapter must not be reached again.
	sim.FailPlace(nil)
	_, err := m.Place(context.Background(), "kraken", intent, 10, 50_000)
	assert.ErrorIs(t, err, ErrVenueTripped)
}

func TestManagerMinNotional(t *testing.T) {
	m := NewManager()
	m.Register(NewSim("alpaca", SimConfig{MinNotional: 1}))

	assert.Equal(t, 1.0, m.MinNotional("alpaca"))
	assert.ElementsMatch(t, []string{"alpaca"}, m.Venues())
}

func TestSimBalanceFailureAndDelay(t *testing.T) {
	sim := NewSim("binance", SimConfig{})
	sim.Deposit("USDT", 500)

	sim.FailBalance(errors.New("maintenance window"))
	_, err := sim.Balance(context.Background(), "USDT")
	require.Error(t, err)

	sim.FailBalance(nil)
	sim.DelayBalance(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = sim.Balance(ctx, "USDT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	sim.DelayBalance(0)
	bal, err := sim.Balance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 500.0, bal)
}

func TestSimSellCreditsQuote(t *testing.T) {
	sim := NewSim("binance", SimConfig{FeeRate: 0.001})

	fill, err := sim.PlaceMarketOrder(context.Background(), "BTCUSDT", order.SideSell, 100, 50_000)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/50_000, fill.Qty, 1e-12)

	bal, err := sim.Balance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 99.9, bal, 1e-9)
}
