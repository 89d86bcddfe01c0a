package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu         sync.Mutex
	balances   map[string]float64 // "venue:asset"
	balanceErr map[string]error   // keyed by venue
	placeErr   map[string]error   // keyed by venue
	floors     map[string]float64
	placed     []placeCall
}

type placeCall struct {
	venue    string
	notional float64
}

func (s *stubClient) Balance(_ context.Context, venue, asset string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.balanceErr[venue]; ok {
		return 0, err
	}
	return s.balances[venue+":"+asset], nil
}

func (s *stubClient) Place(_ context.Context, venue string, intent Intent, notional, price float64) (ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.placeErr[venue]; ok {
		return ExecutionResult{}, err
	}
	s.placed = append(s.placed, placeCall{venue: venue, notional: notional})
	return ExecutionResult{
		Status:    StatusExecuted,
		Venue:     venue,
		FilledQty: notional / price,
		FillPrice: price,
	}, nil
}

func (s *stubClient) MinNotional(venue string) float64 {
	return s.floors[venue]
}

func newTestRouter(client *stubClient) *Router {
	guard := NewGuard(client)
	return NewRouter(DefaultPolicy(), guard, NewPool(4))
}

func TestAllocateBelowMateriality(t *testing.T) {
	r := newTestRouter(&stubClient{})

	allocs, err := r.Allocate(Intent{Instrument: "BTC-USDT", Side: SideBuy, Notional: 15})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, "binance", allocs[0].Venue)
	assert.Equal(t, 15.0, allocs[0].Notional)
	assert.Equal(t, 1.0, allocs[0].Fraction)
}

func TestAllocateMaterialSplit(t *testing.T) {
	r := newTestRouter(&stubClient{})

	allocs, err := r.Allocate(Intent{Instrument: "BTC-USDT", Side: SideBuy, Notional: 100})
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	assert.Equal(t, "binance", allocs[0].Venue)
	assert.InDelta(t, 70.0, allocs[0].Notional, 1e-9)
	assert.Equal(t, "kraken", allocs[1].Venue)
	assert.InDelta(t, 30.0, allocs[1].Notional, 1e-9)
	assert.InDelta(t, 1.0, allocs[0].Fraction+allocs[1].Fraction, 1e-9)
}

func TestAllocateEquityVenue(t *testing.T) {
	r := newTestRouter(&stubClient{})

	allocs, err := r.Allocate(Intent{Instrument: "AAPL", Side: SideBuy, Notional: 10})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, "alpaca", allocs[0].Venue)
}

func TestAllocateRejectsNonPositiveNotional(t *testing.T) {
	r := newTestRouter(&stubClient{})

	_, err := r.Allocate(Intent{Instrument: "BTC-USDT", Side: SideBuy, Notional: 0})
	var routeErr *RouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, "BTC-USDT", routeErr.Instrument)
}

func TestDispatchFloorSkipRejectsLegOnly(t *testing.T) {
	client := &stubClient{
		balances: map[string]float64{"binance:USDT": 1000, "kraken:USDT": 1000},
		floors:   map[string]float64{"kraken": 50},
	}
	r := newTestRouter(client)

	results, err := r.Dispatch(context.Background(), Intent{Instrument: "BTC-USDT", Side: SideBuy, Notional: 100}, 50_000)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusExecuted, results[0].Status)
	assert.Equal(t, StatusRejected, results[1].Status)
	assert.Contains(t, results[1].Reason, "below venue minimum")

	// Only the surviving leg reached the venue.
	require.Len(t, client.placed, 1)
	assert.Equal(t, "binance", client.placed[0].venue)
}

func TestDispatchSplitOneVenueDegrades(t *testing.T) {
	client := &stubClient{
		balances:   map[string]float64{"binance:USDT": 1000},
		balanceErr: map[string]error{"kraken": context.DeadlineExceeded},
	}
	r := newTestRouter(client)

	results, err := r.Dispatch(context.Background(), Intent{Instrument: "BTC-USDT", Side: SideBuy, Notional: 100}, 50_000)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusExecuted, results[0].Status)
	assert.InDelta(t, 70.0/50_000, results[0].FilledQty, 1e-12)

	assert.Equal(t, StatusSimulated, results[1].Status)
	assert.Equal(t, "insufficient_balance: available=0.00 required=30.00", results[1].Reason)
	assert.InDelta(t, 30.0/50_000, results[1].FilledQty, 1e-12)
}

func TestInstrumentCategory(t *testing.T) {
	cases := []struct {
		instrument string
		want       category
	}{
		{"BTC-USDT", categoryCrypto},
		{"ETH/USD", categoryCrypto},
		{"AAPL", categoryEquity},
		{"MSFT", categoryEquity},
		{"BRK.B", categoryOther},
		{"abc123", categoryOther},
	}
	for _, tc := range cases {
		t.Run(tc.instrument, func(t *testing.T) {
			assert.Equal(t, tc.want, instrumentCategory(tc.instrument))
		})
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)

	var mu sync.Mutex
	running, peak := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Go(func() {
			defer wg.Done()
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()

	if peak > 2 {
		t.Fatalf("pool allowed %d concurrent tasks, want at most 2", peak)
	}
}

func TestRouteErrorMessage(t *testing.T) {
	err := &RouteError{Instrument: "BTC-USDT", Reason: "no venue configured for category"}
	assert.Equal(t, fmt.Sprintf("route %s: no venue configured for category", "BTC-USDT"), err.Error())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, "BUY", string(SideBuy))
	assert.Equal(t, "SELL", string(SideSell))
}
