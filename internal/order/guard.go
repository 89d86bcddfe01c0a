package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// VenueClient is what the guard needs from the venue layer. Defined here so
// the venue package can satisfy it without an import cycle.
type VenueClient interface {
	// Balance returns the free balance of asset on venue.
	Balance(ctx context.Context, venue, asset string) (float64, error)
	// Place submits a notional-sized market order and returns the fill.
	Place(ctx context.Context, venue string, intent Intent, notional, price float64) (ExecutionResult, error)
	// MinNotional is the venue's minimum order size in quote currency.
	MinNotional(venue string) float64
}

// Guard checks available balance before every placement and downgrades to a
// simulated fill whenever the real path cannot be trusted: insufficient
// funds, a balance check that errors or times out, or a venue rejection.
// Execution never fails outright because of the guard.
type Guard struct {
	client       VenueClient
	venueTimeout time.Duration

	mu    sync.Mutex
	cache map[string]balanceEntry
	ttl   time.Duration
}

type balanceEntry struct {
	available float64
	fetchedAt time.Time
}

// GuardOption tweaks guard behaviour.
type GuardOption func(*Guard)

// WithVenueTimeout bounds each balance check and placement call.
func WithVenueTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.venueTimeout = d }
}

// WithBalanceTTL sets how long a fetched balance stays fresh.
func WithBalanceTTL(d time.Duration) GuardOption {
	return func(g *Guard) { g.ttl = d }
}

func NewGuard(client VenueClient, opts ...GuardOption) *Guard {
	g := &Guard{
		client:       client,
		venueTimeout: 10 * time.Second,
		cache:        make(map[string]balanceEntry),
		ttl:          3 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) MinNotional(venue string) float64 {
	return g.client.MinNotional(venue)
}

// Execute runs one allocation leg: balance check, then placement, with a
// simulated fallback at every failure point. The returned result always has
// a terminal status.
func (g *Guard) Execute(ctx context.Context, intent Intent, alloc VenueAllocation, price float64) ExecutionResult {
	required := alloc.Notional
	asset := quoteAsset(intent.Instrument)

	available, err := g.availableBalance(ctx, alloc.Venue, asset)
	if err != nil {
		// Treat an unknown balance as zero. A timeout or venue error must
		// not block the trading loop, and it must not risk real funds.
		log.Warn().Err(err).
			Str("venue", alloc.Venue).
			Str("asset", asset).
			Msg("balance check failed, falling back to simulated execution")
		available = 0
	}

	if available < required {
		return g.simulate(intent, alloc, price,
			fmt.Sprintf("insufficient_balance: available=%.2f required=%.2f", available, required))
	}

	placeCtx, cancel := context.WithTimeout(ctx, g.venueTimeout)
	defer cancel()
	res, err := g.client.Place(placeCtx, alloc.Venue, intent, alloc.Notional, price)
	if err != nil {
		log.Warn().Err(err).
			Str("venue", alloc.Venue).
			Str("instrument", intent.Instrument).
			Msg("venue placement failed, falling back to simulated execution")
		g.invalidate(alloc.Venue, asset)
		return g.simulate(intent, alloc, price, fmt.Sprintf("venue_error: %v", err))
	}

	g.invalidate(alloc.Venue, asset)
	return res
}

func (g *Guard) simulate(intent Intent, alloc VenueAllocation, price float64, reason string) ExecutionResult {
	var qty float64
	if price > 0 {
		qty = alloc.Notional / price
	}
	return ExecutionResult{
		Status:    StatusSimulated,
		Venue:     alloc.Venue,
		FilledQty: qty,
		FillPrice: price,
		Reason:    reason,
	}
}

// availableBalance serves from the short-TTL cache when fresh, otherwise
// fetches under a bounded timeout.
func (g *Guard) availableBalance(ctx context.Context, venue, asset string) (float64, error) {
	key := venue + ":" + asset

	g.mu.Lock()
	entry, ok := g.cache[key]
	g.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < g.ttl {
		return entry.available, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.venueTimeout)
	defer cancel()
	available, err := g.client.Balance(fetchCtx, venue, asset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("balance fetch timed out after %s: %w", g.venueTimeout, err)
		}
		return 0, fmt.Errorf("balance fetch failed: %w", err)
	}

	g.mu.Lock()
	g.cache[key] = balanceEntry{available: available, fetchedAt: time.Now()}
	g.mu.Unlock()
	return available, nil
}

func (g *Guard) invalidate(venue, asset string) {
	g.mu.Lock()
	delete(g.cache, venue+":"+asset)
	g.mu.Unlock()
}

// quoteAsset extracts the settlement asset from an instrument symbol.
// Crypto pairs carry it explicitly (BTC-USDT); bare tickers settle in USD.
func quoteAsset(instrument string) string {
	for _, sep := range []string{"-", "/"} {
		if i := strings.LastIndex(instrument, sep); i >= 0 && i < len(instrument)-1 {
			return instrument[i+1:]
		}
	}
	return "USD"
}
