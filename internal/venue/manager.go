package venue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"autotrader/internal/order"
)

// Manager fronts the registered adapters. Every call passes a per-venue
// rate limiter and circuit breaker, and symbols are translated to the
// venue's own convention before they leave the process.
type Manager struct {
	mu     sync.RWMutex
	venues map[string]*registered
}

type registered struct {
	adapter Adapter
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// RegisterOption tweaks one venue registration.
type RegisterOption func(*registration)

type registration struct {
	requestsPerSec float64
	burst          int
	breakerTrips   uint32
	breakerReset   time.Duration
}

// WithRateLimit overrides the default request budget for a venue.
func WithRateLimit(perSec float64, burst int) RegisterOption {
	return func(r *registration) {
		r.requestsPerSec = perSec
		r.burst = burst
	}
}

// WithBreaker overrides the consecutive-failure trip count and the open
// interval before a retry probe.
func WithBreaker(trips uint32, reset time.Duration) RegisterOption {
	return func(r *registration) {
		r.breakerTrips = trips
		r.breakerReset = reset
	}
}

func NewManager() *Manager {
	return &Manager{venues: make(map[string]*registered)}
}

// Register adds a venue. Later registrations under the same name replace
// earlier ones.
func (m *Manager) Register(adapter Adapter, opts ...RegisterOption) {
	reg := registration{
		requestsPerSec: 10,
		burst:          20,
		breakerTrips:   5,
		breakerReset:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(&reg)
	}

	name := adapter.Name()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: reg.breakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= reg.breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("venue", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("venue breaker state change")
		},
	})

	m.mu.Lock()
	m.venues[name] = &registered{
		adapter: adapter,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(reg.requestsPerSec), reg.burst),
	}
	m.mu.Unlock()
}

// Venues lists registered venue names.
func (m *Manager) Venues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.venues))
	for name := range m.venues {
		names = append(names, name)
	}
	return names
}

func (m *Manager) lookup(venue string) (*registered, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.venues[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueUnknown, venue)
	}
	return reg, nil
}

// Balance implements order.VenueClient.
func (m *Manager) Balance(ctx context.Context, venue, asset string) (float64, error) {
	reg, err := m.lookup(venue)
	if err != nil {
		return 0, err
	}
	if err := reg.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	out, err := reg.breaker.Execute(func() (interface{}, error) {
		return reg.adapter.Balance(ctx, asset)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return 0, fmt.Errorf("%w: %s", ErrVenueTripped, venue)
		}
		return 0, err
	}
	return out.(float64), nil
}

// Place implements order.VenueClient.
func (m *Manager) Place(ctx context.Context, venue string, intent order.Intent, notional, price float64) (order.ExecutionResult, error) {
	reg, err := m.lookup(venue)
	if err != nil {
		return order.ExecutionResult{}, err
	}
	if err := reg.limiter.Wait(ctx); err != nil {
		return order.ExecutionResult{}, err
	}

	symbol := Symbol(venue, intent.Instrument)
	out, err := reg.breaker.Execute(func() (interface{}, error) {
		return reg.adapter.PlaceMarketOrder(ctx, symbol, intent.Side, notional, price)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return order.ExecutionResult{}, fmt.Errorf("%w: %s", ErrVenueTripped, venue)
		}
		return order.ExecutionResult{}, err
	}

	fill := out.(Fill)
	log.Info().
		Str("venue", venue).
		Str("symbol", symbol).
		Str("side", string(intent.Side)).
		Float64("qty", fill.Qty).
		Float64("price", fill.Price).
		Msg("order filled")
	return order.ExecutionResult{
		Status:    order.StatusExecuted,
		Venue:     venue,
		FilledQty: fill.Qty,
		FillPrice: fill.Price,
	}, nil
}

// MinNotional implements order.VenueClient. Unknown venues report no floor.
func (m *Manager) MinNotional(venue string) float64 {
	reg, err := m.lookup(venue)
	if err != nil {
		return 0
	}
	return reg.adapter.MinNotional()
}

// Symbol translates a canonical instrument (BASE-QUOTE or bare ticker)
// into the venue's convention.
func Symbol(venue, instrument string) string {
	base, quote, pair := splitInstrument(instrument)
	switch venue {
	case "binance":
		if pair {
			return strings.ToUpper(base + quote)
		}
		return strings.ToUpper(instrument)
	case "kraken":
		if pair {
			return krakenAsset(base) + "/" + krakenAsset(quote)
		}
		return strings.ToUpper(instrument)
	default:
		// Equity venues take the ticker as-is.
		return instrument
	}
}

func splitInstrument(instrument string) (base, quote string, ok bool) {
	for _, sep := range []string{"-", "/"} {
		if i := strings.Index(instrument, sep); i > 0 && i < len(instrument)-1 {
			return instrument[:i], instrument[i+1:], true
		}
	}
	return "", "", false
}

// krakenAsset maps common assets to Kraken's legacy codes.
func krakenAsset(asset string) string {
	switch strings.ToUpper(asset) {
	case "BTC":
		return "XBT"
	case "DOGE":
		return "XDG"
	default:
		return strings.ToUpper(asset)
	}
}
