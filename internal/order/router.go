package order

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Policy configures venue routing.
type Policy struct {
	// MaterialityThreshold is the notional at or above which an order is
	// split across two venues for diversification.
	MaterialityThreshold float64
	// SplitFraction is the share routed to the category's default venue
	// when splitting; the remainder goes to SecondaryVenue.
	SplitFraction float64

	CryptoVenue    string
	EquityVenue    string
	DefaultVenue   string
	SecondaryVenue string
}

// DefaultPolicy mirrors the production routing defaults: $20 materiality,
// 70/30 split.
func DefaultPolicy() Policy {
	return Policy{
		MaterialityThreshold: 20,
		SplitFraction:        0.7,
		CryptoVenue:          "binance",
		EquityVenue:          "alpaca",
		DefaultVenue:         "binance",
		SecondaryVenue:       "kraken",
	}
}

// Router maps intents onto venue allocations and pushes each leg through the
// balance guard on the bounded venue-I/O pool.
type Router struct {
	policy Policy
	guard  *Guard
	pool   *Pool
}

func NewRouter(policy Policy, guard *Guard, pool *Pool) *Router {
	if policy.SplitFraction <= 0 || policy.SplitFraction >= 1 {
		policy.SplitFraction = 0.7
	}
	return &Router{policy: policy, guard: guard, pool: pool}
}

// Allocate splits an intent into venue allocations.
// Material orders go 70/30 (configurable) across exactly two venues;
// everything else routes whole to the category default.
func (r *Router) Allocate(intent Intent) ([]VenueAllocation, error) {
	if intent.Notional <= 0 {
		return nil, &RouteError{Instrument: intent.Instrument, Reason: "non-positive notional"}
	}

	primary := r.defaultVenue(intent.Instrument)
	if primary == "" {
		return nil, &RouteError{Instrument: intent.Instrument, Reason: "no venue configured for category"}
	}

	if intent.Notional < r.policy.MaterialityThreshold || r.policy.SecondaryVenue == "" || r.policy.SecondaryVenue == primary {
		return []VenueAllocation{{
			Venue:    primary,
			Notional: intent.Notional,
			Fraction: 1,
		}}, nil
	}

	p := r.policy.SplitFraction
	return []VenueAllocation{
		{Venue: primary, Notional: intent.Notional * p, Fraction: p},
		{Venue: r.policy.SecondaryVenue, Notional: intent.Notional * (1 - p), Fraction: 1 - p},
	}, nil
}

// Dispatch routes the intent and executes every leg through the balance
// guard. Legs run concurrently on the venue-I/O pool; results come back in
// allocation order. Venue failures degrade per leg rather than failing the
// intent: the result set always covers every allocation.
func (r *Router) Dispatch(ctx context.Context, intent Intent, price float64) ([]ExecutionResult, error) {
	allocs, err := r.Allocate(intent)
	if err != nil {
		return nil, err
	}

	results := make([]ExecutionResult, len(allocs))
	var wg sync.WaitGroup
	for i, alloc := range allocs {
		floor := r.guard.MinNotional(alloc.Venue)
		if alloc.Notional < floor {
			// Skip the leg for this venue, keep the rest of the order.
			log.Info().
				Str("venue", alloc.Venue).
				Str("instrument", intent.Instrument).
				Float64("notional", alloc.Notional).
				Float64("floor", floor).
				Msg("allocation below venue minimum, leg skipped")
			results[i] = ExecutionResult{
				Status: StatusRejected,
				Venue:  alloc.Venue,
				Reason: fmt.Sprintf("below venue minimum: notional=%.2f floor=%.2f", alloc.Notional, floor),
			}
			continue
		}

		wg.Add(1)
		i, alloc := i, alloc
		r.pool.Go(func() {
			defer wg.Done()
			results[i] = r.guard.Execute(ctx, intent, alloc, price)
		})
	}
	wg.Wait()

	return results, nil
}

// defaultVenue maps an instrument's category to its venue: crypto-style
// pairs (BASE-QUOTE), equity-style tickers, or anything else.
func (r *Router) defaultVenue(instrument string) string {
	switch instrumentCategory(instrument) {
	case categoryCrypto:
		if r.policy.CryptoVenue != "" {
			return r.policy.CryptoVenue
		}
	case categoryEquity:
		if r.policy.EquityVenue != "" {
			return r.policy.EquityVenue
		}
	}
	return r.policy.DefaultVenue
}

type category int

const (
	categoryOther category = iota
	categoryCrypto
	categoryEquity
)

func instrumentCategory(instrument string) category {
	if strings.Contains(instrument, "-") || strings.Contains(instrument, "/") {
		return categoryCrypto
	}
	if len(instrument) > 0 && len(instrument) <= 5 && instrument == strings.ToUpper(instrument) {
		allLetters := true
		for _, r := range instrument {
			if r < 'A' || r > 'Z' {
				allLetters = false
				break
			}
		}
		if allLetters {
			return categoryEquity
		}
	}
	return categoryOther
}
