// Package venue hosts the exchange adapters and the manager that fronts
// them with circuit breaking, rate limiting and symbol translation.
package venue

import (
	"context"
	"errors"

	"autotrader/internal/order"
)

var (
	ErrVenueUnknown = errors.New("venue not registered")
	ErrVenueTripped = errors.New("venue circuit open")
)

// Fill is a completed market order on a venue.
type Fill struct {
	Symbol string
	Qty    float64
	Price  float64
}

// Adapter is one venue connection. Symbols arrive already translated to the
// venue's own convention.
type Adapter interface {
	Name() string
	Balance(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side order.Side, notional, price float64) (Fill, error)
	MinNotional() float64
}
