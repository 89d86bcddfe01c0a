package order

import "fmt"

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Intent is the decision-to-trade before routing: how much notional to move
// in which direction on which instrument.
type Intent struct {
	Instrument string
	Side       Side
	Notional   float64
}

// VenueAllocation is one leg of a routed intent.
type VenueAllocation struct {
	Venue    string
	Notional float64
	Fraction float64
}

// Status of an execution. Always definitive; the core never leaves a leg
// "pending".
type Status string

const (
	StatusExecuted  Status = "EXECUTED"
	StatusSimulated Status = "SIMULATED"
	StatusRejected  Status = "REJECTED"
)

// ExecutionResult is the definitive outcome of one venue allocation.
type ExecutionResult struct {
	Status    Status
	Venue     string
	FilledQty float64
	FillPrice float64
	Reason    string // set when Status != EXECUTED
}

// RouteError reports a routing failure that is the caller's problem
// (misconfigured policy, unroutable instrument), as opposed to venue
// failures, which degrade into SIMULATED legs.
type RouteError struct {
	Instrument string
	Reason     string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route %s: %s", e.Instrument, e.Reason)
}
