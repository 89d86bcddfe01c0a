package strategy

import (
	"fmt"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// VWAPReversion bets that price stretched far from the volume-weighted
// average, relative to recent volatility, snaps back toward it.
type VWAPReversion struct {
	window int
}

func NewVWAPReversion(window int) *VWAPReversion {
	if window <= 0 {
		window = 20
	}
	return &VWAPReversion{window: window}
}

func (s *VWAPReversion) Name() string { return "vwap_reversion" }

func (s *VWAPReversion) Evaluate(snap market.Snapshot, history market.Series) (Vote, error) {
	vwap, ok := indicators.VWAP(history, s.window)
	if !ok || vwap == 0 {
		return Vote{}, fmt.Errorf("VWAP over %d bars: %w", s.window, ErrInsufficientHistory)
	}

	vol, ok := indicators.Volatility(history.Closes(), s.window)
	if !ok {
		return Vote{}, fmt.Errorf("volatility over %d bars: %w", s.window, ErrInsufficientHistory)
	}
	if vol == 0 {
		return Vote{Direction: Hold, Rationale: "flat market, no volatility to revert against"}, nil
	}

	deviation := (snap.LastPrice - vwap) / vwap

	switch {
	case deviation > 2*vol:
		strength := scale(deviation/vol, 2, 4, 75, 90)
		return Vote{
			Direction: Sell,
			Strength:  strength,
			Rationale: fmt.Sprintf("price %.2f%% above VWAP (%.1fx volatility)", deviation*100, deviation/vol),
		}, nil

	case deviation < -2*vol:
		strength := scale(-deviation/vol, 2, 4, 75, 90)
		return Vote{
			Direction: Buy,
			Strength:  strength,
			Rationale: fmt.Sprintf("price %.2f%% below VWAP (%.1fx volatility)", deviation*100, -deviation/vol),
		}, nil

	case deviation > vol:
		return Vote{
			Direction: Sell,
			Strength:  scale(deviation/vol, 1, 2, 55, 75),
			Rationale: fmt.Sprintf("price stretched above VWAP: %.2f%%", deviation*100),
		}, nil

	case deviation < -vol:
		return Vote{
			Direction: Buy,
			Strength:  scale(-deviation/vol, 1, 2, 55, 75),
			Rationale: fmt.Sprintf("price stretched below VWAP: %.2f%%", deviation*100),
		}, nil
	}

	return Vote{
		Direction: Hold,
		Rationale: fmt.Sprintf("deviation %.2f%% within volatility band", deviation*100),
	}, nil
}
