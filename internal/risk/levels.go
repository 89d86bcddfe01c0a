// Package risk computes and checks protective price levels for open
// positions.
package risk

import (
	"fmt"

	"autotrader/internal/order"
)

// Levels holds the protective prices attached to a position.
type Levels struct {
	StopLoss   float64
	TakeProfit float64
}

// Compute derives protective levels from an entry price and percentage
// offsets. stopPct and takePct are positive fractions, e.g. 0.05 and 0.10.
func Compute(side order.Side, entry, stopPct, takePct float64) (Levels, error) {
	if entry <= 0 {
		return Levels{}, fmt.Errorf("risk: entry price %.4f must be positive", entry)
	}
	if stopPct <= 0 || takePct <= 0 {
		return Levels{}, fmt.Errorf("risk: offsets must be positive (stop=%.4f take=%.4f)", stopPct, takePct)
	}

	var lv Levels
	switch side {
	case order.SideBuy:
		lv = Levels{StopLoss: entry * (1 - stopPct), TakeProfit: entry * (1 + takePct)}
	case order.SideSell:
		lv = Levels{StopLoss: entry * (1 + stopPct), TakeProfit: entry * (1 - takePct)}
	default:
		return Levels{}, fmt.Errorf("risk: unknown side %q", side)
	}
	return lv, Validate(side, entry, lv)
}

// Validate checks that levels sit on the correct sides of the entry:
// long positions stop below and take profit above, shorts the inverse.
func Validate(side order.Side, entry float64, lv Levels) error {
	switch side {
	case order.SideBuy:
		if lv.StopLoss >= entry {
			return fmt.Errorf("risk: long stop loss %.4f must be below entry %.4f", lv.StopLoss, entry)
		}
		if lv.TakeProfit <= entry {
			return fmt.Errorf("risk: long take profit %.4f must be above entry %.4f", lv.TakeProfit, entry)
		}
	case order.SideSell:
		if lv.StopLoss <= entry {
			return fmt.Errorf("risk: short stop loss %.4f must be above entry %.4f", lv.StopLoss, entry)
		}
		if lv.TakeProfit >= entry {
			return fmt.Errorf("risk: short take profit %.4f must be below entry %.4f", lv.TakeProfit, entry)
		}
	default:
		return fmt.Errorf("risk: unknown side %q", side)
	}
	return nil
}

// Trigger describes why a position should close.
type Trigger string

const (
	TriggerNone       Trigger = ""
	TriggerStopLoss   Trigger = "stop_loss"
	TriggerTakeProfit Trigger = "take_profit"
)

// Check returns which protective level the current price has crossed,
// if any. Stop loss wins when both would fire on the same tick.
func Check(side order.Side, lv Levels, price float64) Trigger {
	switch side {
	case order.SideBuy:
		if lv.StopLoss > 0 && price <= lv.StopLoss {
			return TriggerStopLoss
		}
		if lv.TakeProfit > 0 && price >= lv.TakeProfit {
			return TriggerTakeProfit
		}
	case order.SideSell:
		if lv.StopLoss > 0 && price >= lv.StopLoss {
			return TriggerStopLoss
		}
		if lv.TakeProfit > 0 && price <= lv.TakeProfit {
			return TriggerTakeProfit
		}
	}
	return TriggerNone
}
