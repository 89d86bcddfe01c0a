package strategy

import (
	"errors"
	"fmt"

	"autotrader/internal/market"
)

// ErrInsufficientHistory marks a data-unavailable evaluation: the evaluator
// could not form an opinion at all, as opposed to deciding to stay flat.
// Votes born from it are excluded from the aggregation denominator.
var ErrInsufficientHistory = errors.New("insufficient history")

// Direction is a vote or decision side.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Vote is one evaluator's opinion for a single tick. Immutable once produced.
// StopLoss/TakeProfit are optional suggestions (0 = none); votes whose
// suggestions sit on the wrong side of the current price are discarded by the
// aggregator rather than poisoning the decision.
type Vote struct {
	Strategy   string
	Direction  Direction
	Strength   float64 // 0..100
	Rationale  string
	Weight     float64
	StopLoss   float64
	TakeProfit float64
}

// Evaluator turns a market snapshot plus history into a vote.
// Implementations must not panic; internal failures surface as errors and are
// converted into HOLD votes by the engine.
type Evaluator interface {
	Name() string
	Evaluate(snap market.Snapshot, history market.Series) (Vote, error)
}

// EvalError marks a vote that exists only because its evaluator failed.
// Keeping it typed lets logs and the aggregator tell "HOLD because of error"
// apart from "HOLD because the signal was genuinely neutral".
type EvalError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluator %s: %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluator %s: %s", e.Strategy, e.Reason)
}

func (e *EvalError) Unwrap() error { return e.Err }

// EvalResult pairs a vote with the error that produced it, if any.
// Err != nil means the vote is a synthesized HOLD and its weight must be
// excluded from the aggregation denominator.
type EvalResult struct {
	Vote Vote
	Err  error
}

// Evaluate runs one evaluator defensively: panics and errors both collapse
// into a HOLD vote with strength 0 and the failure reason as rationale.
func Evaluate(ev Evaluator, weight float64, snap market.Snapshot, history market.Series) (res EvalResult) {
	defer func() {
		if r := recover(); r != nil {
			err := &EvalError{Strategy: ev.Name(), Reason: fmt.Sprintf("panic: %v", r)}
			res = EvalResult{Vote: holdVote(ev.Name(), weight, err.Error()), Err: err}
		}
	}()

	vote, err := ev.Evaluate(snap, history)
	if err != nil {
		evalErr := &EvalError{Strategy: ev.Name(), Reason: "evaluate failed", Err: err}
		return EvalResult{Vote: holdVote(ev.Name(), weight, err.Error()), Err: evalErr}
	}

	vote.Strategy = ev.Name()
	vote.Weight = weight
	if vote.Strength < 0 {
		vote.Strength = 0
	}
	if vote.Strength > 100 {
		vote.Strength = 100
	}
	return EvalResult{Vote: vote}
}

func holdVote(name string, weight float64, reason string) Vote {
	return Vote{
		Strategy:  name,
		Direction: Hold,
		Strength:  0,
		Rationale: reason,
		Weight:    weight,
	}
}
