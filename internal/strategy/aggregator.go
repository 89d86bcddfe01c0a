package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Decision is the combined outcome of one evaluation round.
type Decision struct {
	Direction  Direction
	Confidence float64 // 0..95
	Votes      []Vote  // every vote considered, including synthesized HOLDs
	Rationale  string  // non-HOLD contributions, for the operator
}

// decisionThreshold is the minimum weighted score before the aggregator is
// willing to act at all.
const decisionThreshold = 0.3

// maxConfidence caps the reported confidence; no aggregation of imperfect
// signals deserves more.
const maxConfidence = 95.0

// Aggregate folds weighted votes into a single directional decision.
//
// Errored evaluators contribute a visible HOLD vote but are excluded from the
// weight denominator, so a dead evaluator does not dilute the live ones.
// Votes carrying protective levels on the wrong side of the current price are
// discarded the same way: logged, visible, not counted.
func Aggregate(price float64, results []EvalResult) Decision {
	var (
		buyScore    float64
		sellScore   float64
		totalWeight float64
		votes       = make([]Vote, 0, len(results))
		reasons     []string
	)

	for _, res := range results {
		vote := res.Vote
		votes = append(votes, vote)

		if res.Err != nil {
			log.Warn().Str("strategy", vote.Strategy).Err(res.Err).
				Msg("evaluator failed, vote excluded from aggregation")
			continue
		}
		if !levelsValid(vote, price) {
			log.Warn().Str("strategy", vote.Strategy).
				Float64("stop_loss", vote.StopLoss).
				Float64("take_profit", vote.TakeProfit).
				Float64("price", price).
				Msg("vote has protective levels on the wrong side of entry, discarded")
			continue
		}

		totalWeight += vote.Weight
		contribution := vote.Strength / 100 * vote.Weight

		switch vote.Direction {
		case Buy:
			buyScore += contribution
		case Sell:
			sellScore += contribution
		}
		if vote.Direction != Hold {
			reasons = append(reasons, fmt.Sprintf("%s %s %.0f: %s",
				vote.Strategy, vote.Direction, vote.Strength, vote.Rationale))
		}
	}

	decision := Decision{Direction: Hold, Votes: votes, Rationale: strings.Join(reasons, "; ")}
	if totalWeight == 0 {
		return decision
	}

	var dominant float64
	switch {
	case buyScore > sellScore && buyScore > decisionThreshold:
		decision.Direction = Buy
		dominant = buyScore
	case sellScore > buyScore && sellScore > decisionThreshold:
		decision.Direction = Sell
		dominant = sellScore
	default:
		// Ties and weak scores both resolve to HOLD.
		return decision
	}

	confidence := dominant / totalWeight * 100
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	decision.Confidence = confidence
	return decision
}

// levelsValid rejects suggested stop/take levels sitting on the wrong side of
// the current price. A vote without suggestions is always valid.
func levelsValid(v Vote, price float64) bool {
	if v.StopLoss == 0 && v.TakeProfit == 0 {
		return true
	}
	if price <= 0 {
		return true
	}
	switch v.Direction {
	case Buy:
		if v.StopLoss > 0 && v.StopLoss >= price {
			return false
		}
		if v.TakeProfit > 0 && v.TakeProfit <= price {
			return false
		}
	case Sell:
		if v.StopLoss > 0 && v.StopLoss <= price {
			return false
		}
		if v.TakeProfit > 0 && v.TakeProfit >= price {
			return false
		}
	}
	return true
}
