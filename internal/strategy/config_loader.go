package strategy

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// EvaluatorConfig is one evaluator entry in the policy YAML.
type EvaluatorConfig struct {
	Name    string  `yaml:"name"`
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`
}

// Policy is the top-level strategy policy file.
type Policy struct {
	Evaluators []EvaluatorConfig `yaml:"evaluators"`

	// SyntheticBook allows the orderbook evaluator to build an artificial
	// book when no real depth is available. Off by default: a synthetic
	// book carries no liquidity information.
	SyntheticBook bool `yaml:"synthetic_book"`
	DepthLevels   int  `yaml:"depth_levels"`
	VWAPWindow    int  `yaml:"vwap_window"`
}

// WeightedEvaluator pairs a built evaluator with its aggregation weight.
type WeightedEvaluator struct {
	Evaluator Evaluator
	Weight    float64
}

// DefaultPolicy enables all four evaluators at equal weight.
func DefaultPolicy() Policy {
	return Policy{
		Evaluators: []EvaluatorConfig{
			{Name: "orderbook_imbalance", Enabled: true, Weight: 0.25},
			{Name: "vwap_reversion", Enabled: true, Weight: 0.25},
			{Name: "ma_momentum", Enabled: true, Weight: 0.25},
			{Name: "rsi_divergence", Enabled: true, Weight: 0.25},
		},
		DepthLevels: 10,
		VWAPWindow:  20,
	}
}

// LoadPolicy reads the policy from a YAML file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse strategy policy: %w", err)
	}
	if p.DepthLevels <= 0 {
		p.DepthLevels = 10
	}
	if p.VWAPWindow <= 0 {
		p.VWAPWindow = 20
	}
	return p, nil
}

// Build validates the policy and constructs the evaluator set.
// Enabled weights must sum to 1.0.
func (p Policy) Build() ([]WeightedEvaluator, error) {
	total := 0.0
	for _, cfg := range p.Evaluators {
		if !cfg.Enabled {
			continue
		}
		if cfg.Weight < 0 {
			return nil, fmt.Errorf("evaluator %s has negative weight %.3f", cfg.Name, cfg.Weight)
		}
		total += cfg.Weight
	}
	if math.Abs(total-1.0) > 1e-6 {
		return nil, fmt.Errorf("enabled evaluator weights sum to %.4f, want 1.0", total)
	}

	var out []WeightedEvaluator
	for _, cfg := range p.Evaluators {
		if !cfg.Enabled {
			continue
		}

		var ev Evaluator
		switch cfg.Name {
		case "orderbook_imbalance":
			ev = NewOrderbookImbalance(p.DepthLevels, p.SyntheticBook)
		case "vwap_reversion":
			ev = NewVWAPReversion(p.VWAPWindow)
		case "ma_momentum":
			ev = NewMAMomentum()
		case "rsi_divergence":
			ev = NewRSIDivergence()
		default:
			return nil, fmt.Errorf("unknown evaluator: %s", cfg.Name)
		}
		out = append(out, WeightedEvaluator{Evaluator: ev, Weight: cfg.Weight})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no evaluators enabled")
	}
	return out, nil
}
