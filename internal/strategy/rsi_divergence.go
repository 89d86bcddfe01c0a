package strategy

import (
	"fmt"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// RSIDivergence looks for mismatches between the price path and the RSI path
// (a classic early-reversal read), plus outright overbought/oversold extremes
// and short-horizon RSI momentum in the neutral band.
type RSIDivergence struct {
	rsiWindow int
	lookback  int
}

const minDivergenceBars = 20

func NewRSIDivergence() *RSIDivergence {
	return &RSIDivergence{rsiWindow: indicators.DefaultRSIWindow, lookback: 40}
}

func (s *RSIDivergence) Name() string { return "rsi_divergence" }

func (s *RSIDivergence) Evaluate(snap market.Snapshot, history market.Series) (Vote, error) {
	closes := history.Closes()
	if len(closes) < minDivergenceBars {
		return Vote{}, fmt.Errorf("divergence detection needs %d bars, have %d: %w",
			minDivergenceBars, len(closes), ErrInsufficientHistory)
	}
	if len(closes) > s.lookback {
		closes = closes[len(closes)-s.lookback:]
	}

	rsiPath := indicators.RSISeries(closes, s.rsiWindow)
	rsi := rsiPath[len(rsiPath)-1]

	// Regular divergences on the last two swing points.
	if peaks := localPeaks(closes); len(peaks) >= 2 {
		a, b := peaks[len(peaks)-2], peaks[len(peaks)-1]
		if closes[b] > closes[a] && rsiPath[b] < rsiPath[a] {
			return Vote{
				Direction: Sell,
				Strength:  80,
				Rationale: fmt.Sprintf("bearish divergence: price HH %.2f>%.2f, RSI LH %.1f<%.1f", closes[b], closes[a], rsiPath[b], rsiPath[a]),
			}, nil
		}
	}
	if troughs := localTroughs(closes); len(troughs) >= 2 {
		a, b := troughs[len(troughs)-2], troughs[len(troughs)-1]
		if closes[b] < closes[a] && rsiPath[b] > rsiPath[a] {
			return Vote{
				Direction: Buy,
				Strength:  80,
				Rationale: fmt.Sprintf("bullish divergence: price LL %.2f<%.2f, RSI HL %.1f>%.1f", closes[b], closes[a], rsiPath[b], rsiPath[a]),
			}, nil
		}
	}

	// Outright extremes, scaled by how far past 70/30 the oscillator sits.
	if rsi > 80 {
		return Vote{
			Direction: Sell,
			Strength:  scale(rsi-70, 10, 30, 55, 90),
			Rationale: fmt.Sprintf("overbought: rsi=%.1f", rsi),
		}, nil
	}
	if rsi < 20 {
		return Vote{
			Direction: Buy,
			Strength:  scale(30-rsi, 10, 30, 55, 90),
			Rationale: fmt.Sprintf("oversold: rsi=%.1f", rsi),
		}, nil
	}

	// Neutral band: short-horizon RSI momentum.
	if len(rsiPath) >= 4 {
		delta := rsi - rsiPath[len(rsiPath)-4]
		if delta > 10 {
			return Vote{
				Direction: Buy,
				Strength:  50,
				Rationale: fmt.Sprintf("rising RSI momentum: Δ=%.1f over 3 periods", delta),
			}, nil
		}
		if delta < -10 {
			return Vote{
				Direction: Sell,
				Strength:  50,
				Rationale: fmt.Sprintf("falling RSI momentum: Δ=%.1f over 3 periods", delta),
			}, nil
		}
	}

	return Vote{Direction: Hold, Rationale: fmt.Sprintf("no divergence: rsi=%.1f", rsi)}, nil
}

// localPeaks returns indexes that exceed their 2 neighbors on each side.
func localPeaks(values []float64) []int {
	var peaks []int
	for i := 2; i < len(values)-2; i++ {
		v := values[i]
		if v > values[i-1] && v > values[i-2] && v > values[i+1] && v > values[i+2] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// localTroughs is the mirror of localPeaks.
func localTroughs(values []float64) []int {
	var troughs []int
	for i := 2; i < len(values)-2; i++ {
		v := values[i]
		if v < values[i-1] && v < values[i-2] && v < values[i+1] && v < values[i+2] {
			troughs = append(troughs, i)
		}
	}
	return troughs
}
