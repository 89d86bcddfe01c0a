package strategy

import (
	"fmt"

	"autotrader/internal/indicators"
	"autotrader/internal/market"
)

// MAMomentum trades moving-average crossovers confirmed by RSI and volume.
// A fresh cross with expanding volume is the strong signal; a persistent
// spread between the averages gives a weaker trend-continuation vote.
type MAMomentum struct {
	shortWindow int
	longWindow  int
	rsiWindow   int
}

const (
	volumeConfirm = 1.2  // volume ratio needed to confirm a crossover
	trendBand     = 0.02 // short MA this far beyond long MA reads as a trend
)

func NewMAMomentum() *MAMomentum {
	return &MAMomentum{shortWindow: 10, longWindow: 20, rsiWindow: 20}
}

func (s *MAMomentum) Name() string { return "ma_momentum" }

func (s *MAMomentum) Evaluate(snap market.Snapshot, history market.Series) (Vote, error) {
	closes := history.Closes()
	if len(closes) < s.longWindow+1 {
		return Vote{}, fmt.Errorf("moving averages need %d bars, have %d: %w",
			s.longWindow+1, len(closes), ErrInsufficientHistory)
	}

	shortNow, ok1 := indicators.SMA(closes, s.shortWindow)
	longNow, ok2 := indicators.SMA(closes, s.longWindow)
	shortPrev, ok3 := indicators.SMA(closes[:len(closes)-1], s.shortWindow)
	longPrev, ok4 := indicators.SMA(closes[:len(closes)-1], s.longWindow)
	if !ok1 || !ok2 || !ok3 || !ok4 || longNow == 0 {
		return Vote{}, fmt.Errorf("moving averages over %d bars: %w", s.longWindow, ErrInsufficientHistory)
	}

	rsi := indicators.RSI(closes, s.rsiWindow)
	volRatio := s.volumeRatio(history)

	crossedUp := shortPrev <= longPrev && shortNow > longNow
	crossedDown := shortPrev >= longPrev && shortNow < longNow

	switch {
	case crossedUp && rsi < 70 && volRatio > volumeConfirm:
		return s.vote(Buy, scale(volRatio, volumeConfirm, 2.0, 65, 90), snap.LastPrice,
			fmt.Sprintf("bullish crossover confirmed: rsi=%.1f vol=%.2fx", rsi, volRatio)), nil

	case crossedDown && rsi > 30 && volRatio > volumeConfirm:
		return s.vote(Sell, scale(volRatio, volumeConfirm, 2.0, 65, 90), snap.LastPrice,
			fmt.Sprintf("bearish crossover confirmed: rsi=%.1f vol=%.2fx", rsi, volRatio)), nil

	case crossedUp:
		return s.vote(Buy, 60, snap.LastPrice,
			fmt.Sprintf("bullish crossover unconfirmed: rsi=%.1f vol=%.2fx", rsi, volRatio)), nil

	case crossedDown:
		return s.vote(Sell, 60, snap.LastPrice,
			fmt.Sprintf("bearish crossover unconfirmed: rsi=%.1f vol=%.2fx", rsi, volRatio)), nil

	// Persistent trend without a fresh cross, gated by RSI not sitting at
	// the opposite extreme.
	case shortNow > longNow*(1+trendBand) && rsi < 70:
		return s.vote(Buy, 55, snap.LastPrice,
			fmt.Sprintf("uptrend continuation: short/long=%.3f", shortNow/longNow)), nil

	case shortNow < longNow*(1-trendBand) && rsi > 30:
		return s.vote(Sell, 55, snap.LastPrice,
			fmt.Sprintf("downtrend continuation: short/long=%.3f", shortNow/longNow)), nil
	}

	return Vote{
		Direction: Hold,
		Rationale: fmt.Sprintf("no crossover: short=%.2f long=%.2f rsi=%.1f", shortNow, longNow, rsi),
	}, nil
}

func (s *MAMomentum) vote(dir Direction, strength, price float64, rationale string) Vote {
	v := Vote{Direction: dir, Strength: strength, Rationale: rationale}
	// Suggested protective levels around the signal price.
	if dir == Buy {
		v.StopLoss = price * 0.97
		v.TakeProfit = price * 1.06
	} else if dir == Sell {
		v.StopLoss = price * 1.03
		v.TakeProfit = price * 0.94
	}
	return v
}

func (s *MAMomentum) volumeRatio(history market.Series) float64 {
	if len(history) < 11 {
		return 1
	}
	current := history[len(history)-1].Volume
	avg := 0.0
	for _, b := range history[len(history)-11 : len(history)-1] {
		avg += b.Volume
	}
	avg /= 10
	if avg == 0 {
		return 1
	}
	return current / avg
}
