package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"autotrader/internal/order"
)

// SimConfig tunes the paper venue.
type SimConfig struct {
	FeeRate      float64 // decimal, e.g. 0.001 = 10 bps
	SlippageBps  float64 // basis points of adverse slippage on fills
	LatencyMinMs int
	LatencyMaxMs int
	MinNotional  float64
}

// Sim is an in-memory paper venue. It tracks balances, applies fees and
// slippage, and can be told to fail so that the guard's degradation paths
// are exercisable in tests and demo runs.
type Sim struct {
	name string
	cfg  SimConfig

	mu       sync.Mutex
	balances map[string]float64
	rng      *rand.Rand

	balanceErr error
	placeErr   error
	balanceLag time.Duration
}

func NewSim(name string, cfg SimConfig) *Sim {
	if cfg.LatencyMaxMs > 0 && cfg.LatencyMinMs > cfg.LatencyMaxMs {
		cfg.LatencyMinMs, cfg.LatencyMaxMs = cfg.LatencyMaxMs, cfg.LatencyMinMs
	}
	return &Sim{
		name:     name,
		cfg:      cfg,
		balances: make(map[string]float64),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Sim) Name() string { return s.name }

func (s *Sim) MinNotional() float64 { return s.cfg.MinNotional }

// Deposit credits an asset balance.
func (s *Sim) Deposit(asset string, amount float64) {
	s.mu.Lock()
	s.balances[asset] += amount
	s.mu.Unlock()
}

// FailBalance makes every balance call return err (nil clears it).
func (s *Sim) FailBalance(err error) {
	s.mu.Lock()
	s.balanceErr = err
	s.mu.Unlock()
}

// FailPlace makes every placement return err (nil clears it).
func (s *Sim) FailPlace(err error) {
	s.mu.Lock()
	s.placeErr = err
	s.mu.Unlock()
}

// DelayBalance adds a fixed delay to balance fetches, for timeout testing.
func (s *Sim) DelayBalance(d time.Duration) {
	s.mu.Lock()
	s.balanceLag = d
	s.mu.Unlock()
}

func (s *Sim) Balance(ctx context.Context, asset string) (float64, error) {
	s.mu.Lock()
	lag := s.balanceLag
	failErr := s.balanceErr
	s.mu.Unlock()

	if lag > 0 {
		select {
		case <-time.After(lag):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if failErr != nil {
		return 0, failErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[asset], nil
}

func (s *Sim) PlaceMarketOrder(ctx context.Context, symbol string, side order.Side, notional, price float64) (Fill, error) {
	if err := s.sleepLatency(ctx); err != nil {
		return Fill{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placeErr != nil {
		return Fill{}, s.placeErr
	}
	if price <= 0 {
		return Fill{}, fmt.Errorf("sim %s: no price for %s", s.name, symbol)
	}

	// Adverse slippage: buys fill above the quote, sells below.
	fillPrice := price
	if frac := s.cfg.SlippageBps / 10_000; frac > 0 {
		noise := s.rng.Float64() * frac
		if side == order.SideBuy {
			fillPrice *= 1 + noise
		} else {
			fillPrice *= 1 - noise
		}
	}

	cost := notional * (1 + s.cfg.FeeRate)
	asset := simQuoteAsset(symbol)
	if side == order.SideBuy {
		if s.balances[asset] < cost {
			return Fill{}, fmt.Errorf("sim %s: balance %.2f %s below cost %.2f", s.name, s.balances[asset], asset, cost)
		}
		s.balances[asset] -= cost
	} else {
		s.balances[asset] += notional * (1 - s.cfg.FeeRate)
	}

	return Fill{
		Symbol: symbol,
		Qty:    notional / fillPrice,
		Price:  fillPrice,
	}, nil
}

func (s *Sim) sleepLatency(ctx context.Context) error {
	if s.cfg.LatencyMaxMs <= 0 {
		return nil
	}
	min := s.cfg.LatencyMinMs
	if min < 0 {
		min = 0
	}
	delayMs := min
	if span := s.cfg.LatencyMaxMs - min; span > 0 {
		s.mu.Lock()
		delayMs += s.rng.Intn(span + 1)
		s.mu.Unlock()
	}
	if delayMs == 0 {
		return nil
	}
	select {
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// simQuoteAsset mirrors the venue-side symbol shapes the manager emits
// (BTCUSDT, XBT/USD, bare tickers).
func simQuoteAsset(symbol string) string {
	for _, q := range []string{"USDT", "USDC", "USD"} {
		if len(symbol) > len(q) && symbol[len(symbol)-len(q):] == q {
			return q
		}
	}
	return "USD"
}
