package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"autotrader/internal/events"
	"autotrader/internal/market"
	"autotrader/internal/monitor"
	"autotrader/internal/order"
	"autotrader/internal/risk"
	"autotrader/internal/strategy"
	"autotrader/pkg/db"
)

// Store is what the orchestrator needs from persistence. *db.Queries
// satisfies it.
type Store interface {
	CreateSession(ctx context.Context, s db.Session) error
	UpdateSessionState(ctx context.Context, sessionID, state string) error
	CloseSession(ctx context.Context, sessionID, reason string, tradeCount int) error
	ActiveSessionByUser(ctx context.Context, userID string) (*db.Session, error)
	ListNonClosedSessions(ctx context.Context) ([]db.Session, error)
	InsertPosition(ctx context.Context, p db.Position) error
	ClosePosition(ctx context.Context, positionID string, closePrice float64, reason string) error
	InsertExecution(ctx context.Context, e db.Execution) error
}

// Config tunes the orchestrator.
type Config struct {
	TickInterval  time.Duration
	HistoryBars   int
	StopLossPct   float64
	TakeProfitPct float64
	// Notional is the per-decision order size in quote currency.
	Notional float64
	// Instrument is used when a start request does not name one.
	Instrument string
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  10 * time.Second,
		HistoryBars:   60,
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
		Notional:      100,
		Instrument:    "BTC-USDT",
	}
}

// Orchestrator runs the per-user session lifecycle: start, ticks, stop.
type Orchestrator struct {
	cfg      Config
	registry *Registry
	store    Store
	gate     SubscriptionGate
	provider market.Provider
	router   *order.Router
	// paperRouter handles ModePaper sessions; falls back to router.
	paperRouter *order.Router
	evaluators  []strategy.WeightedEvaluator
	bus         *events.Bus
	metrics     *monitor.Metrics

	// userMu serializes start/stop per user so concurrent starts cannot
	// both install a session.
	userMu   sync.Mutex
	userLock map[string]*sync.Mutex

	baseCtx context.Context
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store       Store
	Gate        SubscriptionGate
	Provider    market.Provider
	Router      *order.Router
	PaperRouter *order.Router
	Evaluators  []strategy.WeightedEvaluator
	Bus         *events.Bus
	Metrics     *monitor.Metrics
}

func NewOrchestrator(ctx context.Context, cfg Config, deps Deps) *Orchestrator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 60
	}
	if deps.Gate == nil {
		deps.Gate = AllowAll{}
	}
	if deps.PaperRouter == nil {
		deps.PaperRouter = deps.Router
	}
	if deps.Metrics == nil {
		deps.Metrics = monitor.NewMetrics()
	}
	return &Orchestrator{
		cfg:         cfg,
		registry:    NewRegistry(),
		store:       deps.Store,
		gate:        deps.Gate,
		provider:    deps.Provider,
		router:      deps.Router,
		paperRouter: deps.PaperRouter,
		evaluators:  deps.Evaluators,
		bus:         deps.Bus,
		metrics:     deps.Metrics,
		userLock:    make(map[string]*sync.Mutex),
		baseCtx:     ctx,
	}
}

func (o *Orchestrator) lockUser(userKey string) *sync.Mutex {
	o.userMu.Lock()
	mu, ok := o.userLock[userKey]
	if !ok {
		mu = &sync.Mutex{}
		o.userLock[userKey] = mu
	}
	o.userMu.Unlock()
	mu.Lock()
	return mu
}

// ActiveSessions reports how many sessions are live.
func (o *Orchestrator) ActiveSessions() int { return o.registry.Len() }

// StartResult is returned by a successful StartSession.
type StartResult struct {
	SessionID        string     `json:"session_id"`
	InitialPositions []Position `json:"initial_positions"`
}

// StartSession creates and activates a session for the user. Any prior
// session for the same user, in memory or persisted, is stopped or
// force-closed first so that at most one non-CLOSED session exists per
// user.
func (o *Orchestrator) StartSession(ctx context.Context, userKey, instrument string, mode Mode) (StartResult, error) {
	if userKey == "" {
		return StartResult{}, fmt.Errorf("user key is empty")
	}
	if err := o.gate.CheckAccess(ctx, userKey); err != nil {
		return StartResult{}, err
	}
	mu := o.lockUser(userKey)
	defer mu.Unlock()
	if instrument == "" {
		instrument = o.cfg.Instrument
	}
	if mode == "" {
		mode = ModeLive
	}

	// A live in-memory session for this user is stopped, not rejected.
	if prior, ok := o.registry.Get(userKey); ok {
		log.Warn().
			Str("user", userKey).
			Str("session", prior.ID).
			Msg("⚠️ start requested with a live session, stopping the prior one")
		o.stopSession(ctx, prior, "superseded")
	}

	// A persisted non-CLOSED session with no in-memory owner is an orphan
	// from a previous process. Force-close it before starting.
	if persisted, err := o.store.ActiveSessionByUser(ctx, userKey); err == nil {
		log.Warn().
			Str("user", userKey).
			Str("session", persisted.ID).
			Msg("⚠️ orphaned session found, force-closing")
		if err := o.persistRetry(func() error {
			return o.store.CloseSession(ctx, persisted.ID, "orphaned", persisted.TradeCount)
		}); err != nil {
			return StartResult{}, fmt.Errorf("force-close orphaned session: %w", err)
		}
	} else if !errors.Is(err, db.ErrNotFound) {
		return StartResult{}, fmt.Errorf("look up persisted session: %w", err)
	}

	s := newSession(uuid.NewString(), userKey, instrument, mode, o.cfg.Notional)
	if err := o.persistRetry(func() error {
		return o.store.CreateSession(ctx, db.Session{
			ID:         s.ID,
			UserID:     userKey,
			Instrument: instrument,
			State:      string(StateStarting),
			Notional:   s.Notional,
		})
	}); err != nil {
		return StartResult{}, fmt.Errorf("persist session: %w", err)
	}
	o.registry.Put(s)

	// Immediate first cycle so the caller sees initial positions.
	o.runTick(o.baseCtx, s)

	s.mu.Lock()
	s.state = StateActive
	initial := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		initial = append(initial, *p)
	}
	s.mu.Unlock()
	if err := o.persistRetry(func() error {
		return o.store.UpdateSessionState(ctx, s.ID, string(StateActive))
	}); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("persist ACTIVE state failed")
	}

	tickCtx, cancel := context.WithCancel(o.baseCtx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go o.tickLoop(tickCtx, s)

	log.Info().
		Str("user", userKey).
		Str("session", s.ID).
		Str("instrument", instrument).
		Str("mode", string(mode)).
		Int("initial_positions", len(initial)).
		Msg("🚀 session started")
	o.publish(events.EventSessionStarted, s.ID)

	return StartResult{SessionID: s.ID, InitialPositions: initial}, nil
}

// StopSession stops the user's session. Stopping a user without a live
// session is not an error: a defined "no active session" summary comes
// back instead.
func (o *Orchestrator) StopSession(ctx context.Context, userKey string) (Summary, error) {
	mu := o.lockUser(userKey)
	defer mu.Unlock()

	s, ok := o.registry.Get(userKey)
	if !ok {
		return Summary{NoActiveSession: true}, nil
	}
	return o.stopSession(ctx, s, "user_requested"), nil
}

// SessionStatus reports the user's session, or an inactive status when
// none exists.
func (o *Orchestrator) SessionStatus(userKey string) Status {
	s, ok := o.registry.Get(userKey)
	if !ok {
		return Status{Active: false}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// StopAll stops every live session, for graceful shutdown.
func (o *Orchestrator) StopAll(ctx context.Context, reason string) {
	for _, s := range o.registry.All() {
		o.stopSession(ctx, s, reason)
	}
}

func (o *Orchestrator) stopSession(ctx context.Context, s *Session, reason string) Summary {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return Summary{NoActiveSession: true, SessionID: s.ID}
	}
	s.state = StateStopping
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if err := o.persistRetry(func() error {
		return o.store.UpdateSessionState(ctx, s.ID, string(StateStopping))
	}); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("persist STOPPING state failed")
	}

	// Best-effort close of all open positions. Failures are logged and do
	// not block session closure.
	price := o.lastPrice(ctx, s.Instrument)
	s.mu.Lock()
	for _, p := range s.positions {
		o.closePositionLocked(ctx, s, p, price, "session_stop")
	}
	s.positions = nil
	s.state = StateClosed
	summary := Summary{
		SessionID:       s.ID,
		FinalPnL:        s.realizedPnL,
		TradesExecuted:  s.tradeCount,
		DurationSeconds: time.Since(s.startedAt).Seconds(),
		Reason:          reason,
	}
	tradeCount := s.tradeCount
	s.mu.Unlock()

	if err := o.persistRetry(func() error {
		return o.store.CloseSession(ctx, s.ID, reason, tradeCount)
	}); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("persist CLOSED state failed")
	}

	o.registry.Remove(s)
	log.Info().
		Str("user", s.UserKey).
		Str("session", s.ID).
		Str("reason", reason).
		Float64("pnl", summary.FinalPnL).
		Int("trades", summary.TradesExecuted).
		Msg("🛑 session stopped")
	o.publish(events.EventSessionStopped, s.ID)

	return summary
}

func (o *Orchestrator) tickLoop(ctx context.Context, s *Session) {
	defer close(s.done)
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runTick(ctx, s)
		}
	}
}

// runTick performs one evaluation and dispatch cycle. The session lock is
// held for the whole cycle so ticks are strictly serialized and a stop
// cannot interleave mid-cycle.
func (o *Orchestrator) runTick(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarting && s.state != StateActive {
		return
	}
	if ctx.Err() != nil {
		return
	}
	o.metrics.IncrementTicks()

	snap, err := o.provider.GetSnapshot(ctx, s.Instrument)
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("snapshot unavailable, tick skipped")
		o.metrics.IncrementErrors()
		return
	}
	history, err := o.provider.GetHistory(ctx, s.Instrument, o.cfg.HistoryBars)
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("history unavailable, tick skipped")
		o.metrics.IncrementErrors()
		return
	}

	timer := monitor.NewTimer(o.metrics.EvalLatency)
	results := make([]strategy.EvalResult, 0, len(o.evaluators))
	for _, we := range o.evaluators {
		results = append(results, strategy.Evaluate(we.Evaluator, we.Weight, snap, history))
	}
	decision := strategy.Aggregate(snap.LastPrice, results)
	timer.Stop()
	o.publish(events.EventSignal, decision)

	// Protective levels first: an exit decision must not be starved by a
	// same-tick entry.
	o.checkProtectiveLocked(ctx, s, snap.LastPrice)

	if decision.Direction == strategy.Hold {
		return
	}
	o.metrics.IncrementSignals()

	// Cancellation boundary: never start a dispatch for a stopping session.
	if ctx.Err() != nil || (s.state != StateStarting && s.state != StateActive) {
		return
	}

	side := order.SideBuy
	if decision.Direction == strategy.Sell {
		side = order.SideSell
	}
	o.openPositionLocked(ctx, s, side, snap.LastPrice, decision.Rationale)
}

// openPositionLocked dispatches an entry order and opens one position per
// filled leg. Callers hold s.mu.
func (o *Orchestrator) openPositionLocked(ctx context.Context, s *Session, side order.Side, price float64, rationale string) {
	intent := order.Intent{Instrument: s.Instrument, Side: side, Notional: s.Notional}

	timer := monitor.NewTimer(o.metrics.RouteLatency)
	results, err := o.routerFor(s.Mode).Dispatch(ctx, intent, price)
	timer.Stop()
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("dispatch failed")
		o.metrics.IncrementErrors()
		return
	}
	o.metrics.IncrementOrders()

	levels, err := risk.Compute(side, price, o.cfg.StopLossPct, o.cfg.TakeProfitPct)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("protective levels rejected, entry skipped")
		return
	}

	for _, res := range results {
		o.recordExecution(ctx, s, intent, res)
		if res.Status == order.StatusRejected || res.FilledQty <= 0 {
			continue
		}
		if res.Status == order.StatusSimulated {
			o.metrics.IncrementSimulated()
		}

		p := &Position{
			ID:         uuid.NewString(),
			Instrument: s.Instrument,
			Side:       side,
			EntryPrice: res.FillPrice,
			Qty:        res.FilledQty,
			Venue:      res.Venue,
			Levels:     levels,
			OpenedAt:   time.Now(),
		}
		s.positions = append(s.positions, p)
		s.tradeCount++

		if err := o.persistRetry(func() error {
			return o.store.InsertPosition(ctx, db.Position{
				ID: p.ID, SessionID: s.ID, Instrument: p.Instrument,
				Side: string(p.Side), Qty: p.Qty, EntryPrice: p.EntryPrice,
				StopLoss: levels.StopLoss, TakeProfit: levels.TakeProfit,
			})
		}); err != nil {
			log.Error().Err(err).Str("position", p.ID).Msg("persist position failed")
		}

		log.Info().
			Str("session", s.ID).
			Str("venue", p.Venue).
			Str("side", string(side)).
			Str("status", string(res.Status)).
			Float64("qty", p.Qty).
			Float64("price", p.EntryPrice).
			Str("rationale", rationale).
			Msg("📈 position opened")
	}
}

// checkProtectiveLocked closes positions whose stop loss or take profit
// has been crossed. Callers hold s.mu.
func (o *Orchestrator) checkProtectiveLocked(ctx context.Context, s *Session, price float64) {
	remaining := s.positions[:0]
	for _, p := range s.positions {
		trigger := risk.Check(p.Side, p.Levels, price)
		if trigger == risk.TriggerNone {
			remaining = append(remaining, p)
			continue
		}
		log.Info().
			Str("session", s.ID).
			Str("position", p.ID).
			Str("trigger", string(trigger)).
			Float64("price", price).
			Msg("protective level hit")
		o.closePositionLocked(ctx, s, p, price, string(trigger))
	}
	s.positions = remaining
}

// closePositionLocked issues the closing order through the same
// router/guard path and books realized PnL. Callers hold s.mu and are
// responsible for removing p from s.positions.
func (o *Orchestrator) closePositionLocked(ctx context.Context, s *Session, p *Position, price float64, reason string) {
	if price <= 0 {
		price = p.EntryPrice
	}
	intent := order.Intent{
		Instrument: p.Instrument,
		Side:       p.Side.Opposite(),
		Notional:   p.Qty * price,
	}
	results, err := o.routerFor(s.Mode).Dispatch(ctx, intent, price)
	if err != nil {
		log.Warn().Err(err).Str("position", p.ID).Msg("closing dispatch failed, position closed on books only")
	} else {
		for _, res := range results {
			o.recordExecution(ctx, s, intent, res)
		}
	}

	pnl := (price - p.EntryPrice) * p.Qty
	if p.Side == order.SideSell {
		pnl = -pnl
	}
	s.realizedPnL += pnl

	if err := o.persistRetry(func() error {
		return o.store.ClosePosition(ctx, p.ID, price, reason)
	}); err != nil {
		log.Error().Err(err).Str("position", p.ID).Msg("persist position close failed")
	}
	o.publish(events.EventPositionClosed, p.ID)
}

func (o *Orchestrator) recordExecution(ctx context.Context, s *Session, intent order.Intent, res order.ExecutionResult) {
	o.publish(events.EventExecution, res)
	if err := o.persistRetry(func() error {
		return o.store.InsertExecution(ctx, db.Execution{
			ID: uuid.NewString(), SessionID: s.ID, Instrument: intent.Instrument,
			Venue: res.Venue, Side: string(intent.Side), Status: string(res.Status),
			Notional: intent.Notional, FilledQty: res.FilledQty,
			FillPrice: res.FillPrice, Reason: res.Reason,
		})
	}); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("persist execution failed")
	}
}

func (o *Orchestrator) routerFor(mode Mode) *order.Router {
	if mode == ModePaper {
		return o.paperRouter
	}
	return o.router
}

func (o *Orchestrator) lastPrice(ctx context.Context, instrument string) float64 {
	snap, err := o.provider.GetSnapshot(ctx, instrument)
	if err != nil {
		log.Warn().Err(err).Str("instrument", instrument).Msg("no price for close, using entry")
		return 0
	}
	return snap.LastPrice
}

// persistRetry runs fn and retries once on failure.
func (o *Orchestrator) persistRetry(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("persistence failed, retrying once")
	return fn()
}

func (o *Orchestrator) publish(e events.Event, payload any) {
	if o.bus != nil {
		o.bus.Publish(e, payload)
	}
}

// Metrics exposes the metrics instance for the API layer.
func (o *Orchestrator) Metrics() *monitor.Metrics { return o.metrics }
