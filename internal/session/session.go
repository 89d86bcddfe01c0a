// Package session owns the per-user trading session lifecycle: the state
// machine, the registry, the tick loop and restart reconciliation.
package session

import (
	"errors"
	"sync"
	"time"

	"autotrader/internal/order"
	"autotrader/internal/risk"
)

var (
	// ErrNoActiveSession marks the defined "nothing to do" outcome of a
	// stop or status call for a user without a live session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrAccessDenied wraps subscription gate refusals.
	ErrAccessDenied = errors.New("access_denied")
)

// State is the session lifecycle state.
type State string

const (
	StateStarting State = "STARTING"
	StateActive   State = "ACTIVE"
	StateStopping State = "STOPPING"
	StateClosed   State = "CLOSED"
)

// Mode selects how fills are taken.
type Mode string

const (
	// ModeLive places real orders when the balance guard allows it.
	ModeLive Mode = "live"
	// ModePaper forces every fill through the simulated path.
	ModePaper Mode = "paper"
)

// Position is one open position inside a session.
type Position struct {
	ID         string
	Instrument string
	Side       order.Side
	EntryPrice float64
	Qty        float64
	Venue      string
	Levels     risk.Levels
	OpenedAt   time.Time
}

// Session is the in-memory view of one user's trading session. Ticks for a
// session are serialized under mu; state transitions hold mu as well so a
// stop cannot interleave with an in-flight tick.
type Session struct {
	ID         string
	UserKey    string
	Instrument string
	Mode       Mode
	Notional   float64

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	positions   []*Position
	realizedPnL float64
	tradeCount  int

	cancel func()
	done   chan struct{}
}

func newSession(id, userKey, instrument string, mode Mode, notional float64) *Session {
	return &Session{
		ID:         id,
		UserKey:    userKey,
		Instrument: instrument,
		Mode:       mode,
		Notional:   notional,
		state:      StateStarting,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is a point-in-time external view of a session.
type Status struct {
	Active      bool       `json:"active"`
	SessionID   string     `json:"session_id,omitempty"`
	State       State      `json:"state,omitempty"`
	Instrument  string     `json:"instrument,omitempty"`
	Positions   []Position `json:"positions,omitempty"`
	RealizedPnL float64    `json:"realized_pnl"`
	TradeCount  int        `json:"trade_count"`
}

// snapshotLocked builds a Status; callers hold s.mu.
func (s *Session) snapshotLocked() Status {
	positions := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, *p)
	}
	return Status{
		Active:      s.state == StateActive || s.state == StateStarting,
		SessionID:   s.ID,
		State:       s.state,
		Instrument:  s.Instrument,
		Positions:   positions,
		RealizedPnL: s.realizedPnL,
		TradeCount:  s.tradeCount,
	}
}

// Summary is the final accounting returned by a stop.
type Summary struct {
	SessionID       string  `json:"session_id,omitempty"`
	FinalPnL        float64 `json:"final_pnl"`
	TradesExecuted  int     `json:"trades_executed"`
	DurationSeconds float64 `json:"duration_seconds"`
	Reason          string  `json:"reason,omitempty"`
	NoActiveSession bool    `json:"no_active_session,omitempty"`
}
