package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrUserIDRequired = errors.New("user_id is required")
	ErrNotFound       = errors.New("record not found")
)

// Queries is the persistence layer for sessions, positions and executions.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ----------------------------------------
// Session queries
// ----------------------------------------

// CreateSession inserts a new session row.
func (q *Queries) CreateSession(ctx context.Context, s Session) error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, instrument, state, notional)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Instrument, s.State, s.Notional)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionState moves a session to a new state.
func (q *Queries) UpdateSessionState(ctx context.Context, sessionID, state string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET state = ? WHERE id = ?
	`, state, sessionID)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseSession marks a session closed with a reason and final trade count.
func (q *Queries) CloseSession(ctx context.Context, sessionID, reason string, tradeCount int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sessions
		SET state = 'CLOSED', stop_reason = ?, trade_count = ?, stopped_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, reason, tradeCount, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveSessionByUser returns the user's non-closed session, or ErrNotFound.
func (q *Queries) ActiveSessionByUser(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, instrument, state, notional, trade_count, stop_reason, started_at, stopped_at
		FROM sessions
		WHERE user_id = ? AND state != 'CLOSED'
		ORDER BY started_at DESC
		LIMIT 1
	`, userID)
	return scanSession(row)
}

// GetSession returns a session by id, or ErrNotFound.
func (q *Queries) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, instrument, state, notional, trade_count, stop_reason, started_at, stopped_at
		FROM sessions
		WHERE id = ?
	`, sessionID)
	return scanSession(row)
}

// ListNonClosedSessions returns every session not yet closed, for boot-time
// reconciliation.
func (q *Queries) ListNonClosedSessions(ctx context.Context) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, instrument, state, notional, trade_count, stop_reason, started_at, stopped_at
		FROM sessions
		WHERE state != 'CLOSED'
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Instrument, &s.State, &s.Notional,
			&s.TradeCount, &s.StopReason, &s.StartedAt, &s.StoppedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Instrument, &s.State, &s.Notional,
		&s.TradeCount, &s.StopReason, &s.StartedAt, &s.StoppedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// ----------------------------------------
// Position queries
// ----------------------------------------

// InsertPosition records a newly opened position.
func (q *Queries) InsertPosition(ctx context.Context, p Position) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO positions (id, session_id, instrument, side, qty, entry_price, stop_loss, take_profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SessionID, p.Instrument, p.Side, p.Qty, p.EntryPrice, p.StopLoss, p.TakeProfit)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// ClosePosition marks a position closed at a price with a reason.
func (q *Queries) ClosePosition(ctx context.Context, positionID string, closePrice float64, reason string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE positions
		SET close_price = ?, close_reason = ?, closed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND closed_at IS NULL
	`, closePrice, reason, positionID)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenPositionsBySession returns positions not yet closed for a session.
func (q *Queries) OpenPositionsBySession(ctx context.Context, sessionID string) ([]Position, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, session_id, instrument, side, qty, entry_price, stop_loss, take_profit,
		       close_price, close_reason, opened_at, closed_at
		FROM positions
		WHERE session_id = ? AND closed_at IS NULL
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Instrument, &p.Side, &p.Qty, &p.EntryPrice,
			&p.StopLoss, &p.TakeProfit, &p.ClosePrice, &p.CloseReason, &p.OpenedAt, &p.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ----------------------------------------
// Execution queries
// ----------------------------------------

// InsertExecution records one venue leg result.
func (q *Queries) InsertExecution(ctx context.Context, e Execution) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO executions (id, session_id, instrument, venue, side, status, notional, filled_qty, fill_price, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Instrument, e.Venue, e.Side, e.Status, e.Notional, e.FilledQty, e.FillPrice, e.Reason)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// ExecutionsBySession returns a session's executions, newest first.
func (q *Queries) ExecutionsBySession(ctx context.Context, sessionID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, session_id, instrument, venue, side, status, notional, filled_qty, fill_price, reason, created_at
		FROM executions
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Instrument, &e.Venue, &e.Side, &e.Status,
			&e.Notional, &e.FilledQty, &e.FillPrice, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}
