package db

import (
	"context"
	"errors"
	"testing"
)

func newTestDB(t *testing.T) *Queries {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database.Queries()
}

func TestSessionLifecycle(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	s := Session{ID: "sess-1", UserID: "alice", Instrument: "BTC-USDT", State: "STARTING", Notional: 100}
	if err := q.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := q.UpdateSessionState(ctx, "sess-1", "ACTIVE"); err != nil {
		t.Fatalf("UpdateSessionState: %v", err)
	}

	got, err := q.ActiveSessionByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ActiveSessionByUser: %v", err)
	}
	if got.State != "ACTIVE" || got.Instrument != "BTC-USDT" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := q.CloseSession(ctx, "sess-1", "user_requested", 3); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	if _, err := q.ActiveSessionByUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after close, got %v", err)
	}

	closed, err := q.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if closed.State != "CLOSED" || closed.StopReason != "user_requested" || closed.TradeCount != 3 {
		t.Errorf("unexpected closed session: %+v", closed)
	}
	if !closed.StoppedAt.Valid {
		t.Error("expected stopped_at to be set")
	}
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	q := newTestDB(t)

	err := q.CreateSession(context.Background(), Session{ID: "sess-1", Instrument: "BTC-USDT", State: "STARTING"})
	if !errors.Is(err, ErrUserIDRequired) {
		t.Errorf("expected ErrUserIDRequired, got %v", err)
	}

	_, err = q.ActiveSessionByUser(context.Background(), "")
	if !errors.Is(err, ErrUserIDRequired) {
		t.Errorf("expected ErrUserIDRequired, got %v", err)
	}
}

func TestUpdateMissingSession(t *testing.T) {
	q := newTestDB(t)

	if err := q.UpdateSessionState(context.Background(), "ghost", "ACTIVE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := q.CloseSession(context.Background(), "ghost", "x", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListNonClosedSessions(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	for _, s := range []Session{
		{ID: "sess-1", UserID: "alice", Instrument: "BTC-USDT", State: "ACTIVE", Notional: 100},
		{ID: "sess-2", UserID: "bob", Instrument: "ETH-USDT", State: "STARTING", Notional: 50},
		{ID: "sess-3", UserID: "carol", Instrument: "AAPL", State: "ACTIVE", Notional: 200},
	} {
		if err := q.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession %s: %v", s.ID, err)
		}
	}
	if err := q.CloseSession(ctx, "sess-3", "user_requested", 0); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	open, err := q.ListNonClosedSessions(ctx)
	if err != nil {
		t.Fatalf("ListNonClosedSessions: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open sessions, got %d", len(open))
	}
}

func TestPositionLifecycle(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	if err := q.CreateSession(ctx, Session{ID: "sess-1", UserID: "alice", Instrument: "BTC-USDT", State: "ACTIVE", Notional: 100}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	p := Position{
		ID: "pos-1", SessionID: "sess-1", Instrument: "BTC-USDT", Side: "BUY",
		Qty: 0.002, EntryPrice: 50_000, StopLoss: 47_500, TakeProfit: 55_000,
	}
	if err := q.InsertPosition(ctx, p); err != nil {
		t.Fatalf("InsertPosition: %v", err)
	}

	open, err := q.OpenPositionsBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("OpenPositionsBySession: %v", err)
	}
	if len(open) != 1 || open[0].StopLoss != 47_500 {
		t.Fatalf("unexpected open positions: %+v", open)
	}

	if err := q.ClosePosition(ctx, "pos-1", 55_100, "take_profit"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}

	open, err = q.OpenPositionsBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("OpenPositionsBySession: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open positions, got %d", len(open))
	}

	// Closing twice is a no-op that reports not found.
	if err := q.ClosePosition(ctx, "pos-1", 55_200, "stop_loss"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double close, got %v", err)
	}
}

func TestExecutions(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	if err := q.CreateSession(ctx, Session{ID: "sess-1", UserID: "alice", Instrument: "BTC-USDT", State: "ACTIVE", Notional: 100}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	execs := []Execution{
		{ID: "ex-1", SessionID: "sess-1", Instrument: "BTC-USDT", Venue: "binance", Side: "BUY", Status: "EXECUTED", Notional: 70, FilledQty: 0.0014, FillPrice: 50_000},
		{ID: "ex-2", SessionID: "sess-1", Instrument: "BTC-USDT", Venue: "kraken", Side: "BUY", Status: "SIMULATED", Notional: 30, FilledQty: 0.0006, FillPrice: 50_000, Reason: "insufficient_balance: available=0.00 required=30.00"},
	}
	for _, e := range execs {
		if err := q.InsertExecution(ctx, e); err != nil {
			t.Fatalf("InsertExecution %s: %v", e.ID, err)
		}
	}

	got, err := q.ExecutionsBySession(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("ExecutionsBySession: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(got))
	}
}
