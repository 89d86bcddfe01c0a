package db

import (
	"database/sql"
	"time"
)

// Session is a persisted trading session row.
type Session struct {
	ID         string
	UserID     string
	Instrument string
	State      string
	Notional   float64
	TradeCount int
	StopReason string
	StartedAt  time.Time
	StoppedAt  sql.NullTime
}

// Position is a persisted position row.
type Position struct {
	ID          string
	SessionID   string
	Instrument  string
	Side        string
	Qty         float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	ClosePrice  float64
	CloseReason string
	OpenedAt    time.Time
	ClosedAt    sql.NullTime
}

// Execution is one venue leg result, real or simulated.
type Execution struct {
	ID         string
	SessionID  string
	Instrument string
	Venue      string
	Side       string
	Status     string
	Notional   float64
	FilledQty  float64
	FillPrice  float64
	Reason     string
	CreatedAt  time.Time
}
