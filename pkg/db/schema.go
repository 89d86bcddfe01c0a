package db

import (
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    instrument TEXT NOT NULL,
    state TEXT NOT NULL,
    notional REAL NOT NULL,
    trade_count INTEGER DEFAULT 0,
    stop_reason TEXT DEFAULT '',
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    stopped_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_state ON sessions(user_id, state);

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    instrument TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    entry_price REAL NOT NULL,
    stop_loss REAL DEFAULT 0,
    take_profit REAL DEFAULT 0,
    close_price REAL DEFAULT 0,
    close_reason TEXT DEFAULT '',
    opened_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    closed_at DATETIME,
    FOREIGN KEY(session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS idx_positions_session ON positions(session_id);

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    instrument TEXT NOT NULL,
    venue TEXT NOT NULL,
    side TEXT NOT NULL,
    status TEXT NOT NULL,
    notional REAL NOT NULL,
    filled_qty REAL DEFAULT 0,
    fill_price REAL DEFAULT 0,
    reason TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY(session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS idx_executions_session ON executions(session_id);
`

// ApplyMigrations creates the schema if missing.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
