package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"example.com/expense-agent/backend/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS expenses (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	merchant TEXT NOT NULL,
	amount_cents INTEGER NOT NULL CHECK (amount_cents >= 0),
	category TEXT NOT NULL,
	confidence REAL NOT NULL,
	description TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses (date, created_at);

CREATE TABLE IF NOT EXISTS memory_snapshots (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload BLOB NOT NULL,
	saved_at TEXT NOT NULL
);
`

// Open открывает локальную базу SQLite и применяет схему.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Один процесс, один пользователь: одного соединения достаточно,
	// и оно исключает SQLITE_BUSY на конкурентных запросах.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}
