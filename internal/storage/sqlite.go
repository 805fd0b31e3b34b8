package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TimeFormat is the layout of every timestamp column.
const TimeFormat = time.RFC3339Nano

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps balance updates serialized without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cooldowns (
  command      TEXT NOT NULL,
  actor        TEXT NOT NULL,
  last_success TEXT NOT NULL,
  PRIMARY KEY (command, actor)
);`,
		`CREATE TABLE IF NOT EXISTS balances (
  actor      TEXT PRIMARY KEY,
  balance    REAL NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS kits (
  actor      TEXT NOT NULL,
  name       TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY (actor, name)
);`,
		`CREATE TABLE IF NOT EXISTS command_log (
  id            TEXT PRIMARY KEY,
  invocation_id TEXT NOT NULL,
  command       TEXT NOT NULL,
  actor         TEXT NOT NULL,
  actor_kind    TEXT NOT NULL,
  executor      TEXT NOT NULL,
  outcome       TEXT NOT NULL,
  message       TEXT,
  error         TEXT,
  started_at    TEXT NOT NULL,
  completed_at  TEXT NOT NULL,
  duration_ms   INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS plugin_state (
  plugin     TEXT NOT NULL,
  actor      TEXT NOT NULL,
  state      TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (plugin, actor)
);`,
		`CREATE INDEX IF NOT EXISTS command_log_command_completed_at_idx ON command_log(command, completed_at);`,
		`CREATE INDEX IF NOT EXISTS command_log_actor_idx ON command_log(actor);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
