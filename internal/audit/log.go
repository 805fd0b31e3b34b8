// Package audit keeps a durable record of every resolved invocation in the
// command_log table and mirrors start/finish onto the event hub.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/cmdgate/internal/storage"
)

const maxMessageBytes = 4 * 1024

// Entry is one command_log row.
type Entry struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Command      string    `json:"command"`
	Actor        string    `json:"actor"`
	ActorKind    string    `json:"actor_kind"`
	Executor     string    `json:"executor"`
	Outcome      string    `json:"outcome"`
	Message      string    `json:"message,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMS   int64     `json:"duration_ms"`
}

// Filter narrows Recent. Empty fields match everything.
type Filter struct {
	Command string
	Actor   string
	Limit   int
}

type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append writes e, assigning an ID when it has none.
func (l *Log) Append(ctx context.Context, e Entry) (string, error) {
	if e.InvocationID == "" {
		return "", fmt.Errorf("invocation id is empty")
	}
	if e.Command == "" {
		return "", fmt.Errorf("command is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	msg := e.Message
	if len(msg) > maxMessageBytes {
		msg = msg[:maxMessageBytes]
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO command_log(
  id, invocation_id, command, actor, actor_kind, executor, outcome, message, error,
  started_at, completed_at, duration_ms
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.InvocationID, e.Command, e.Actor, e.ActorKind, e.Executor, e.Outcome, nullable(msg), nullable(e.Error),
		e.StartedAt.UTC().Format(storage.TimeFormat), e.CompletedAt.UTC().Format(storage.TimeFormat), e.DurationMS)
	if err != nil {
		return "", fmt.Errorf("insert command_log: %w", err)
	}
	return e.ID, nil
}

// Recent returns the newest entries first.
func (l *Log) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, invocation_id, command, actor, actor_kind, executor, outcome,
       COALESCE(message, ''), COALESCE(error, ''), started_at, completed_at, duration_ms
FROM command_log
WHERE (? = '' OR command = ?) AND (? = '' OR actor = ?)
ORDER BY completed_at DESC, id
LIMIT ?;
`, f.Command, f.Command, f.Actor, f.Actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query command_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			started, completed string
		)
		if err := rows.Scan(&e.ID, &e.InvocationID, &e.Command, &e.Actor, &e.ActorKind, &e.Executor, &e.Outcome,
			&e.Message, &e.Error, &started, &completed, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan command_log: %w", err)
		}
		if e.StartedAt, err = time.Parse(storage.TimeFormat, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if e.CompletedAt, err = time.Parse(storage.TimeFormat, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
