// Package cooldown persists the time of each actor's last successful run of
// a command.
package cooldown

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/cmdgate/internal/storage"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now().UTC() }

// LastSuccess returns when actor last completed command.
func (s *Store) LastSuccess(ctx context.Context, command, actor string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_success FROM cooldowns WHERE command = ? AND actor = ?;", command, actor).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read cooldown: %w", err)
	}
	at, err := time.Parse(storage.TimeFormat, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cooldown timestamp %q: %w", raw, err)
	}
	return at, true, nil
}

// Remaining returns how long actor must still wait before running command
// again under window. Zero means ready.
func (s *Store) Remaining(ctx context.Context, command, actor string, window time.Duration) (time.Duration, error) {
	if window <= 0 {
		return 0, nil
	}
	last, ok, err := s.LastSuccess(ctx, command, actor)
	if err != nil || !ok {
		return 0, err
	}
	left := last.Add(window).Sub(s.Now())
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// Record stores now as the last success of command by actor.
func (s *Store) Record(ctx context.Context, command, actor string) (time.Time, error) {
	now := s.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cooldowns(command, actor, last_success)
VALUES(?, ?, ?)
ON CONFLICT(command, actor) DO UPDATE SET
  last_success = excluded.last_success;
`, command, actor, now.Format(storage.TimeFormat))
	if err != nil {
		return time.Time{}, fmt.Errorf("record cooldown: %w", err)
	}
	return now, nil
}

// Clear forgets the last success of command by actor.
func (s *Store) Clear(ctx context.Context, command, actor string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cooldowns WHERE command = ? AND actor = ?;", command, actor); err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	return nil
}

// Record is one command's last success for an actor.
type Record struct {
	Command     string
	LastSuccess time.Time
}

// History lists every recorded success of actor, ordered by command.
func (s *Store) History(ctx context.Context, actor string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT command, last_success FROM cooldowns WHERE actor = ? ORDER BY command;", actor)
	if err != nil {
		return nil, fmt.Errorf("list cooldowns: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			raw string
		)
		if err := rows.Scan(&r.Command, &raw); err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		if r.LastSuccess, err = time.Parse(storage.TimeFormat, raw); err != nil {
			return nil, fmt.Errorf("parse cooldown timestamp %q: %w", raw, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
