// Package state persists the JSON object a plugin keeps per actor between
// invocations.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/mattjoyce/cmdgate/internal/storage"
)

const DefaultMaxStateBytes = 64 * 1024

type Store struct {
	db       *sql.DB
	maxBytes int
	now      func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, maxBytes: DefaultMaxStateBytes, now: time.Now}
}

// Get returns the state object of plugin for actor, or {} if none is stored.
func (s *Store) Get(ctx context.Context, plugin, actor string) (json.RawMessage, error) {
	if plugin == "" || actor == "" {
		return nil, fmt.Errorf("plugin and actor are required")
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM plugin_state WHERE plugin = ? AND actor = ?;", plugin, actor).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plugin state: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("stored state is invalid JSON for plugin=%q actor=%q", plugin, actor)
	}
	return json.RawMessage(raw), nil
}

// ShallowMerge replaces the top-level keys of the stored object with those in
// updates. A null value deletes the key. The merged object is returned.
func (s *Store) ShallowMerge(ctx context.Context, plugin, actor string, updates json.RawMessage) (json.RawMessage, error) {
	if plugin == "" || actor == "" {
		return nil, fmt.Errorf("plugin and actor are required")
	}
	upd, err := decodeObject(updates)
	if err != nil {
		return nil, fmt.Errorf("decode state_updates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var curRaw string
	err = tx.QueryRowContext(ctx,
		"SELECT state FROM plugin_state WHERE plugin = ? AND actor = ?;", plugin, actor).Scan(&curRaw)
	if errors.Is(err, sql.ErrNoRows) {
		curRaw = "{}"
	} else if err != nil {
		return nil, fmt.Errorf("read plugin state: %w", err)
	}
	cur, err := decodeObject(json.RawMessage(curRaw))
	if err != nil {
		return nil, fmt.Errorf("decode stored state: %w", err)
	}

	maps.Copy(cur, upd)
	maps.DeleteFunc(cur, func(_ string, v json.RawMessage) bool { return string(v) == "null" })

	merged, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal merged state: %w", err)
	}
	if len(merged) > s.maxBytes {
		return nil, fmt.Errorf("plugin state exceeds max size (%d bytes)", s.maxBytes)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO plugin_state(plugin, actor, state, updated_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(plugin, actor) DO UPDATE SET
  state = excluded.state,
  updated_at = excluded.updated_at;
`, plugin, actor, string(merged), s.now().UTC().Format(storage.TimeFormat))
	if err != nil {
		return nil, fmt.Errorf("upsert plugin state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return json.RawMessage(merged), nil
}

// Clear drops everything plugin stored for actor.
func (s *Store) Clear(ctx context.Context, plugin, actor string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM plugin_state WHERE plugin = ? AND actor = ?;", plugin, actor); err != nil {
		return fmt.Errorf("clear plugin state: %w", err)
	}
	return nil
}

func decodeObject(b json.RawMessage) (map[string]json.RawMessage, error) {
	if len(b) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	return m, nil
}
