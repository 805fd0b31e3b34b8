package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattjoyce/cmdgate/internal/storage"
)

// KitStore persists the kits each actor has created.
type KitStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewKitStore(db *sql.DB) *KitStore {
	return &KitStore{db: db, now: time.Now}
}

// Create adds a kit and reports false when the actor already has one by that
// name.
func (s *KitStore) Create(ctx context.Context, actor, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO kits(actor, name, created_at)
VALUES(?, ?, ?);
`, actor, name, s.now().UTC().Format(storage.TimeFormat))
	if err != nil {
		return false, fmt.Errorf("insert kit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert kit: %w", err)
	}
	return n == 1, nil
}

// Exists reports whether the actor has a kit named name.
func (s *KitStore) Exists(ctx context.Context, actor, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kits WHERE actor = ? AND name = ?;", actor, name).Scan(&n); err != nil {
		return false, fmt.Errorf("count kits: %w", err)
	}
	return n > 0, nil
}

// List returns the actor's kit names in alphabetical order.
func (s *KitStore) List(ctx context.Context, actor string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM kits WHERE actor = ? ORDER BY name;", actor)
	if err != nil {
		return nil, fmt.Errorf("list kits: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Remove deletes a kit and reports whether it existed.
func (s *KitStore) Remove(ctx context.Context, actor, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM kits WHERE actor = ? AND name = ?;", actor, name)
	if err != nil {
		return false, fmt.Errorf("delete kit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete kit: %w", err)
	}
	return n == 1, nil
}
