// Package economy keeps actor balances for commands that cost something.
package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/cmdgate/internal/storage"
)

// ErrInsufficientFunds is returned when a withdrawal exceeds the balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Store persists balances. Actors without a row hold the starting balance.
type Store struct {
	db       *sql.DB
	starting float64
	now      func() time.Time
}

func NewStore(db *sql.DB, startingBalance float64) *Store {
	return &Store{db: db, starting: startingBalance, now: time.Now}
}

// Balance returns the actor's current balance.
func (s *Store) Balance(ctx context.Context, actor string) (float64, error) {
	return s.balance(ctx, s.db, actor)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) balance(ctx context.Context, q queryer, actor string) (float64, error) {
	var bal float64
	err := q.QueryRowContext(ctx, "SELECT balance FROM balances WHERE actor = ?;", actor).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return s.starting, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return bal, nil
}

// Has reports whether actor can afford amount.
func (s *Store) Has(ctx context.Context, actor string, amount float64) (bool, error) {
	bal, err := s.Balance(ctx, actor)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// Withdraw removes amount and returns the new balance.
func (s *Store) Withdraw(ctx context.Context, actor string, amount float64) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("withdraw negative amount %v", amount)
	}
	return s.adjust(ctx, actor, -amount)
}

// Deposit adds amount and returns the new balance.
func (s *Store) Deposit(ctx context.Context, actor string, amount float64) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("deposit negative amount %v", amount)
	}
	return s.adjust(ctx, actor, amount)
}

// Set overwrites the actor's balance.
func (s *Store) Set(ctx context.Context, actor string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("balance must not be negative")
	}
	return s.write(ctx, s.db, actor, amount)
}

func (s *Store) adjust(ctx context.Context, actor string, delta float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := s.balance(ctx, tx, actor)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if next < 0 {
		return cur, ErrInsufficientFunds
	}
	if err := s.write(ctx, tx, actor, next); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return next, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) write(ctx context.Context, e execer, actor string, amount float64) error {
	now := s.now().UTC().Format(storage.TimeFormat)
	_, err := e.ExecContext(ctx, `
INSERT INTO balances(actor, balance, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(actor) DO UPDATE SET
  balance = excluded.balance,
  updated_at = excluded.updated_at;
`, actor, amount, now)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}
