// Package inspect renders what cmdgate knows about one actor: balance, kits,
// cooldowns and recent invocations.
package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/audit"
	"github.com/mattjoyce/cmdgate/internal/builtin"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/economy"
)

const defaultRecent = 10

// Options tunes a report.
type Options struct {
	StartingBalance float64
	Currency        string
	// Windows maps command keys to their cooldown windows.
	Windows map[string]time.Duration
	// Recent bounds the invocation list. Zero means 10.
	Recent int
	Now    func() time.Time
}

// Report is the structured JSON representation of an actor report.
type Report struct {
	Actor     string        `json:"actor"`
	Kind      string        `json:"kind"`
	Key       string        `json:"key"`
	Balance   float64       `json:"balance"`
	Currency  string        `json:"currency"`
	Kits      []string      `json:"kits"`
	Cooldowns []Cooldown    `json:"cooldowns"`
	Recent    []audit.Entry `json:"recent"`
}

// Cooldown is one command the actor has completed.
type Cooldown struct {
	Command     string    `json:"command"`
	LastSuccess time.Time `json:"last_success"`
	// ReadyIn is zero when the command can run again.
	ReadyIn time.Duration `json:"ready_in_ns"`
}

// Inspector reads actor state from the state database.
type Inspector struct {
	wallet    *economy.Store
	cooldowns *cooldown.Store
	kits      *builtin.KitStore
	log       *audit.Log
	opts      Options
}

// New returns an Inspector over db.
func New(db *sql.DB, opts Options) *Inspector {
	if opts.Recent <= 0 {
		opts.Recent = defaultRecent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cd := cooldown.NewStore(db)
	cd.SetClock(opts.Now)
	return &Inspector{
		wallet:    economy.NewStore(db, opts.StartingBalance),
		cooldowns: cd,
		kits:      builtin.NewKitStore(db),
		log:       audit.NewLog(db),
		opts:      opts,
	}
}

// Gather collects the report data for a.
func (in *Inspector) Gather(ctx context.Context, a *command.Actor) (*Report, error) {
	key := a.Key()
	report := &Report{
		Actor:     a.Name(),
		Kind:      a.Kind().String(),
		Key:       key,
		Currency:  in.opts.Currency,
		Kits:      []string{},
		Cooldowns: []Cooldown{},
		Recent:    []audit.Entry{},
	}

	bal, err := in.wallet.Balance(ctx, key)
	if err != nil {
		return nil, err
	}
	report.Balance = bal

	kits, err := in.kits.List(ctx, key)
	if err != nil {
		return nil, err
	}
	if kits != nil {
		report.Kits = kits
	}

	history, err := in.cooldowns.History(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, h := range history {
		left, err := in.cooldowns.Remaining(ctx, h.Command, key, in.opts.Windows[h.Command])
		if err != nil {
			return nil, err
		}
		report.Cooldowns = append(report.Cooldowns, Cooldown{Command: h.Command, LastSuccess: h.LastSuccess, ReadyIn: left})
	}

	recent, err := in.log.Recent(ctx, audit.Filter{Actor: a.Name(), Limit: in.opts.Recent})
	if err != nil {
		return nil, err
	}
	if recent != nil {
		report.Recent = recent
	}
	return report, nil
}

// BuildReport renders a terminal-friendly report for a.
func (in *Inspector) BuildReport(ctx context.Context, a *command.Actor) (string, error) {
	report, err := in.Gather(ctx, a)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Actor Report\n")
	fmt.Fprintf(&out, "Actor       : %s (%s)\n", report.Actor, report.Kind)
	fmt.Fprintf(&out, "Key         : %s\n", report.Key)
	fmt.Fprintf(&out, "Balance     : %.2f %s\n", report.Balance, report.Currency)
	fmt.Fprintf(&out, "Kits        : %s\n", renderList(report.Kits))
	fmt.Fprintf(&out, "\n")

	fmt.Fprintf(&out, "Cooldowns\n")
	if len(report.Cooldowns) == 0 {
		fmt.Fprintf(&out, "  <none>\n")
	}
	for _, c := range report.Cooldowns {
		ready := "ready"
		if c.ReadyIn > 0 {
			ready = "ready in " + c.ReadyIn.Round(time.Second).String()
		}
		fmt.Fprintf(&out, "  %-14s last %s  %s\n", c.Command, c.LastSuccess.Format(time.RFC3339), ready)
	}
	fmt.Fprintf(&out, "\n")

	fmt.Fprintf(&out, "Recent Invocations\n")
	if len(report.Recent) == 0 {
		fmt.Fprintf(&out, "  <none>\n")
	}
	for _, e := range report.Recent {
		fmt.Fprintf(&out, "  %s %-14s %-8s %5dms", e.CompletedAt.Format(time.RFC3339), e.Command, e.Outcome, e.DurationMS)
		if e.Message != "" {
			fmt.Fprintf(&out, "  %s", e.Message)
		}
		if e.Error != "" {
			fmt.Fprintf(&out, "  (%s)", e.Error)
		}
		fmt.Fprintf(&out, "\n")
	}

	return out.String(), nil
}

// BuildJSONReport returns the machine-readable report for a.
func (in *Inspector) BuildJSONReport(ctx context.Context, a *command.Actor) (string, error) {
	report, err := in.Gather(ctx, a)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func renderList(items []string) string {
	if len(items) == 0 {
		return "<none>"
	}
	return strings.Join(items, ", ")
}
