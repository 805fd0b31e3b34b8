package modifier

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/command/commandtest"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/economy"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
	"github.com/mattjoyce/cmdgate/internal/storage"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.BootstrapSQLite(ctx, db))
	return db
}

func newContext(t *testing.T, s *command.Services, a *command.Actor, d command.Defaults, cont command.Continuation) *command.Context {
	t.Helper()
	n := command.NewNode(command.Metadata{Key: "kit.create", Aliases: []string{"create"}, Defaults: d}, nil)
	return command.NewContext(context.Background(), s, n, a, command.ContextOptions{Continuation: cont})
}

func TestCooldown(t *testing.T) {
	store := cooldown.NewStore(openDB(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	m := NewCooldown(store)
	services := commandtest.Services(commandtest.NewPermissions())
	inbox := &commandtest.Inbox{}
	alice := command.NewPlayer("alice", "en-US", nil, inbox)

	c := newContext(t, services, alice, command.Defaults{Cooldown: 10 * time.Second}, nil)
	_, vetoed := m.TestRequirement(c)
	assert.False(t, vetoed)
	require.NoError(t, m.OnCompletion(c))

	now = now.Add(2500 * time.Millisecond)
	reason, vetoed := m.TestRequirement(c)
	assert.True(t, vetoed)
	assert.Equal(t, "cooldown.wait 8s create", reason)

	now = now.Add(8 * time.Second)
	_, vetoed = m.TestRequirement(c)
	assert.False(t, vetoed)

	zero := newContext(t, services, alice, command.Defaults{}, nil)
	_, vetoed = m.TestRequirement(zero)
	assert.False(t, vetoed, "no cooldown configured")
}

func TestCooldownConsoleBypass(t *testing.T) {
	store := cooldown.NewStore(openDB(t))
	m := NewCooldown(store)
	services := commandtest.Services(commandtest.NewPermissions())
	services.ConsoleOverride = true
	cons := command.NewConsole("en-US", nil)

	c := newContext(t, services, cons, command.Defaults{Cooldown: time.Minute}, nil)
	require.NoError(t, m.OnCompletion(c))
	_, vetoed := m.TestRequirement(c)
	assert.False(t, vetoed)
}

func TestCost(t *testing.T) {
	wallet := economy.NewStore(openDB(t), 5)
	m := NewCost(wallet, "coins")
	services := commandtest.Services(commandtest.NewPermissions())
	inbox := &commandtest.Inbox{}
	alice := command.NewPlayer("alice", "en-US", nil, inbox)

	c := newContext(t, services, alice, command.Defaults{Cost: 3}, nil)
	_, vetoed := m.TestRequirement(c)
	require.False(t, vetoed)
	require.NoError(t, m.OnCompletion(c))
	assert.Equal(t, []string{"cost.charged 3 coins create"}, inbox.Messages())

	reason, vetoed := m.TestRequirement(c)
	assert.True(t, vetoed)
	assert.Equal(t, "cost.insufficient create 3 coins 2", reason)

	bal, err := wallet.Balance(context.Background(), alice.Key())
	require.NoError(t, err)
	assert.InDelta(t, 2, bal, 0.0001)
}

// continuation records calls made by deferred work.
type continuation struct {
	mu       sync.Mutex
	resumed  int
	resolved []command.Result
}

func (c *continuation) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed++
}

func (c *continuation) Resolve(r command.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = append(c.resolved, r)
}

func (c *continuation) snapshot() (int, []command.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed, append([]command.Result(nil), c.resolved...)
}

func newWarmupService(t *testing.T) *warmup.Service {
	t.Helper()
	sched := scheduler.New(config.SchedulerConfig{Workers: 1}, nil, nil)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)
	return warmup.New(config.WarmupConfig{CancelOnMove: true, CancelOnDamage: true}, sched, nil, nil)
}

func TestWarmupResumes(t *testing.T) {
	svc := newWarmupService(t)
	m := NewWarmup(svc)
	services := commandtest.Services(commandtest.NewPermissions())
	inbox := &commandtest.Inbox{}
	alice := command.NewPlayer("alice", "en-US", nil, inbox)
	cont := &continuation{}

	c := newContext(t, services, alice, command.Defaults{Warmup: 20 * time.Millisecond}, cont)
	r, stop := m.PreExecute(c)
	require.True(t, stop)
	assert.True(t, r.IsContinue())
	assert.Equal(t, []string{"warmup.start create 20ms"}, inbox.Messages())

	require.Eventually(t, func() bool {
		resumed, _ := cont.snapshot()
		return resumed == 1
	}, time.Second, 5*time.Millisecond)
	_, resolved := cont.snapshot()
	assert.Empty(t, resolved)
}

func TestWarmupCancelResolvesFail(t *testing.T) {
	svc := newWarmupService(t)
	m := NewWarmup(svc)
	services := commandtest.Services(commandtest.NewPermissions())
	alice := command.NewPlayer("alice", "en-US", nil, nil)
	cont := &continuation{}

	c := newContext(t, services, alice, command.Defaults{Warmup: time.Second}, cont)
	_, stop := m.PreExecute(c)
	require.True(t, stop)
	require.True(t, svc.Notify(alice.Key(), warmup.EventDamage))

	resumed, resolved := cont.snapshot()
	assert.Zero(t, resumed)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].IsFail())
	assert.Equal(t, "warmup.cancelled create", resolved[0].Message())
}

func TestWarmupSkipped(t *testing.T) {
	m := NewWarmup(newWarmupService(t))
	services := commandtest.Services(commandtest.NewPermissions())
	alice := command.NewPlayer("alice", "en-US", nil, nil)

	_, stop := m.PreExecute(newContext(t, services, alice, command.Defaults{Warmup: time.Second}, nil))
	assert.False(t, stop, "no continuation to resume")

	_, stop = m.PreExecute(newContext(t, services, alice, command.Defaults{}, &continuation{}))
	assert.False(t, stop, "no warmup configured")
}
