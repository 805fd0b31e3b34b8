// Package e2e drives script commands through discovery, registration and the
// real dispatcher, scheduler and stores.
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/command/commandtest"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/dispatch"
	"github.com/mattjoyce/cmdgate/internal/economy"
	"github.com/mattjoyce/cmdgate/internal/modifier"
	"github.com/mattjoyce/cmdgate/internal/plugin"
	"github.com/mattjoyce/cmdgate/internal/protocol"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
	"github.com/mattjoyce/cmdgate/internal/storage"
)

const greetManifest = `name: greet
version: 0.1.0
protocol: 1
entrypoint: run.sh
commands:
  - key: greet
    aliases: [greet, hi]
    permissions: [cmdgate.greet]
    cooldown: 1m
    cost: 5
    params:
      - name: text
        type: remaining
  - key: greet.fail
    aliases: [fail]
  - key: greet.slow
    aliases: [slow]
`

// The script records each request and answers based on the command key.
const greetScript = `#!/bin/sh
cat > last_request.json
if grep -q '"command":"greet.fail"' last_request.json; then
  echo '{"status":"error","error":"greeting refused"}'
  exit 0
fi
if grep -q '"command":"greet.slow"' last_request.json; then
  exec sleep 30
fi
echo '{"status":"ok","messages":["greeted"],"logs":[{"level":"info","message":"done"}]}'
`

type harness struct {
	sched     *scheduler.Scheduler
	disp      *dispatch.Dispatcher
	perms     *commandtest.Permissions
	wallet    *economy.Store
	pluginDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("plugins need a POSIX shell")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root := t.TempDir()
	dir := filepath.Join(root, "greet")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(greetManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte(greetScript), 0o755))

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.BootstrapSQLite(ctx, db))

	sched := scheduler.New(config.SchedulerConfig{Workers: 2}, nil, nil)
	require.NoError(t, sched.Start(ctx))
	t.Cleanup(sched.Stop)

	wallet := economy.NewStore(db, 12)
	plugins, err := plugin.Discover([]string{root}, logger)
	require.NoError(t, err)
	p, ok := plugins.Get("greet")
	require.True(t, ok, "greet plugin not discovered")

	roots, err := plugin.Build(p, plugin.BuildOptions{
		Cooldown: modifier.NewCooldown(cooldown.NewStore(db)),
		Warmup:   modifier.NewWarmup(nil),
		Cost:     modifier.NewCost(wallet, "coins"),
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)

	reg := command.NewRegistry()
	for _, n := range roots {
		require.NoError(t, reg.Register(n))
	}
	require.NoError(t, reg.Complete())

	perms := commandtest.NewPermissions()
	services := commandtest.Services(perms)
	services.Logger = logger
	return &harness{
		sched:     sched,
		disp:      dispatch.New(reg, services, sched, config.DispatchConfig{}),
		perms:     perms,
		wallet:    wallet,
		pluginDir: dir,
	}
}

// run dispatches line and waits for the terminal result.
func (h *harness) run(t *testing.T, a *command.Actor, line string) command.Result {
	t.Helper()
	label, rest, _ := strings.Cut(line, " ")
	done := make(chan command.Result, 1)
	require.NoError(t, h.sched.RunSync(context.Background(), func(ctx context.Context) {
		h.disp.ProcessNotify(ctx, a, label, rest, func(r command.Result) { done <- r })
	}))
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("invocation never resolved")
		return command.Result{}
	}
}

func (h *harness) lastRequest(t *testing.T) protocol.Request {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.pluginDir, "last_request.json"))
	require.NoError(t, err)
	var req protocol.Request
	require.NoError(t, json.Unmarshal(data, &req))
	return req
}

func TestScriptCommand_RunsThroughDispatcher(t *testing.T) {
	h := newHarness(t)
	h.perms.Grant("alice", "cmdgate.greet")
	inbox := &commandtest.Inbox{}
	alice := command.NewPlayer("alice", "en-US", nil, inbox)

	r := h.run(t, alice, "hi hello there world")
	require.True(t, r.IsSuccess(), "result = %v (%s)", r, r.Message())
	assert.True(t, inbox.Contains("greeted"))
	assert.True(t, inbox.Contains("cost.charged 5 coins greet"))

	req := h.lastRequest(t)
	assert.Equal(t, "greet", req.Command)
	assert.Equal(t, "hello there world", req.Args["text"])
	assert.Equal(t, "alice", req.Actor.Name)

	balance, err := h.wallet.Balance(context.Background(), alice.Key())
	require.NoError(t, err)
	assert.InDelta(t, 7, balance, 0.001)

	r = h.run(t, alice, "greet again")
	assert.True(t, r.IsFail(), "second run should hit the cooldown")
	assert.True(t, inbox.Contains("cooldown.wait"))
}

func TestScriptCommand_PermissionDenied(t *testing.T) {
	h := newHarness(t)
	inbox := &commandtest.Inbox{}
	bob := command.NewPlayer("bob", "en-US", nil, inbox)

	r := h.run(t, bob, "greet hello")
	assert.True(t, r.IsFail())
	_, err := os.Stat(filepath.Join(h.pluginDir, "last_request.json"))
	assert.True(t, os.IsNotExist(err), "plugin must not run without permission")
}

func TestScriptCommand_PluginErrorFails(t *testing.T) {
	h := newHarness(t)
	h.perms.Grant("alice", "cmdgate.greet")
	inbox := &commandtest.Inbox{}
	alice := command.NewPlayer("alice", "en-US", nil, inbox)

	r := h.run(t, alice, "greet fail")
	require.True(t, r.IsFail())
	assert.Equal(t, "greeting refused", r.Message())
	assert.Equal(t, "greet.fail", h.lastRequest(t).Command)
}

func TestScriptCommand_CloseStopsRunningPlugin(t *testing.T) {
	h := newHarness(t)
	h.perms.Grant("alice", "cmdgate.greet")
	alice := command.NewPlayer("alice", "en-US", nil, &commandtest.Inbox{})

	done := make(chan command.Result, 1)
	var first command.Result
	require.NoError(t, h.sched.RunSync(context.Background(), func(ctx context.Context) {
		first = h.disp.ProcessNotify(ctx, alice, "greet", "slow", func(r command.Result) { done <- r })
	}))
	require.True(t, first.IsContinue())
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(h.pluginDir, "last_request.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	start := time.Now()
	h.disp.Close()
	select {
	case r := <-done:
		require.True(t, r.IsFail())
		assert.True(t, errors.Is(r.Err(), context.Canceled), "err = %v", r.Err())
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(10 * time.Second):
		t.Fatal("plugin was not stopped")
	}
}
