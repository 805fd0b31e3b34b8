package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/protocol"
	"github.com/mattjoyce/cmdgate/internal/state"
)

const (
	// DefaultTimeout bounds a plugin run when neither the manifest nor the
	// configuration sets one.
	DefaultTimeout = 10 * time.Second

	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the wait between SIGTERM and SIGKILL.
	terminationGracePeriod = 2 * time.Second
)

// ErrTimeout is returned when a plugin outlives its timeout.
var ErrTimeout = errors.New("plugin timed out")

// Executor runs one plugin command as a subprocess.
type Executor struct {
	plugin  *Plugin
	spec    CommandSpec
	timeout time.Duration
	config  map[string]any
	state   *state.Store
}

// NewExecutor builds the executor for spec. A zero timeout falls back to the
// manifest's, then DefaultTimeout. With a nil store plugins run stateless.
func NewExecutor(p *Plugin, spec CommandSpec, timeout time.Duration, cfg map[string]any, store *state.Store) *Executor {
	if p.Timeout > 0 {
		timeout = p.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{plugin: p, spec: spec, timeout: timeout, config: cfg, state: store}
}

// Execute implements command.Executor.
func (e *Executor) Execute(c *command.Context) (command.Result, error) {
	logger := c.Logger().With("plugin", e.plugin.Name, "command", e.spec.Key)

	req := &protocol.Request{
		Protocol:     protocol.Version,
		InvocationID: c.InvocationID(),
		Command:      e.spec.Key,
		Actor:        actorOf(c),
		Args:         e.collectArgs(c),
		Config:       e.config,
		DeadlineAt:   time.Now().Add(e.timeout).UTC(),
	}
	if e.state != nil {
		raw, err := e.state.Get(c.Ctx(), e.plugin.Name, c.UniqueID())
		if err != nil {
			return command.Result{}, err
		}
		if err := json.Unmarshal(raw, &req.State); err != nil {
			return command.Result{}, fmt.Errorf("decode plugin state: %w", err)
		}
	}

	resp, stderr, err := e.spawn(c.Ctx(), req, logger)
	if stderr != "" {
		logger.Debug("plugin stderr", "stderr", stderr)
	}
	if err != nil {
		return command.Result{}, err
	}

	for _, l := range resp.Logs {
		logger.Log(c.Ctx(), levelOf(l.Level), l.Message)
	}
	for _, m := range resp.Messages {
		c.SendText(m)
	}
	if !resp.OK() {
		return c.FailLiteral(resp.Error), nil
	}
	if e.state != nil && len(resp.StateUpdates) > 0 {
		e.saveState(c, resp.StateUpdates, logger)
	}
	return c.Success(), nil
}

// saveState merges updates into the actor's state. Failures are logged; the
// plugin already ran and its messages were sent.
func (e *Executor) saveState(c *command.Context, updates map[string]any, logger *slog.Logger) {
	raw, err := json.Marshal(updates)
	if err == nil {
		_, err = e.state.ShallowMerge(c.Ctx(), e.plugin.Name, c.UniqueID(), raw)
	}
	if err != nil {
		logger.Error("failed to save plugin state", "error", err)
	}
}

func (e *Executor) collectArgs(c *command.Context) map[string]any {
	out := make(map[string]any, len(e.spec.Params))
	for _, p := range e.spec.Params {
		values := command.All[any](c, p.Name)
		for i, v := range values {
			if d, ok := v.(time.Duration); ok {
				values[i] = d.String()
			}
		}
		switch {
		case len(values) == 0:
			continue
		case p.Repeated:
			out[p.Name] = values
		default:
			out[p.Name] = values[0]
		}
	}
	return out
}

// spawn runs the entrypoint, writes req to stdin and decodes stdout. It
// returns the response and the truncated stderr.
func (e *Executor) spawn(ctx context.Context, req *protocol.Request, logger *slog.Logger) (*protocol.Response, string, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	// Termination is managed below rather than by CommandContext so the
	// plugin gets SIGTERM before SIGKILL.
	cmd := exec.Command(e.plugin.Entrypoint)
	cmd.Dir = e.plugin.Path
	cmd.WaitDelay = terminationGracePeriod

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, "", fmt.Errorf("create stdin pipe: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning plugin", "entrypoint", e.plugin.Entrypoint, "timeout", e.timeout)
	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start process: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		if err := protocol.EncodeRequest(stdin, req); err != nil {
			writeErr <- fmt.Errorf("encode request: %w", err)
			return
		}
		writeErr <- nil
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var cause error
	select {
	case err := <-waitErr:
		errOut := truncateStderr(stderr.String())
		if werr := <-writeErr; werr != nil {
			return nil, errOut, werr
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return nil, errOut, fmt.Errorf("wait for process: %w", err)
			}
			logger.Warn("plugin exited with non-zero status", "exit_code", exitErr.ExitCode())
		}
		resp, raw, err := protocol.DecodeResponseLenient(bytes.NewReader(stdout.Bytes()))
		if err != nil {
			logger.Error("failed to decode plugin response", "error", err, "stdout", string(raw))
			return nil, errOut, fmt.Errorf("decode response: %w", err)
		}
		return resp, errOut, nil
	case <-timer.C:
		logger.Warn("plugin execution timed out, sending SIGTERM")
		cause = ErrTimeout
	case <-ctx.Done():
		logger.Info("invocation cancelled, sending SIGTERM")
		cause = ctx.Err()
	}

	terminate(cmd, waitErr, logger)
	return nil, truncateStderr(stderr.String()), cause
}

func terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()
	select {
	case <-waitErr:
		logger.Info("plugin exited after SIGTERM")
	case <-grace.C:
		logger.Warn("plugin did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

// actorOf describes the invoking actor. Identity and location are sent for
// players only.
func actorOf(c *command.Context) protocol.Actor {
	a := c.Actor()
	out := protocol.Actor{Name: a.Name(), Kind: a.Kind().String(), Locale: a.Locale()}
	if !c.IsUser() {
		return out
	}
	out.ID = c.UniqueID()
	if loc := a.Location(); loc != nil {
		out.Location = &protocol.Location{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z}
	}
	return out
}

func levelOf(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes] + "... (truncated)"
	}
	return s
}
