package tui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/command/commandtest"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/dispatch"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
)

func newTestSession(t *testing.T) *ConsoleSession {
	t.Helper()
	sched := scheduler.New(config.SchedulerConfig{Workers: 1}, nil, nil)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	reg := command.NewRegistry()
	echo := command.NewNode(command.Metadata{
		Key:        "echo",
		Aliases:    []string{"echo"},
		Parameters: []args.Element{args.Remaining("text")},
	}, command.ExecutorFunc(func(c *command.Context) (command.Result, error) {
		text, _ := command.One[string](c, "text")
		c.SendMessage("echo", text)
		return c.Success(), nil
	}))
	later := command.NewNode(command.Metadata{
		Key:     "later",
		Aliases: []string{"later"},
		Async:   true,
	}, command.ExecutorFunc(func(c *command.Context) (command.Result, error) {
		return c.Success(), nil
	}))
	require.NoError(t, reg.Register(echo))
	require.NoError(t, reg.Register(later))
	require.NoError(t, reg.Complete())

	d := dispatch.New(reg, commandtest.Services(commandtest.NewPermissions()), sched, config.DispatchConfig{})
	return NewConsoleSession(d, sched, "en-US", nil)
}

func nextOutput(t *testing.T, s *ConsoleSession) Output {
	t.Helper()
	select {
	case o := <-s.Output():
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no console output")
		return Output{}
	}
}

func TestConsoleSessionRunsAsConsole(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, command.KindConsole, s.Actor().Kind())

	res, err := s.Run(context.Background(), "/echo hello there")
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, Output{Text: "echo hello there"}, nextOutput(t, s))
}

func TestConsoleSessionReportsDeferredOutcome(t *testing.T) {
	s := newTestSession(t)

	res, err := s.Run(context.Background(), "later")
	require.NoError(t, err)
	assert.True(t, res.IsContinue())
	assert.Equal(t, Output{Command: "later", Done: true, Outcome: command.OutcomeSuccess}, nextOutput(t, s))
}

func TestConsoleSessionUnknownCommand(t *testing.T) {
	s := newTestSession(t)

	res, err := s.Run(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, res.IsFail())
	assert.Equal(t, Output{Text: "command.unknown nope"}, nextOutput(t, s))
}
