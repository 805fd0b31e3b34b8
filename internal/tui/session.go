package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/mattjoyce/cmdgate/internal/command"
)

// Output is one item produced by a console session: either text delivered
// to the console actor, or the final outcome of a deferred invocation.
type Output struct {
	Text    string
	Command string
	Done    bool
	Outcome command.Outcome
}

// Session runs command lines for the console.
type Session interface {
	Run(ctx context.Context, line string) (command.Result, error)
	Output() <-chan Output
}

// Dispatcher is the part of the dispatcher a console session uses.
type Dispatcher interface {
	ProcessNotify(ctx context.Context, actor *command.Actor, label, rawArgs string, done func(command.Result)) command.Result
}

// Runner runs a function on the foreground loop and waits for it.
type Runner interface {
	RunSync(ctx context.Context, fn func(ctx context.Context)) error
}

// ConsoleSession dispatches lines as the console actor.
type ConsoleSession struct {
	dispatcher Dispatcher
	runner     Runner
	actor      *command.Actor
	out        chan Output
	logger     *slog.Logger
}

// NewConsoleSession creates a session. Output that cannot be queued because
// nobody is reading is dropped rather than stalling the foreground loop.
func NewConsoleSession(d Dispatcher, r Runner, locale string, logger *slog.Logger) *ConsoleSession {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConsoleSession{
		dispatcher: d,
		runner:     r,
		out:        make(chan Output, 256),
		logger:     logger.With("component", "console"),
	}
	s.actor = command.NewConsole(locale, command.ChannelFunc(func(text string) {
		s.emit(Output{Text: text})
	}))
	return s
}

func (s *ConsoleSession) Actor() *command.Actor { return s.actor }
func (s *ConsoleSession) Output() <-chan Output { return s.out }

// Run dispatches one line and returns the immediate result. When that result
// is Continue the terminal outcome is later delivered on Output.
func (s *ConsoleSession) Run(ctx context.Context, line string) (command.Result, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	label, rest, _ := strings.Cut(line, " ")

	var res command.Result
	var deferred atomic.Bool
	err := s.runner.RunSync(ctx, func(ctx context.Context) {
		res = s.dispatcher.ProcessNotify(ctx, s.actor, label, rest, func(final command.Result) {
			if deferred.Load() {
				s.emit(Output{Command: label, Done: true, Outcome: final.Outcome()})
			}
		})
		deferred.Store(res.IsContinue())
	})
	return res, err
}

func (s *ConsoleSession) emit(o Output) {
	select {
	case s.out <- o:
	default:
		s.logger.Warn("Console output dropped", "text", o.Text)
	}
}
