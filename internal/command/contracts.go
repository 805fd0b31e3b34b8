package command

import (
	"fmt"
	"log/slog"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks github.com/mattjoyce/cmdgate/internal/command PermissionService,MessageService

// PermissionService answers permission and per-subject option queries.
type PermissionService interface {
	HasPermission(a *Actor, permission string) bool
	// NumericOption returns the first of keys set for the actor.
	NumericOption(a *Actor, keys ...string) (float64, bool)
}

// MessageService renders catalog messages for a locale.
type MessageService interface {
	Resolve(locale, key string, args ...any) string
}

// Services are the process-wide collaborators handed down the dispatch chain.
// Bootstrap owns the value; nothing mutates it after startup.
type Services struct {
	Permissions PermissionService
	Messages    MessageService
	Logger      *slog.Logger
	// ConsoleOverride enables IsConsoleAndBypass on console contexts.
	ConsoleOverride bool
	// OptionPrefix namespaces per-subject option keys, e.g. "cmdgate".
	OptionPrefix string
}

// Message renders key for the actor's locale.
func (s *Services) Message(a *Actor, key string, args ...any) string {
	return s.Messages.Resolve(a.Locale(), key, args...)
}

// Executor is the body of a command.
type Executor interface {
	Execute(c *Context) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(c *Context) (Result, error)

func (f ExecutorFunc) Execute(c *Context) (Result, error) { return f(c) }

// PreExecutor is implemented by executors that want a say before the modifier
// pre-execution stage. Returning stop=true ends the invocation with r.
type PreExecutor interface {
	PreExecute(c *Context) (r Result, stop bool, err error)
}

// ExecutorType names an executor for interceptors and logs.
func ExecutorType(e Executor) string {
	if e == nil {
		return "<none>"
	}
	return fmt.Sprintf("%T", e)
}

// Modifier is a process-wide policy consulted during dispatch. Implementations
// keep no per-invocation state; everything mutable lives on the Context.
type Modifier interface {
	Name() string
	// TestRequirement vetoes the invocation when vetoed is true. An empty
	// reason is a silent veto.
	TestRequirement(c *Context) (reason string, vetoed bool)
	// PreExecute may end the pipeline by returning stop=true. A Continue
	// result defers the executor; the modifier must then resume or resolve
	// the invocation through c.Continuation().
	PreExecute(c *Context) (r Result, stop bool)
	// OnCompletion runs after a terminal Success.
	OnCompletion(c *Context) error
}

// BaseModifier provides no-op Modifier hooks for embedding.
type BaseModifier struct{}

func (BaseModifier) TestRequirement(*Context) (string, bool) { return "", false }
func (BaseModifier) PreExecute(*Context) (Result, bool)      { return Result{}, false }
func (BaseModifier) OnCompletion(*Context) error             { return nil }

// Interceptor observes every invocation. It must not alter results.
type Interceptor interface {
	OnPreCommand(executorType string, n *Node, c *Context)
	OnPostCommand(executorType string, n *Node, c *Context, r Result)
}

// Continuation lets deferred work finish an invocation that returned Continue.
// Both methods are safe from any goroutine; the first terminal resolution wins.
type Continuation interface {
	// Resume runs the executor body and post-processing.
	Resume()
	// Resolve ends the invocation with r without running the executor.
	Resolve(r Result)
}
