package command

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ContextOptions carries the dispatcher-owned parts of a new Context.
type ContextOptions struct {
	// InvocationID correlates logs, audit rows and spans. Generated when empty.
	InvocationID string
	Continuation Continuation
	// Modifiers overrides the node's declared modifiers, mostly for tests.
	Modifiers []ModifierSpec
}

// Context is the per-invocation state. It belongs to one invocation and is
// only touched by the goroutine currently running that invocation's stage.
type Context struct {
	ctx      context.Context
	id       string
	actor    *Actor
	node     *Node
	services *Services
	cont     Continuation
	logger   *slog.Logger

	values      map[string][]any
	cooldown    time.Duration
	warmup      time.Duration
	cost        float64
	modifiers   []ModifierSpec
	failActions []func(*Actor)
	held        bool
	outbox      []string
}

// NewContext builds the context for running n as a. Cost, cooldown and warmup
// start from the node defaults and are then overridden by the actor's numeric
// options, e.g. "cmdgate.kit.create.cooldown" in seconds.
func NewContext(ctx context.Context, s *Services, n *Node, a *Actor, opts ContextOptions) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := opts.InvocationID
	if id == "" {
		id = uuid.NewString()
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mods := opts.Modifiers
	if mods == nil {
		mods = n.meta.Modifiers
	}
	c := &Context{
		ctx:       ctx,
		id:        id,
		actor:     a,
		node:      n,
		services:  s,
		cont:      opts.Continuation,
		logger:    logger.With("invocation_id", id, "command", n.Key(), "actor", a.Name()),
		values:    make(map[string][]any),
		modifiers: append([]ModifierSpec(nil), mods...),
	}
	c.seed()
	return c
}

func (c *Context) seed() {
	d := c.node.meta.Defaults
	c.SetCooldown(d.Cooldown)
	c.SetWarmup(d.Warmup)
	c.SetCost(d.Cost)
	if c.services.Permissions == nil {
		return
	}
	prefix := c.services.OptionPrefix
	if v, ok := c.services.Permissions.NumericOption(c.actor, c.node.meta.OptionKey(prefix, "cooldown")); ok {
		c.SetCooldown(seconds(v))
	}
	if v, ok := c.services.Permissions.NumericOption(c.actor, c.node.meta.OptionKey(prefix, "warmup")); ok {
		c.SetWarmup(seconds(v))
	}
	if v, ok := c.services.Permissions.NumericOption(c.actor, c.node.meta.OptionKey(prefix, "cost")); ok {
		c.SetCost(v)
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (c *Context) Ctx() context.Context       { return c.ctx }
func (c *Context) InvocationID() string       { return c.id }
func (c *Context) Actor() *Actor              { return c.actor }
func (c *Context) Node() *Node                { return c.node }
func (c *Context) CommandKey() string         { return c.node.Key() }
func (c *Context) Services() *Services        { return c.services }
func (c *Context) Continuation() Continuation { return c.cont }
func (c *Context) Logger() *slog.Logger       { return c.logger }

// UniqueID is the stable identity used for cooldown and balance bookkeeping.
func (c *Context) UniqueID() string { return c.actor.Key() }

// Capabilities is the actor's capability set for this invocation. The
// console may override only when the service enables console override.
func (c *Context) Capabilities() Capabilities {
	caps := c.actor.Capabilities()
	caps.OverridePermission = c.actor.Kind() == KindConsole && c.services.ConsoleOverride
	return caps
}

// IsUser reports whether the actor carries a player identity.
func (c *Context) IsUser() bool { return c.Capabilities().Identity }

// IsConsoleAndBypass reports whether the console may skip modifier checks.
func (c *Context) IsConsoleAndBypass() bool { return c.Capabilities().OverridePermission }

func (c *Context) Cooldown() time.Duration { return c.cooldown }
func (c *Context) Warmup() time.Duration   { return c.warmup }
func (c *Context) Cost() float64           { return c.cost }

func (c *Context) SetCooldown(d time.Duration) { c.cooldown = max(d, 0) }
func (c *Context) SetWarmup(d time.Duration)   { c.warmup = max(d, 0) }
func (c *Context) SetCost(v float64)           { c.cost = max(v, 0) }

// Modifiers returns a copy of the modifiers that apply to this invocation.
func (c *Context) Modifiers() []ModifierSpec {
	return append([]ModifierSpec(nil), c.modifiers...)
}

// ActiveModifiers filters Modifiers down to those targeting this actor that
// the actor is not exempt from.
func (c *Context) ActiveModifiers() []ModifierSpec {
	out := make([]ModifierSpec, 0, len(c.modifiers))
	for _, spec := range c.modifiers {
		if !spec.Target.Accepts(c.actor.Kind()) {
			continue
		}
		if spec.ExemptPermission != "" && c.TestPermission(spec.ExemptPermission) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// AddFailAction registers fn to run if the invocation ends in Fail. Actions
// run in registration order.
func (c *Context) AddFailAction(fn func(*Actor)) {
	c.failActions = append(c.failActions, fn)
}

// FailActions returns the registered fail actions.
func (c *Context) FailActions() []func(*Actor) {
	return slices.Clone(c.failActions)
}

// Put appends a parsed value under name.
func (c *Context) Put(name string, value any) {
	c.values[name] = append(c.values[name], value)
}

// PutAll appends several values under name.
func (c *Context) PutAll(name string, values ...any) {
	c.values[name] = append(c.values[name], values...)
}

// HasAny reports whether any value is stored under name.
func (c *Context) HasAny(name string) bool { return len(c.values[name]) > 0 }

// One returns the first value under name that has type T.
func One[T any](c *Context, name string) (T, bool) {
	for _, v := range c.values[name] {
		if t, ok := v.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// All returns every value under name that has type T.
func All[T any](c *Context, name string) []T {
	var out []T
	for _, v := range c.values[name] {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// RequireOne is One, failing with *ArgumentMissingError when absent.
func RequireOne[T any](c *Context, name string) (T, error) {
	v, ok := One[T](c, name)
	if !ok {
		return v, &ArgumentMissingError{Name: name}
	}
	return v, nil
}

// TestPermission checks a single permission for the actor.
func (c *Context) TestPermission(permission string) bool {
	if c.services.Permissions == nil {
		return false
	}
	return c.services.Permissions.HasPermission(c.actor, permission)
}

// Message renders key in the actor's locale.
func (c *Context) Message(key string, args ...any) string {
	return c.services.Message(c.actor, key, args...)
}

// SendMessage renders key and delivers it to the actor.
func (c *Context) SendMessage(key string, args ...any) {
	c.SendText(c.Message(key, args...))
}

// SendText delivers text to the actor as is, or queues it while held.
func (c *Context) SendText(text string) {
	if c.held {
		c.outbox = append(c.outbox, text)
		return
	}
	c.actor.Send(text)
}

// Hold queues everything sent through the context until Release. The
// dispatcher holds output while a body runs off the foreground loop.
func (c *Context) Hold() { c.held = true }

// Release delivers queued output in order and stops queueing.
func (c *Context) Release() {
	c.held = false
	out := c.outbox
	c.outbox = nil
	for _, text := range out {
		c.actor.Send(text)
	}
}

func (c *Context) Success() Result  { return Success() }
func (c *Context) Continue() Result { return Continue() }

// Fail builds a failure whose message is the localized key.
func (c *Context) Fail(key string, args ...any) Result {
	return FailWith(&UserError{Key: key, Args: args}, c.Message(key, args...))
}

// FailLiteral builds a failure with an already rendered message.
func (c *Context) FailLiteral(text string) Result { return Fail(text) }

// Error builds an error an executor may return to fail with a localized key.
func (c *Context) Error(key string, args ...any) error {
	return &UserError{Key: key, Args: args}
}
