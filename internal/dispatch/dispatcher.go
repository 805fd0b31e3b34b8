package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/log"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
)

// Dispatcher resolves and runs command invocations.
type Dispatcher struct {
	registry      *command.Registry
	services      *command.Services
	sched         Scheduler
	interceptors  []command.Interceptor
	fallbackDepth int
	logger        *slog.Logger

	// life is cancelled by Close; every request context derives from it.
	life context.Context
	stop context.CancelFunc
}

// New creates a Dispatcher. Interceptors are fixed for the dispatcher's life.
func New(reg *command.Registry, services *command.Services, sched Scheduler, cfg config.DispatchConfig, interceptors ...command.Interceptor) *Dispatcher {
	life, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		registry:      reg,
		services:      services,
		sched:         sched,
		interceptors:  interceptors,
		fallbackDepth: cfg.FallbackDepth,
		logger:        log.WithComponent("dispatch"),
		life:          life,
		stop:          stop,
	}
}

// Close cancels the context of every unresolved invocation, so running
// executors such as plugin processes stop. Call it before stopping the
// scheduler.
func (d *Dispatcher) Close() { d.stop() }

// Registry returns the command tree the dispatcher resolves against.
func (d *Dispatcher) Registry() *command.Registry { return d.registry }

// Services returns the collaborators handed to every context.
func (d *Dispatcher) Services() *command.Services { return d.services }

// Process runs "<label> <rawArgs>" as actor. A Continue result means the
// outcome will be delivered to the actor later.
func (d *Dispatcher) Process(ctx context.Context, actor *command.Actor, label, rawArgs string) command.Result {
	return d.ProcessNotify(ctx, actor, label, rawArgs, nil)
}

// ProcessNotify is Process with a callback that receives the terminal Result
// exactly once, immediately or after a deferred stage completes.
func (d *Dispatcher) ProcessNotify(ctx context.Context, actor *command.Actor, label, rawArgs string, done func(command.Result)) command.Result {
	// The invocation may outlive the caller, e.g. an HTTP request that
	// returns on Continue. Only Close cancels it.
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unhook := context.AfterFunc(d.life, cancel)
	req := &request{
		id:      uuid.NewString(),
		ctx:     rctx,
		actor:   actor,
		label:   label,
		started: time.Now(),
		done:    done,
		release: func() {
			unhook()
			cancel()
		},
	}

	root, ok := d.registry.Get(label)
	if !ok {
		msg := d.services.Message(actor, "command.unknown", label)
		actor.Send(msg)
		return d.resolveBare(req, command.FailWith(command.ErrUnknownCommand, msg))
	}

	stream, err := args.Tokenize(rawArgs)
	if err != nil {
		detail := err.Error()
		var perr *args.ParseError
		if errors.As(err, &perr) {
			detail = d.services.Message(actor, perr.Key, perr.Args...)
		}
		msg := d.services.Message(actor, "command.parse.failed", root.Path(), detail)
		actor.Send(msg)
		return d.resolveBare(req, command.FailWith(err, msg))
	}

	r, pf := d.process(req, root, stream)
	if pf != nil {
		return d.failParse(req, pf)
	}
	return r
}

// parseFailure carries argument errors up the tree while ancestors retry.
type parseFailure struct {
	errs  []*args.ParseError
	node  *command.Node
	inv   *invocation
	hops  int
	final bool
}

func (d *Dispatcher) process(req *request, n *command.Node, s *args.Stream) (command.Result, *parseFailure) {
	var childFailure *parseFailure
	unknownChild := ""

	if tok, ok := s.Peek(); ok {
		if child, found := n.Child(tok); found {
			snap := s.Snapshot()
			s.Next()
			r, pf := d.process(req, child, s)
			if pf == nil {
				return r, nil
			}
			pf.hops++
			if pf.final || (d.fallbackDepth > 0 && pf.hops > d.fallbackDepth) {
				pf.final = true
				return command.Result{}, pf
			}
			childFailure = pf
			s.Restore(snap)
		} else if !n.HasExecutor() {
			unknownChild = tok
		}
	}

	meta := n.Metadata()
	actor := req.actor
	if !meta.Source.Accepts(actor.Kind()) {
		werr := &command.WrongSourceError{Command: n.Key(), Required: meta.Source, Actual: actor.Kind()}
		msg := d.services.Message(actor, werr.MessageKey(), n.Path())
		actor.Send(msg)
		return d.resolveBare(req, command.FailWith(werr, msg)), nil
	}

	inv := d.newInvocation(req, n)
	c := inv.ctx

	if perm, missing := n.MissingPermission(d.services.Permissions, actor); missing {
		err := &command.PermissionDeniedError{Command: n.Key(), Permission: perm}
		return inv.finish(command.FailWith(err, c.Message("command.noperm", n.Path()))), nil
	}

	if n.HasExecutor() {
		if err := args.Parse(s, meta.Parameters, c); err != nil {
			var perr *args.ParseError
			if !errors.As(err, &perr) {
				return inv.finish(d.executorFailure(inv, err)), nil
			}
			pf := childFailure
			if pf == nil {
				pf = &parseFailure{}
			}
			pf.errs = append(pf.errs, perr)
			pf.node = n
			pf.inv = inv
			return command.Result{}, pf
		}
	} else if childFailure != nil {
		return command.Result{}, childFailure
	}

	inv.mods = c.ActiveModifiers()
	for _, spec := range inv.mods {
		r, stop := inv.guard("modifier "+spec.Modifier.Name()+" requirement", func() (command.Result, bool) {
			reason, vetoed := spec.Modifier.TestRequirement(c)
			if !vetoed {
				return command.Result{}, false
			}
			err := &command.RequirementVetoedError{Modifier: spec.Modifier.Name(), Reason: reason}
			return command.FailWith(err, reason), true
		})
		if stop {
			return inv.finish(r), nil
		}
	}

	if !n.HasExecutor() {
		text := n.Usage(d.services, actor)
		if unknownChild != "" {
			text = c.Message("command.usage.noexist", unknownChild) + "\n" + text
		}
		c.SendText(text)
		inv.usage = true
		return inv.finish(command.Success()), nil
	}

	if pe, ok := n.Executor().(command.PreExecutor); ok {
		r, stop := inv.guard("pre-execute", func() (command.Result, bool) {
			r, stop, err := pe.PreExecute(c)
			if err != nil {
				return d.executorFailure(inv, err), true
			}
			return r, stop
		})
		if stop {
			return inv.settle(r), nil
		}
	}
	for _, spec := range inv.mods {
		r, stop := inv.guard("modifier "+spec.Modifier.Name()+" pre-execute", func() (command.Result, bool) {
			return spec.Modifier.PreExecute(c)
		})
		if stop {
			return inv.settle(r), nil
		}
	}

	return inv.execute(), nil
}

func (d *Dispatcher) failParse(req *request, pf *parseFailure) command.Result {
	actor := req.actor
	details := make([]string, 0, len(pf.errs))
	errs := make([]error, 0, len(pf.errs))
	for _, e := range pf.errs {
		details = append(details, d.services.Message(actor, e.Key, e.Args...))
		errs = append(errs, e)
	}
	msg := d.services.Message(actor, "command.parse.failed", pf.node.Path(), strings.Join(details, "; "))
	if line := pf.node.UsageLine(d.services, actor); line != "" {
		msg += "\n" + line
	}
	return pf.inv.finish(command.FailWith(errors.Join(errs...), msg))
}

func (d *Dispatcher) executorFailure(inv *invocation, err error) command.Result {
	c := inv.ctx
	var userErr *command.UserError
	var missing *command.ArgumentMissingError
	var perr *args.ParseError
	switch {
	case errors.As(err, &userErr):
		return command.FailWith(err, c.Message(userErr.Key, userErr.Args...))
	case errors.As(err, &missing):
		return command.FailWith(err, c.Message("command.error.argmissing", missing.Name))
	case errors.As(err, &perr):
		return command.FailWith(err, c.Message("command.parse.failed", inv.node.Path(), c.Message(perr.Key, perr.Args...)))
	}
	c.Logger().Error("Executor failed", "error", err)
	wrapped := &command.ExecutorError{Command: inv.node.Key(), Err: err}
	return command.FailWith(wrapped, c.Message("command.error.executor", inv.node.Path()))
}

// resolveBare ends a request that never built a context: no hooks run.
func (d *Dispatcher) resolveBare(req *request, r command.Result) command.Result {
	d.logger.Info("Command resolved",
		"invocation_id", req.id,
		"command", req.label,
		"actor", req.actor.Name(),
		"outcome", r.Outcome().String(),
		"error", errString(r.Err()),
	)
	req.notify(r)
	req.release()
	return r
}

// submit runs fn on the foreground loop, or inline without a scheduler.
func (d *Dispatcher) submit(fn func(), async bool) {
	if d.sched == nil {
		fn()
		return
	}
	d.sched.Submit(func(context.Context) { fn() }, scheduler.Options{Async: async})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
