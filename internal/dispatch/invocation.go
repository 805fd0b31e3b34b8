package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
)

var errNoResult = errors.New("stage returned no result")

// request is one call to Process. Fallback may build several invocations for
// it; exactly one of them finishes.
type request struct {
	id       string
	ctx      context.Context
	actor    *command.Actor
	label    string
	started  time.Time
	done     func(command.Result)
	release  func()
	notified atomic.Bool
}

func (r *request) notify(res command.Result) {
	if r.done == nil || !r.notified.CompareAndSwap(false, true) {
		return
	}
	r.done(res)
}

// invocation is the run of one node for a request. It is the context's
// command.Continuation.
type invocation struct {
	d        *Dispatcher
	req      *request
	node     *command.Node
	ctx      *command.Context
	mods     []command.ModifierSpec
	execType string
	usage    bool

	resumed  atomic.Bool
	finished atomic.Bool
}

func (d *Dispatcher) newInvocation(req *request, n *command.Node) *invocation {
	inv := &invocation{
		d:        d,
		req:      req,
		node:     n,
		execType: command.ExecutorType(n.Executor()),
	}
	inv.ctx = command.NewContext(req.ctx, d.services, n, req.actor, command.ContextOptions{
		InvocationID: req.id,
		Continuation: inv,
	})
	return inv
}

// Resume runs the executor stage of a deferred invocation on the foreground
// loop. Only the first call has any effect.
func (inv *invocation) Resume() {
	if !inv.resumed.CompareAndSwap(false, true) {
		return
	}
	inv.d.submit(func() {
		if inv.finished.Load() {
			return
		}
		inv.execute()
	}, false)
}

// Resolve ends a deferred invocation with r on the foreground loop.
func (inv *invocation) Resolve(r command.Result) {
	inv.d.submit(func() { inv.finish(r) }, false)
}

// guard runs a pre-execution stage, turning a panic into a stopping Fail.
func (inv *invocation) guard(stage string, fn func() (command.Result, bool)) (r command.Result, stop bool) {
	defer func() {
		if p := recover(); p != nil {
			inv.ctx.Logger().Error("Stage panicked", "stage", stage, "panic", p, "stack", string(debug.Stack()))
			err := &command.ExecutorError{Command: inv.node.Key(), Stage: stage, Panic: p}
			r, stop = command.FailWith(err, inv.ctx.Message("command.error.executor", inv.node.Path())), true
		}
	}()
	return fn()
}

// settle handles a short-circuit result from a pre-execution stage.
func (inv *invocation) settle(r command.Result) command.Result {
	if r.IsContinue() {
		return r
	}
	return inv.finish(r)
}

func (inv *invocation) execute() command.Result {
	for _, ic := range inv.d.interceptors {
		inv.safely("interceptor pre hook", func() error {
			ic.OnPreCommand(inv.execType, inv.node, inv.ctx)
			return nil
		})
	}

	if inv.node.Metadata().Async {
		inv.ctx.Hold()
		inv.d.submit(func() {
			r := inv.run()
			inv.d.submit(func() {
				inv.ctx.Release()
				inv.finish(r)
			}, false)
		}, true)
		return command.Continue()
	}

	r := inv.run()
	if r.IsContinue() {
		return r
	}
	return inv.finish(r)
}

// run calls the executor body, converting errors and panics to Fail.
func (inv *invocation) run() (r command.Result) {
	defer func() {
		if p := recover(); p != nil {
			inv.ctx.Logger().Error("Executor panicked", "panic", p, "stack", string(debug.Stack()))
			err := &command.ExecutorError{Command: inv.node.Key(), Panic: p}
			r = command.FailWith(err, inv.ctx.Message("command.error.executor", inv.node.Path()))
		}
	}()
	res, err := inv.node.Executor().Execute(inv.ctx)
	if err != nil {
		return inv.d.executorFailure(inv, err)
	}
	return res
}

// finish applies a terminal result once: completion hooks on Success,
// fail-actions and the message on Fail, then every post hook.
func (inv *invocation) finish(r command.Result) command.Result {
	if r.IsContinue() {
		return r
	}
	c := inv.ctx
	if r.Outcome() == command.OutcomeUnset {
		r = inv.d.executorFailure(inv, errNoResult)
	}
	if !inv.finished.CompareAndSwap(false, true) {
		c.Logger().Warn("Invocation already resolved, dropping result", "outcome", r.Outcome().String())
		return r
	}

	switch {
	case r.IsSuccess():
		if !inv.usage {
			for _, spec := range inv.mods {
				inv.safely("modifier "+spec.Modifier.Name()+" completion", func() error {
					return spec.Modifier.OnCompletion(c)
				})
			}
		}
	case r.IsFail():
		for _, action := range c.FailActions() {
			inv.safely("fail action", func() error {
				action(c.Actor())
				return nil
			})
		}
		c.SendText(r.Message())
	}

	for _, ic := range inv.d.interceptors {
		inv.safely("interceptor post hook", func() error {
			ic.OnPostCommand(inv.execType, inv.node, c, r)
			return nil
		})
	}

	inv.d.logger.Info("Command resolved",
		"invocation_id", inv.req.id,
		"command", inv.node.Key(),
		"actor", inv.req.actor.Name(),
		"outcome", r.Outcome().String(),
		"duration_ms", time.Since(inv.req.started).Milliseconds(),
		"error", errString(r.Err()),
	)
	inv.req.notify(r)
	inv.req.release()
	return r
}

// safely runs a hook, logging its error or panic without propagating it.
func (inv *invocation) safely(what string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			inv.ctx.Logger().Error("Hook panicked", "hook", what, "panic", p, "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		inv.ctx.Logger().Error("Hook failed", "hook", what, "error", err)
	}
}
