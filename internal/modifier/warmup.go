package modifier

import (
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// Warmup defers the executor by the context's warmup. The invocation returns
// Continue right away and is resumed, or failed with a cancellation message,
// through the context's continuation.
type Warmup struct {
	command.BaseModifier
	svc *warmup.Service
}

func NewWarmup(svc *warmup.Service) *Warmup {
	return &Warmup{svc: svc}
}

func (m *Warmup) Name() string { return "warmup" }

func (m *Warmup) PreExecute(c *command.Context) (command.Result, bool) {
	cont := c.Continuation()
	if cont == nil || c.Warmup() <= 0 || c.IsConsoleAndBypass() {
		return command.Result{}, false
	}

	path := c.Node().Path()
	c.SendMessage("warmup.start", path, c.Warmup())
	cancelled := c.Fail("warmup.cancelled", path)
	m.svc.Start(c.UniqueID(), c.CommandKey(), c.Warmup(), cont.Resume, func() {
		cont.Resolve(cancelled)
	})
	return c.Continue(), true
}
