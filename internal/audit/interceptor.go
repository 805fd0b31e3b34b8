package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/log"
)

// Interceptor appends a command_log row for every resolved invocation and
// publishes command.started / command.completed events.
type Interceptor struct {
	log    *Log
	hub    *events.Hub
	now    func() time.Time
	logger *slog.Logger

	started sync.Map // invocation id -> time.Time
}

// NewInterceptor builds an Interceptor. Either l or hub may be nil.
func NewInterceptor(l *Log, hub *events.Hub) *Interceptor {
	return &Interceptor{
		log:    l,
		hub:    hub,
		now:    time.Now,
		logger: log.WithComponent("audit"),
	}
}

func (i *Interceptor) OnPreCommand(executorType string, n *command.Node, c *command.Context) {
	i.started.Store(c.InvocationID(), i.now())
	if i.hub != nil {
		i.hub.Publish(events.CommandStarted, map[string]any{
			"invocation_id": c.InvocationID(),
			"command":       n.Key(),
			"actor":         c.Actor().Name(),
			"executor":      executorType,
		})
	}
}

func (i *Interceptor) OnPostCommand(executorType string, n *command.Node, c *command.Context, r command.Result) {
	completed := i.now()
	started := completed
	if v, ok := i.started.LoadAndDelete(c.InvocationID()); ok {
		started = v.(time.Time)
	}

	e := Entry{
		InvocationID: c.InvocationID(),
		Command:      n.Key(),
		Actor:        c.Actor().Name(),
		ActorKind:    c.Actor().Kind().String(),
		Executor:     executorType,
		Outcome:      r.Outcome().String(),
		Message:      r.Message(),
		StartedAt:    started,
		CompletedAt:  completed,
		DurationMS:   completed.Sub(started).Milliseconds(),
	}
	if err := r.Err(); err != nil {
		e.Error = err.Error()
	}

	if i.log != nil {
		if _, err := i.log.Append(c.Ctx(), e); err != nil {
			i.logger.Error("Failed to append command log", "invocation_id", e.InvocationID, "error", err)
		}
	}
	if i.hub != nil {
		i.hub.Publish(events.CommandCompleted, e)
	}
}
