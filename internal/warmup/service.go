// Package warmup tracks pending warmups per actor and cancels them when the
// actor does something that disqualifies the wait, such as moving.
package warmup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
)

// Event is something an actor did that may cancel a warmup.
type Event int

const (
	EventMove Event = iota
	EventDamage
)

func (e Event) String() string {
	switch e {
	case EventMove:
		return "move"
	case EventDamage:
		return "damage"
	}
	return "unknown"
}

// ParseEvent maps "move" and "damage" to an Event.
func ParseEvent(s string) (Event, bool) {
	switch s {
	case "move":
		return EventMove, true
	case "damage":
		return EventDamage, true
	}
	return 0, false
}

// Scheduler is the part of the scheduler a warmup needs.
type Scheduler interface {
	Submit(task scheduler.Task, opts scheduler.Options) *scheduler.Handle
}

type pending struct {
	command  string
	handle   *scheduler.Handle
	onCancel func()
}

// Service owns at most one pending warmup per actor.
type Service struct {
	cfg    config.WarmupConfig
	sched  Scheduler
	events *events.Hub
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pending
}

func New(cfg config.WarmupConfig, sched Scheduler, hub *events.Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		sched:   sched,
		events:  hub,
		logger:  logger.With("component", "warmup"),
		pending: make(map[string]*pending),
	}
}

// Start schedules onFire on the foreground loop after d. A warmup already
// pending for the actor is cancelled first. onCancel runs if the warmup is
// cancelled before it fires; exactly one of the two callbacks ever runs.
func (s *Service) Start(actor, command string, d time.Duration, onFire, onCancel func()) {
	s.Cancel(actor)

	p := &pending{command: command, onCancel: onCancel}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[actor] = p
	p.handle = s.sched.Submit(func(context.Context) {
		s.mu.Lock()
		if s.pending[actor] == p {
			delete(s.pending, actor)
		}
		s.mu.Unlock()
		onFire()
	}, scheduler.Options{Delay: d})

	s.logger.Debug("Warmup started", "actor", actor, "command", command, "delay", d)
	if s.events != nil {
		s.events.Publish(events.WarmupStarted, map[string]any{
			"actor":   actor,
			"command": command,
			"delay":   d.String(),
		})
	}
}

// Notify reports an actor event. It cancels the actor's pending warmup when
// the configuration says the event disqualifies it, and reports whether a
// warmup was cancelled.
func (s *Service) Notify(actor string, ev Event) bool {
	switch ev {
	case EventMove:
		if !s.cfg.CancelOnMove {
			return false
		}
	case EventDamage:
		if !s.cfg.CancelOnDamage {
			return false
		}
	default:
		return false
	}
	return s.cancel(actor, ev.String())
}

// Cancel drops the actor's pending warmup unconditionally.
func (s *Service) Cancel(actor string) bool {
	return s.cancel(actor, "replaced")
}

func (s *Service) cancel(actor, reason string) bool {
	s.mu.Lock()
	p, ok := s.pending[actor]
	if !ok || !p.handle.Cancel() {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, actor)
	s.mu.Unlock()

	s.logger.Debug("Warmup cancelled", "actor", actor, "command", p.command, "reason", reason)
	if s.events != nil {
		s.events.Publish(events.WarmupCancelled, map[string]any{
			"actor":   actor,
			"command": p.command,
			"reason":  reason,
		})
	}
	p.onCancel()
	return true
}

// Pending reports whether the actor has a warmup waiting.
func (s *Service) Pending(actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[actor]
	return ok
}
