package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/events"
)

// ErrStopped is returned when work is offered to a stopped scheduler.
var ErrStopped = errors.New("scheduler stopped")

// Task is a unit of work. ctx is the scheduler run context.
type Task func(ctx context.Context)

// Options controls where and when a task runs.
type Options struct {
	// Async runs the task on the background worker pool instead of the
	// foreground loop.
	Async bool
	// Delay postpones the task without holding any goroutine.
	Delay time.Duration
}

// Scheduler runs tasks on one foreground loop and a pool of background
// workers. Every actor-visible side effect belongs on the foreground loop.
type Scheduler struct {
	cfg    config.SchedulerConfig
	events *events.Hub
	logger *slog.Logger

	foreground chan *Handle
	background chan *Handle

	stopCh  chan struct{}
	group   *errgroup.Group
	started atomic.Bool
	stopped atomic.Bool

	mu      sync.Mutex
	pending map[*Handle]struct{}
}

// New creates a Scheduler. Tasks may be submitted before Start; they queue
// until the loops run.
func New(cfg config.SchedulerConfig, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:        cfg,
		events:     hub,
		logger:     logger.With("component", "scheduler"),
		foreground: make(chan *Handle, cfg.QueueSize),
		background: make(chan *Handle, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		pending:    make(map[*Handle]struct{}),
	}
}

// Start launches the foreground loop and the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already started")
	}
	s.logger.Info("Starting scheduler", "workers", s.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		s.loop(gctx, s.foreground)
		return nil
	})
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			s.loop(gctx, s.background)
			return nil
		})
	}
	return nil
}

// Stop halts the loops and cancels every pending delayed task. Queued tasks
// that have not started are dropped.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Stopping scheduler")
	close(s.stopCh)

	s.mu.Lock()
	pending := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		pending = append(pending, h)
	}
	s.mu.Unlock()
	for _, h := range pending {
		h.Cancel()
	}

	if s.group != nil {
		_ = s.group.Wait()
	}
	s.logger.Info("Scheduler stopped", "dropped_delayed", len(pending))
}

// Submit schedules task and returns a handle that can cancel it until it
// starts running.
func (s *Scheduler) Submit(task Task, opts Options) *Handle {
	h := &Handle{s: s, task: task, opts: opts}
	if s.stopped.Load() {
		h.state.Store(int32(StateCancelled))
		s.logger.Warn("Task submitted after stop; dropping")
		return h
	}

	if opts.Delay <= 0 {
		s.enqueue(h)
		return h
	}

	s.mu.Lock()
	s.pending[h] = struct{}{}
	h.timer = time.AfterFunc(opts.Delay, func() {
		s.forget(h)
		s.enqueue(h)
	})
	s.mu.Unlock()
	return h
}

// RunSync runs fn on the foreground loop and waits for it to finish. It must
// not be called from the foreground loop itself.
func (s *Scheduler) RunSync(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	h := s.Submit(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}, Options{})
	if h.State() == StateCancelled {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	case <-s.stopCh:
		if h.Cancel() {
			return ErrStopped
		}
		<-done
		return nil
	}
}

func (s *Scheduler) enqueue(h *Handle) {
	if h.State() != StatePending {
		return
	}
	ch := s.foreground
	if h.opts.Async {
		ch = s.background
	}
	select {
	case ch <- h:
	case <-s.stopCh:
	}
}

func (s *Scheduler) forget(h *Handle) {
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context, in <-chan *Handle) {
	for {
		select {
		case h := <-in:
			s.run(ctx, h)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Warn("Scheduler context cancelled, stopping loop")
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, h *Handle) {
	if !h.claim() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", "panic", r, "stack", string(debug.Stack()))
			if s.events != nil {
				s.events.Publish(events.SchedulerPanic, map[string]any{
					"panic": fmt.Sprint(r),
					"async": h.opts.Async,
				})
			}
		}
	}()
	h.task(ctx)
}
