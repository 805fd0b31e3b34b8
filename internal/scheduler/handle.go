package scheduler

import (
	"sync/atomic"
	"time"
)

// State is the lifecycle position of a submitted task.
type State int32

const (
	StatePending State = iota
	// StateClaimed means the task started running; it can no longer be cancelled.
	StateClaimed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateClaimed:
		return "claimed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Handle refers to one submitted task. Running and cancelling both claim the
// handle with a compare-and-swap from pending, so exactly one of them wins.
type Handle struct {
	s     *Scheduler
	task  Task
	opts  Options
	timer *time.Timer
	state atomic.Int32
}

// Cancel prevents the task from running. It reports true only when this call
// won the claim; false means the task already ran, is running, or was
// cancelled before.
func (h *Handle) Cancel() bool {
	if !h.state.CompareAndSwap(int32(StatePending), int32(StateCancelled)) {
		return false
	}
	if h.s != nil {
		h.s.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.s.mu.Unlock()
		h.s.forget(h)
	}
	return true
}

// State returns the current state of the handle.
func (h *Handle) State() State { return State(h.state.Load()) }

func (h *Handle) claim() bool {
	return h.state.CompareAndSwap(int32(StatePending), int32(StateClaimed))
}
