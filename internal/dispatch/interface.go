package dispatch

import "github.com/mattjoyce/cmdgate/internal/scheduler"

// Scheduler is the part of the scheduler the dispatcher needs.
type Scheduler interface {
	Submit(task scheduler.Task, opts scheduler.Options) *scheduler.Handle
}
