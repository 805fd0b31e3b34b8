// Package scheduler runs tasks on a single foreground loop or a background
// worker pool, optionally after a delay.
//
// Delayed tasks are backed by time.AfterFunc and hold no goroutine while
// waiting. A Handle can be cancelled until the task is claimed for running;
// cancel and run race through one compare-and-swap, so a task either runs
// once or never.
package scheduler
