package job

import (
	"time"

	"github.com/xraph/conveyor/id"
)

// Options configures per-job behavior such as retries, queue, priority,
// delay, and dependencies.
type Options struct {
	// MaxAttempts is the maximum number of execution attempts before the
	// job is dead-lettered. Must be at least 1.
	MaxAttempts int

	// Queue is the queue name this job should be enqueued to.
	Queue string

	// Priority determines dispatch ordering. Higher values are claimed
	// first; equal priorities are FIFO.
	Priority int

	// Timeout is the maximum duration a job may run before its context
	// is cancelled.
	Timeout time.Duration

	// Delay defers eligibility: the job enters the delay set and becomes
	// dispatchable after ReadyAt = now + Delay. Zero means immediate.
	Delay time.Duration

	// Parents lists jobs that must complete before this job may be
	// dispatched, regardless of priority or readiness.
	Parents []id.JobID
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Queue:       "default",
		Priority:    0,
		Timeout:     5 * time.Minute,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithMaxAttempts sets the maximum number of execution attempts.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithQueue sets the queue name for the job.
func WithQueue(q string) Option {
	return func(o *Options) {
		o.Queue = q
	}
}

// WithPriority sets the job priority. Higher values are claimed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithDelay schedules the job for execution after the given delay.
func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.Delay = d
	}
}

// WithParents gates the job on completion of the given parent jobs.
func WithParents(parents ...id.JobID) Option {
	return func(o *Options) {
		o.Parents = append(o.Parents, parents...)
	}
}
