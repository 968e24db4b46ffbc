// Package ext defines the extension system for Conveyor.
// Extensions are notified of lifecycle events (job enqueued, acquired,
// completed, stalled, dead, etc.) and can react to them — logging,
// metrics, alerting.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully created.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobAcquired is called when a worker is granted a lease on a job.
type JobAcquired interface {
	OnJobAcquired(ctx context.Context, j *job.Job, workerID id.WorkerID) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobRetrying is called when a job fails but is re-queued with a delay.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, readyAt time.Time) error
}

// JobStalled is called when a lease expires without a worker report and
// the job is returned to waiting. Stalls do not consume retry attempts.
type JobStalled interface {
	OnJobStalled(ctx context.Context, j *job.Job, stallCount int) error
}

// JobDead is called when a job is dead-lettered (exhausted retries,
// non-retryable classification, or exceeded stall limit).
type JobDead interface {
	OnJobDead(ctx context.Context, j *job.Job, err error) error
}

// JobRequeued is called when a dead-letter entry is requeued as a fresh job.
type JobRequeued interface {
	OnJobRequeued(ctx context.Context, entryID id.DLQID, newJob *job.Job) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// CronFired is called when a cron entry fires and enqueues a job.
type CronFired interface {
	OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
