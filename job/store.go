package job

import (
	"context"
	"time"

	"github.com/xraph/conveyor/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by job state. Empty means all states.
	State State
}

// Claim carries the lease fields a store stamps onto the job it hands out.
// The caller (the lease manager) generates the token; the store applies it
// atomically with the selection so two claims can never observe the same
// job.
type Claim struct {
	WorkerID   id.WorkerID
	Token      id.LeaseToken
	Now        time.Time
	LeaseUntil time.Time
}

// Store defines the persistence contract for jobs. Implementations must
// make every method atomic with respect to each other: the store is the
// single source of truth and the engine keeps no authoritative in-process
// state.
type Store interface {
	// CreateJob persists a new job in waiting or delayed state and assigns
	// its insertion Sequence. Returns ErrJobAlreadyExists on duplicate ID.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job unconditionally.
	// Reserved for administrative writes that cannot race a worker
	// (e.g. setting CancelRequested). State transitions go through CASJob.
	UpdateJob(ctx context.Context, j *Job) error

	// CASJob persists j only if the stored job's state equals fromState
	// and its lease token equals fromToken (id.Nil matches a cleared
	// token). On a token mismatch it returns ErrInvalidLease; on a state
	// mismatch, ErrInvalidState. No partial writes: on error the stored
	// job is untouched.
	CASJob(ctx context.Context, j *Job, fromState State, fromToken id.LeaseToken) error

	// ClaimNextReady atomically selects the highest-priority, earliest-
	// inserted waiting job in the given queues whose ReadyAt has elapsed
	// and whose parents have all completed, stamps the claim's lease
	// fields onto it, sets it active, and returns it. Due delayed jobs
	// are considered as if already promoted. Cancel-requested jobs found
	// in the ready order are discarded, not returned. Returns (nil, nil)
	// when nothing is ready.
	ClaimNextReady(ctx context.Context, queues []string, claim Claim) (*Job, error)

	// PromoteDueJobs moves every delayed job with ReadyAt <= now to
	// waiting, breaking ReadyAt ties by job ID. Returns how many jobs
	// were promoted.
	PromoteDueJobs(ctx context.Context, now time.Time) (int, error)

	// ExpiredLeaseJobs returns active jobs whose LeaseExpiresAt is before
	// now. Stall-recovery candidates; the sweeper resolves each via CASJob
	// so a racing worker report wins.
	ExpiredLeaseJobs(ctx context.Context, now time.Time) ([]*Job, error)

	// DependentsOf returns non-terminal jobs that list jobID in their
	// ParentRefs. Used on completion to promote satisfied dependents.
	DependentsOf(ctx context.Context, jobID id.JobID) ([]*Job, error)

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByState returns jobs matching the given state.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// WaitReady blocks until a job in one of the given queues may have
	// become ready (a create, promotion, or re-queue occurred), the
	// timeout elapses, or ctx is done. Returns true if woken by a
	// notification. Implementations use their backend's notification
	// primitive rather than polling.
	WaitReady(ctx context.Context, queues []string, timeout time.Duration) (bool, error)
}
