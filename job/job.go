package job

import (
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateWaiting means the job is eligible (or about to be eligible)
	// for dispatch and sits in the ready ordering.
	StateWaiting State = "waiting"
	// StateDelayed means the job has a future ReadyAt and is parked in
	// the delay set until promotion.
	StateDelayed State = "delayed"
	// StateActive means a worker holds a live lease on the job.
	StateActive State = "active"
	// StateCompleted means the job finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means the job failed terminally but its dead-letter
	// record has not been confirmed yet. Externally transient: the job
	// settles in StateDead once the DLQ append succeeds.
	StateFailed State = "failed"
	// StateDead means the job exhausted its retries, was classified
	// non-retryable, or exceeded the stall limit, and has a dead-letter
	// record. Terminal.
	StateDead State = "dead"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateDead
}

// transitions is the set of legal state transitions. The store's CAS
// operation is the only mutator of State; everything else goes through it.
var transitions = map[State][]State{
	StateWaiting:   {StateActive, StateDelayed},
	StateDelayed:   {StateWaiting},
	StateActive:    {StateCompleted, StateDelayed, StateWaiting, StateFailed, StateDead},
	StateFailed:    {StateDead},
	StateCompleted: {},
	StateDead:      {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents a unit of work processed under a lease.
type Job struct {
	conveyor.Entity

	ID      id.JobID `json:"id"`
	Name    string   `json:"name"`
	Queue   string   `json:"queue"`
	Payload []byte   `json:"payload"`
	State   State    `json:"state"`

	// Priority orders dispatch: higher values first. Equal priorities are
	// FIFO by Sequence.
	Priority int `json:"priority"`

	// Sequence is a store-assigned monotonic insertion counter. It breaks
	// priority ties deterministically; CreatedAt can collide, Sequence
	// cannot.
	Sequence uint64 `json:"sequence"`

	// MaxAttempts is the retry budget (always >= 1). AttemptsMade counts
	// worker-reported failures only; lease expiries go to StallCount.
	MaxAttempts  int `json:"max_attempts"`
	AttemptsMade int `json:"attempts_made"`
	StallCount   int `json:"stall_count"`

	LastError string `json:"last_error,omitempty"`
	Result    []byte `json:"result,omitempty"`

	// Lease fields. Non-zero iff State == StateActive.
	LeaseToken     id.LeaseToken `json:"lease_token,omitempty"`
	WorkerID       id.WorkerID   `json:"worker_id,omitempty"`
	LeaseExpiresAt *time.Time    `json:"lease_expires_at,omitempty"`

	// ReadyAt is the earliest dispatch time: CreatedAt for immediate jobs,
	// CreatedAt+delay for delayed ones, now+backoff after a failure.
	ReadyAt time.Time `json:"ready_at"`

	// ParentRefs gates dispatch on every listed job reaching completed.
	ParentRefs []id.JobID `json:"parent_refs,omitempty"`

	// CancelRequested marks an active job for discard: once its lease
	// expires (naturally or force-expired) the stall sweeper drops it
	// instead of re-queuing.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	Timeout     time.Duration `json:"timeout,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Leased reports whether the job currently carries lease fields.
func (j *Job) Leased() bool {
	return !j.LeaseToken.IsNil() && j.LeaseExpiresAt != nil
}

// ClearLease removes all lease fields. Called on every transition out of
// StateActive.
func (j *Job) ClearLease() {
	j.LeaseToken = id.Nil
	j.WorkerID = id.Nil
	j.LeaseExpiresAt = nil
}
