package dlq

import (
	"time"

	"github.com/xraph/conveyor/id"
)

// Reason records why a job was dead-lettered.
type Reason string

const (
	// ReasonExhausted means the job failed with AttemptsMade reaching
	// MaxAttempts.
	ReasonExhausted Reason = "exhausted"
	// ReasonNonRetryable means the retry policy (or an explicit
	// retryable=false failure report) refused to retry.
	ReasonNonRetryable Reason = "non-retryable"
	// ReasonStallLimit means the job's lease expired MaxStalledCount
	// times without any worker report.
	ReasonStallLimit Reason = "exceeded-stall-limit"
)

// Entry represents a terminally failed job held for inspection or
// manual requeue.
type Entry struct {
	ID           id.DLQID   `json:"id"`
	JobID        id.JobID   `json:"job_id"`
	JobName      string     `json:"job_name"`
	Queue        string     `json:"queue"`
	Payload      []byte     `json:"payload"`
	Error        string     `json:"error"`
	Reason       Reason     `json:"reason"`
	AttemptsMade int        `json:"attempts_made"`
	MaxAttempts  int        `json:"max_attempts"`
	StallCount   int        `json:"stall_count"`
	FailedAt     time.Time  `json:"failed_at"`
	RequeuedAt   *time.Time `json:"requeued_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
