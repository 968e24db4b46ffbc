package dlq

import (
	"context"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a DLQ service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push builds a DLQ Entry from a terminally failed job and persists it.
// It returns the entry so the caller can reference its ID. Errors are
// surfaced, never swallowed: the caller must not finalize the job's dead
// transition unless Push succeeds.
func (s *Service) Push(ctx context.Context, j *job.Job, jobErr error, reason Reason) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		ID:           id.NewDLQID(),
		JobID:        j.ID,
		JobName:      j.Name,
		Queue:        j.Queue,
		Payload:      j.Payload,
		Reason:       reason,
		AttemptsMade: j.AttemptsMade,
		MaxAttempts:  j.MaxAttempts,
		StallCount:   j.StallCount,
		FailedAt:     now,
		CreatedAt:    now,
	}
	if jobErr != nil {
		entry.Error = jobErr.Error()
	}
	if err := s.store.PushDLQ(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Requeue derives a fresh job from a DLQ entry and enqueues it: new ID,
// zero attempts and stalls, original payload, immediate eligibility. The
// entry is retained with RequeuedAt set, so requeueing (and whatever
// happens to the new job) never disturbs the dead-letter record.
func (s *Service) Requeue(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Name:        entry.JobName,
		Queue:       entry.Queue,
		Payload:     entry.Payload,
		State:       job.StateWaiting,
		MaxAttempts: entry.MaxAttempts,
		ReadyAt:     now,
	}

	if err := s.jobStore.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.MarkRequeued(ctx, entryID, now); err != nil {
		// The job is already enqueued; report the marking failure but
		// hand the job back.
		return j, err
	}

	return j, nil
}

// DLQStore returns the underlying DLQ store for direct access
// to List, Get, Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
