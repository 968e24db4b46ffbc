package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// Manager grants and renews leases on jobs. All state lives in the job
// store; the Manager is stateless and safe for concurrent use.
type Manager struct {
	store    job.Store
	duration time.Duration
	logger   *slog.Logger
}

// NewManager creates a lease manager. duration is how long each grant
// (and each renewal) holds the job before the sweeper may reclaim it.
func NewManager(store job.Store, duration time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		duration: duration,
		logger:   logger,
	}
}

// Duration returns the configured lease duration.
func (m *Manager) Duration() time.Duration { return m.duration }

// Acquire claims the next ready job from the given queues for workerID.
// A fresh lease token is generated for the grant; the previous token (if
// the job was leased before and stalled) is invalidated by the claim.
// Returns (nil, nil) when no job is ready.
func (m *Manager) Acquire(ctx context.Context, queues []string, workerID id.WorkerID) (*job.Job, error) {
	now := time.Now().UTC()
	claim := job.Claim{
		WorkerID:   workerID,
		Token:      id.NewLeaseToken(),
		Now:        now,
		LeaseUntil: now.Add(m.duration),
	}

	j, err := m.store.ClaimNextReady(ctx, queues, claim)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, nil
	}

	// The store filters gated jobs, so an unsatisfied parent here means a
	// store defect. Return the job rather than run it early.
	if err := m.parentsCompleted(ctx, j); err != nil {
		if relErr := m.Release(ctx, j, claim.Token, 0); relErr != nil {
			m.logger.Error("release of gated job failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", relErr.Error()),
			)
		}
		return nil, err
	}

	m.logger.Debug("lease granted",
		slog.String("job_id", j.ID.String()),
		slog.String("worker_id", workerID.String()),
		slog.Time("lease_until", claim.LeaseUntil),
	)
	return j, nil
}

// parentsCompleted verifies every parent of j has completed, reporting
// ErrDependencyUnsatisfied otherwise. Missing parents count as
// unsatisfied.
func (m *Manager) parentsCompleted(ctx context.Context, j *job.Job) error {
	for _, parentID := range j.ParentRefs {
		parent, err := m.store.GetJob(ctx, parentID)
		if err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				return fmt.Errorf("conveyor: parent %s missing: %w", parentID, conveyor.ErrDependencyUnsatisfied)
			}
			return err
		}
		if parent.State != job.StateCompleted {
			return fmt.Errorf("conveyor: parent %s in state %q: %w", parentID, parent.State, conveyor.ErrDependencyUnsatisfied)
		}
	}
	return nil
}

// AcquireWait claims the next ready job, blocking until one becomes
// available or timeout elapses. It uses the store's readiness notification
// rather than polling. Returns (nil, nil) on timeout.
func (m *Manager) AcquireWait(ctx context.Context, queues []string, workerID id.WorkerID, timeout time.Duration) (*job.Job, error) {
	deadline := time.Now().Add(timeout)

	for {
		j, err := m.Acquire(ctx, queues, workerID)
		if err != nil {
			return nil, err
		}
		if j != nil {
			return j, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		woken, err := m.store.WaitReady(ctx, queues, remaining)
		if err != nil {
			return nil, err
		}
		if !woken {
			// Timed out waiting; one final claim attempt covers a job
			// that became ready between the last claim and the wait.
			j, err := m.Acquire(ctx, queues, workerID)
			if err != nil {
				return nil, err
			}
			return j, nil
		}
	}
}

// Release returns a leased job to the queue without recording an attempt
// or a stall. The pool uses it when a claim cannot run yet (queue paused
// or rate-limited); retryIn spaces out the next claim of the same job.
func (m *Manager) Release(ctx context.Context, j *job.Job, token id.LeaseToken, retryIn time.Duration) error {
	released := *j
	released.State = job.StateWaiting
	released.ReadyAt = time.Now().UTC().Add(retryIn)
	released.ClearLease()
	released.Touch()
	return m.store.CASJob(ctx, &released, job.StateActive, token)
}

// Renew extends the lease on j by extension, or by the configured
// duration when extension is zero. The presented token must match the
// job's current lease; otherwise the lease was lost (swept or
// re-granted) and ErrInvalidLease is returned. The token itself is
// unchanged by renewal — tokens rotate per grant, not per renewal.
func (m *Manager) Renew(ctx context.Context, j *job.Job, token id.LeaseToken, extension time.Duration) error {
	if extension <= 0 {
		extension = m.duration
	}
	until := time.Now().UTC().Add(extension)

	renewed := *j
	renewed.LeaseExpiresAt = &until
	renewed.Touch()

	if err := m.store.CASJob(ctx, &renewed, job.StateActive, token); err != nil {
		return err
	}

	j.LeaseExpiresAt = &until
	j.UpdatedAt = renewed.UpdatedAt
	return nil
}
