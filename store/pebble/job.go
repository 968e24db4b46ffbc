package pebble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	pebbledb "github.com/cockroachdb/pebble"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// CreateJob stores the job, assigns its insertion sequence, and writes
// its index entries in the same batch.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jID := j.ID.String()
	if _, err := s.get(jobKey(jID)); err == nil {
		return conveyor.ErrJobAlreadyExists
	} else if !errors.Is(err, pebbledb.ErrNotFound) {
		return fmt.Errorf("conveyor/pebble: create job: %w", err)
	}

	b := s.db.NewBatch()
	j.Sequence = s.nextSeq(b)

	if err := setJSON(b, jobKey(jID), j); err != nil {
		return err
	}
	s.indexJob(b, j, jID)
	for _, pid := range j.ParentRefs {
		if err := b.Set(childIdxKey(pid.String(), jID), nil, nil); err != nil {
			return fmt.Errorf("conveyor/pebble: create job: %w", err)
		}
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: create job: %w", err)
	}

	if j.State == job.StateWaiting {
		s.notifyReady()
	}
	return nil
}

// indexJob writes the index entry for j's current state into the batch.
func (s *Store) indexJob(b *pebbledb.Batch, j *job.Job, jID string) {
	switch j.State {
	case job.StateWaiting:
		_ = b.Set(readyIdxKey(j.Queue, j.Priority, j.Sequence), []byte(jID), nil) //nolint:errcheck // batch writes only fail on commit
	case job.StateDelayed:
		_ = b.Set(delayIdxKey(j.ReadyAt, jID), nil, nil) //nolint:errcheck // batch writes only fail on commit
	case job.StateActive:
		if j.LeaseExpiresAt != nil {
			_ = b.Set(activeIdxKey(*j.LeaseExpiresAt, jID), nil, nil) //nolint:errcheck // batch writes only fail on commit
		}
	}
}

// unindexJob removes the index entry matching j's stored state.
func (s *Store) unindexJob(b *pebbledb.Batch, j *job.Job, jID string) {
	switch j.State {
	case job.StateWaiting:
		_ = b.Delete(readyIdxKey(j.Queue, j.Priority, j.Sequence), nil) //nolint:errcheck // batch writes only fail on commit
	case job.StateDelayed:
		_ = b.Delete(delayIdxKey(j.ReadyAt, jID), nil) //nolint:errcheck // batch writes only fail on commit
	case job.StateActive:
		if j.LeaseExpiresAt != nil {
			_ = b.Delete(activeIdxKey(*j.LeaseExpiresAt, jID), nil) //nolint:errcheck // batch writes only fail on commit
		}
	}
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var j job.Job
	if err := s.getJSON(jobKey(jobID.String()), &j, conveyor.ErrJobNotFound); err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJob persists changes to an existing job unconditionally.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jID := j.ID.String()
	var stored job.Job
	if err := s.getJSON(jobKey(jID), &stored, conveyor.ErrJobNotFound); err != nil {
		return err
	}

	j.UpdatedAt = time.Now().UTC()

	b := s.db.NewBatch()
	s.unindexJob(b, &stored, jID)
	if err := setJSON(b, jobKey(jID), j); err != nil {
		return err
	}
	s.indexJob(b, j, jID)
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: update job: %w", err)
	}

	if j.State == job.StateWaiting {
		s.notifyReady()
	}
	return nil
}

// CASJob persists j only if the stored job matches fromState and
// fromToken. The token check runs first: a stale token is a lease error
// regardless of what state the job has since moved to.
func (s *Store) CASJob(ctx context.Context, j *job.Job, fromState job.State, fromToken id.LeaseToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jID := j.ID.String()
	var stored job.Job
	if err := s.getJSON(jobKey(jID), &stored, conveyor.ErrJobNotFound); err != nil {
		return err
	}

	if stored.LeaseToken != fromToken {
		return conveyor.ErrInvalidLease
	}
	if stored.State != fromState {
		return conveyor.ErrInvalidState
	}
	if j.State != fromState && !job.CanTransition(fromState, j.State) {
		return conveyor.ErrInvalidState
	}

	j.UpdatedAt = time.Now().UTC()

	b := s.db.NewBatch()
	s.unindexJob(b, &stored, jID)
	if err := setJSON(b, jobKey(jID), j); err != nil {
		return err
	}
	s.indexJob(b, j, jID)
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: cas job: %w", err)
	}

	// Completion can unblock dependents, so it wakes waiters too.
	if j.State == job.StateWaiting || j.State == job.StateCompleted {
		s.notifyReady()
	}
	return nil
}

// readyCandidate is one entry decoded from a queue's ready index.
type readyCandidate struct {
	jobID    string
	priority uint64 // encoded: lower sorts first
	seq      uint64
}

// ClaimNextReady claims the best ready job in the given queues. Runs
// under the store mutex, so selection and lease stamping are atomic.
func (s *Store) ClaimNextReady(ctx context.Context, queues []string, claim job.Claim) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := claim.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Due delayed jobs count as if promoted.
	if _, err := s.promoteDueLocked(now); err != nil {
		return nil, err
	}

	candidates, err := s.readyCandidates(queues)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		var j job.Job
		if err := s.getJSON(jobKey(c.jobID), &j, conveyor.ErrJobNotFound); err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				continue
			}
			return nil, err
		}

		if j.ReadyAt.After(now) {
			continue
		}

		// Cancel-requested jobs reached in ready order are discarded,
		// never handed out.
		if j.CancelRequested {
			if err := s.deleteJobLocked(&j); err != nil {
				return nil, err
			}
			continue
		}

		ok, depErr := s.parentsCompleted(&j)
		if depErr != nil {
			return nil, depErr
		}
		if !ok {
			continue
		}

		until := claim.LeaseUntil
		j.State = job.StateActive
		j.LeaseToken = claim.Token
		j.WorkerID = claim.WorkerID
		j.LeaseExpiresAt = &until
		j.UpdatedAt = now

		b := s.db.NewBatch()
		_ = b.Delete(readyIdxKey(j.Queue, j.Priority, j.Sequence), nil) //nolint:errcheck // batch writes only fail on commit
		if err := setJSON(b, jobKey(c.jobID), &j); err != nil {
			return nil, err
		}
		s.indexJob(b, &j, c.jobID)
		if err := s.commit(b); err != nil {
			return nil, fmt.Errorf("conveyor/pebble: claim job: %w", err)
		}
		return &j, nil
	}

	return nil, nil
}

// readyCandidates merges the per-queue ready indexes into global
// dispatch order. With no queue filter the whole ready index is scanned.
func (s *Store) readyCandidates(queues []string) ([]readyCandidate, error) {
	var candidates []readyCandidate

	collect := func(prefix []byte) error {
		iter, err := s.prefixIter(prefix)
		if err != nil {
			return err
		}
		defer func() { _ = iter.Close() }()

		for ok := iter.First(); ok; ok = iter.Next() {
			key := iter.Key()
			if len(key) < 16 {
				continue
			}
			ord := key[len(key)-16:]
			candidates = append(candidates, readyCandidate{
				jobID:    string(iter.Value()),
				priority: binaryUint64(ord[:8]),
				seq:      binaryUint64(ord[8:]),
			})
		}
		return nil
	}

	if len(queues) == 0 {
		if err := collect([]byte(prefixReadyIdx)); err != nil {
			return nil, err
		}
	} else {
		for _, q := range queues {
			if err := collect(readyQueuePrefix(q)); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].priority != candidates[k].priority {
			return candidates[i].priority < candidates[k].priority
		}
		return candidates[i].seq < candidates[k].seq
	})
	return candidates, nil
}

// parentsCompleted reports whether every parent of j has completed.
func (s *Store) parentsCompleted(j *job.Job) (bool, error) {
	for _, pid := range j.ParentRefs {
		var parent job.Job
		if err := s.getJSON(jobKey(pid.String()), &parent, conveyor.ErrJobNotFound); err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				return false, nil
			}
			return false, err
		}
		if parent.State != job.StateCompleted {
			return false, nil
		}
	}
	return true, nil
}

// PromoteDueJobs moves due delayed jobs to waiting.
func (s *Store) PromoteDueJobs(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoteDueLocked(now)
}

// promoteDueLocked walks the delay index up to now. The index orders
// entries by (ReadyAt, job ID), which fixes the promotion order. Must be
// called with s.mu held.
func (s *Store) promoteDueLocked(now time.Time) (int, error) {
	iter, err := s.prefixIter([]byte(prefixDelayIdx))
	if err != nil {
		return 0, err
	}
	defer func() { _ = iter.Close() }()

	cutoff := uint64(now.UnixMilli())
	b := s.db.NewBatch()
	promoted := 0

	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if timeFromIdx(key, prefixDelayIdx) > cutoff {
			break
		}
		jID := idFromTimeIdx(key, prefixDelayIdx)

		var j job.Job
		if err := s.getJSON(jobKey(jID), &j, conveyor.ErrJobNotFound); err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				_ = b.Delete(append([]byte(nil), key...), nil) //nolint:errcheck // batch writes only fail on commit
				continue
			}
			return 0, err
		}

		j.State = job.StateWaiting
		j.UpdatedAt = now
		_ = b.Delete(append([]byte(nil), key...), nil) //nolint:errcheck // batch writes only fail on commit
		if err := setJSON(b, jobKey(jID), &j); err != nil {
			return 0, err
		}
		_ = b.Set(readyIdxKey(j.Queue, j.Priority, j.Sequence), []byte(jID), nil) //nolint:errcheck // batch writes only fail on commit
		promoted++
	}

	if promoted == 0 {
		_ = b.Close()
		return 0, nil
	}
	if err := s.commit(b); err != nil {
		return 0, fmt.Errorf("conveyor/pebble: promote jobs: %w", err)
	}
	s.notifyReady()
	return promoted, nil
}

// ExpiredLeaseJobs returns active jobs whose lease expired before now.
func (s *Store) ExpiredLeaseJobs(ctx context.Context, now time.Time) ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.prefixIter([]byte(prefixActiveIdx))
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	cutoff := uint64(now.UnixMilli())
	var expired []*job.Job

	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if timeFromIdx(key, prefixActiveIdx) >= cutoff {
			break
		}
		jID := idFromTimeIdx(key, prefixActiveIdx)

		var j job.Job
		if err := s.getJSON(jobKey(jID), &j, conveyor.ErrJobNotFound); err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				continue
			}
			return nil, err
		}
		if j.State != job.StateActive {
			continue
		}
		expired = append(expired, &j)
	}

	sort.Slice(expired, func(i, k int) bool {
		return expired[i].Sequence < expired[k].Sequence
	})
	return expired, nil
}

// DependentsOf returns non-terminal jobs that list jobID as a parent.
func (s *Store) DependentsOf(ctx context.Context, jobID id.JobID) ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := childIdxPrefix(jobID.String())
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var deps []*job.Job
	for ok := iter.First(); ok; ok = iter.Next() {
		childID := string(iter.Key()[len(prefix):])

		var j job.Job
		if err := s.getJSON(jobKey(childID), &j, conveyor.ErrJobNotFound); err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				continue
			}
			return nil, err
		}
		if j.State.Terminal() {
			continue
		}
		deps = append(deps, &j)
	}

	sort.Slice(deps, func(i, k int) bool {
		return deps[i].Sequence < deps[k].Sequence
	})
	return deps, nil
}

// DeleteJob removes a job and all its index entries.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var j job.Job
	if err := s.getJSON(jobKey(jobID.String()), &j, conveyor.ErrJobNotFound); err != nil {
		return err
	}
	return s.deleteJobLocked(&j)
}

// deleteJobLocked removes the job record and every index entry. Must be
// called with s.mu held.
func (s *Store) deleteJobLocked(j *job.Job) error {
	jID := j.ID.String()
	b := s.db.NewBatch()
	_ = b.Delete(jobKey(jID), nil) //nolint:errcheck // batch writes only fail on commit
	s.unindexJob(b, j, jID)
	for _, pid := range j.ParentRefs {
		_ = b.Delete(childIdxKey(pid.String(), jID), nil) //nolint:errcheck // batch writes only fail on commit
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: delete job: %w", err)
	}
	return nil
}

// ListJobsByState returns jobs matching the given state in sequence order.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	jobs, err := s.scanJobs(func(j *job.Job) bool {
		if j.State != state {
			return false
		}
		return opts.Queue == "" || j.Queue == opts.Queue
	})
	if err != nil {
		return nil, err
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	jobs, err := s.scanJobs(func(j *job.Job) bool {
		if opts.State != "" && j.State != opts.State {
			return false
		}
		return opts.Queue == "" || j.Queue == opts.Queue
	})
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

// scanJobs iterates all job records and returns those passing the
// filter, sorted by sequence.
func (s *Store) scanJobs(keep func(*job.Job) bool) ([]*job.Job, error) {
	iter, err := s.prefixIter([]byte(prefixJob))
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var jobs []*job.Job
	for ok := iter.First(); ok; ok = iter.Next() {
		var j job.Job
		if err := decodeJSON(iter.Value(), &j); err != nil {
			return nil, fmt.Errorf("conveyor/pebble: scan jobs: %w", err)
		}
		if keep(&j) {
			jobs = append(jobs, &j)
		}
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].Sequence < jobs[k].Sequence
	})
	return jobs, nil
}

// WaitReady blocks until a job may have become ready, the timeout
// elapses, or ctx is done.
func (s *Store) WaitReady(ctx context.Context, _ []string, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	ch := s.readyCh
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
