package pebble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/cluster"
	"github.com/xraph/conveyor/id"
)

// leaderRecord is the persisted leadership claim.
type leaderRecord struct {
	WorkerID string    `json:"worker_id"`
	Until    time.Time `json:"until"`
}

// RegisterWorker adds a worker to the cluster registry. Re-registering
// an existing worker overwrites its record.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	if err := setJSON(b, workerKey(w.ID.String()), w); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker from the registry. A leader gives up
// leadership on the way out.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	_ = b.Delete(workerKey(workerID.String()), nil) //nolint:errcheck // batch writes only fail on commit

	var rec leaderRecord
	err := s.getJSON([]byte(metaLeaderKey), &rec, conveyor.ErrWorkerNotFound)
	if err == nil && rec.WorkerID == workerID.String() {
		_ = b.Delete([]byte(metaLeaderKey), nil) //nolint:errcheck // batch writes only fail on commit
	}

	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates a worker's last-seen timestamp.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var w cluster.Worker
	if err := s.getJSON(workerKey(workerID.String()), &w, conveyor.ErrWorkerNotFound); err != nil {
		return err
	}

	w.LastSeen = time.Now().UTC()
	return s.putWorkerLocked(&w)
}

// ListWorkers returns all registered workers sorted by ID.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	workers, err := s.allWorkers()
	if err != nil {
		return nil, err
	}
	sort.Slice(workers, func(i, k int) bool {
		return workers[i].ID.String() < workers[k].ID.String()
	})
	return workers, nil
}

// ReapDeadWorkers returns workers whose last heartbeat is older than the
// threshold.
func (s *Store) ReapDeadWorkers(ctx context.Context, threshold time.Duration) ([]*cluster.Worker, error) {
	workers, err := s.allWorkers()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var dead []*cluster.Worker
	for _, w := range workers {
		if w.LastSeen.Before(cutoff) {
			dead = append(dead, w)
		}
	}
	return dead, nil
}

// AcquireLeadership attempts to become cluster leader. The claim
// succeeds when no leader exists, the current hold expired, or the
// caller already leads.
func (s *Store) AcquireLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	var rec leaderRecord
	err := s.getJSON([]byte(metaLeaderKey), &rec, conveyor.ErrWorkerNotFound)
	switch {
	case err == nil:
		if rec.WorkerID != workerID.String() && rec.Until.After(now) {
			return false, nil
		}
	case errors.Is(err, conveyor.ErrWorkerNotFound):
	default:
		return false, err
	}

	return true, s.claimLeadershipLocked(workerID, now.Add(ttl))
}

// RenewLeadership extends the hold if workerID is still leader.
func (s *Store) RenewLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec leaderRecord
	if err := s.getJSON([]byte(metaLeaderKey), &rec, conveyor.ErrWorkerNotFound); err != nil {
		if errors.Is(err, conveyor.ErrWorkerNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.WorkerID != workerID.String() {
		return false, nil
	}

	return true, s.claimLeadershipLocked(workerID, time.Now().UTC().Add(ttl))
}

// claimLeadershipLocked writes the leader record and mirrors it onto the
// worker. Must be called with s.mu held.
func (s *Store) claimLeadershipLocked(workerID id.WorkerID, until time.Time) error {
	b := s.db.NewBatch()
	if err := setJSON(b, []byte(metaLeaderKey), leaderRecord{
		WorkerID: workerID.String(),
		Until:    until,
	}); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: claim leadership: %w", err)
	}

	var w cluster.Worker
	if err := s.getJSON(workerKey(workerID.String()), &w, conveyor.ErrWorkerNotFound); err != nil {
		if errors.Is(err, conveyor.ErrWorkerNotFound) {
			return nil
		}
		return err
	}
	w.IsLeader = true
	w.LeaderUntil = &until
	return s.putWorkerLocked(&w)
}

// GetLeader returns the current cluster leader, or nil if the hold
// expired or none exists.
func (s *Store) GetLeader(ctx context.Context) (*cluster.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec leaderRecord
	if err := s.getJSON([]byte(metaLeaderKey), &rec, conveyor.ErrWorkerNotFound); err != nil {
		if errors.Is(err, conveyor.ErrWorkerNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rec.Until.After(time.Now().UTC()) {
		return nil, nil
	}

	var w cluster.Worker
	if err := s.getJSON(workerKey(rec.WorkerID), &w, conveyor.ErrWorkerNotFound); err != nil {
		if errors.Is(err, conveyor.ErrWorkerNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// ── helpers ──

func (s *Store) allWorkers() ([]*cluster.Worker, error) {
	iter, err := s.prefixIter([]byte(prefixWorker))
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var workers []*cluster.Worker
	for ok := iter.First(); ok; ok = iter.Next() {
		var w cluster.Worker
		if err := decodeJSON(iter.Value(), &w); err != nil {
			return nil, fmt.Errorf("conveyor/pebble: list workers: %w", err)
		}
		workers = append(workers, &w)
	}
	return workers, nil
}

// putWorkerLocked writes a worker record. Must be called with s.mu held.
func (s *Store) putWorkerLocked(w *cluster.Worker) error {
	b := s.db.NewBatch()
	if err := setJSON(b, workerKey(w.ID.String()), w); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: put worker: %w", err)
	}
	return nil
}
