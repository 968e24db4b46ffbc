package cluster

import (
	"context"
	"time"

	"github.com/xraph/conveyor/id"
)

// Store defines the persistence contract for cluster worker management.
type Store interface {
	// RegisterWorker adds a worker to the cluster registry, or refreshes
	// it if already registered.
	RegisterWorker(ctx context.Context, w *Worker) error

	// DeregisterWorker removes a worker from the registry. If the worker
	// holds leadership, leadership is vacated.
	DeregisterWorker(ctx context.Context, workerID id.WorkerID) error

	// HeartbeatWorker updates a worker's last-seen timestamp.
	HeartbeatWorker(ctx context.Context, workerID id.WorkerID) error

	// ListWorkers returns all registered workers.
	ListWorkers(ctx context.Context) ([]*Worker, error)

	// ReapDeadWorkers returns workers whose last heartbeat is older than
	// threshold. Callers decide what to do with them (deregister,
	// reassign leases).
	ReapDeadWorkers(ctx context.Context, threshold time.Duration) ([]*Worker, error)

	// AcquireLeadership attempts to take cluster leadership for workerID.
	// It succeeds when no leader exists, the current lease expired, or
	// the caller already leads (refreshing the lease). Leadership lapses
	// after ttl unless renewed.
	AcquireLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error)

	// RenewLeadership extends the lease of the current leader. Returns
	// false when workerID no longer holds leadership.
	RenewLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error)

	// GetLeader returns the current leader, or nil when there is none or
	// the leadership lease has expired.
	GetLeader(ctx context.Context) (*Worker, error)
}
