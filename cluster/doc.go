// Package cluster provides distributed worker coordination: leader election,
// worker registration, and heartbeat tracking.
//
// When running multiple Conveyor instances against a shared store, the
// cluster package coordinates which instance is the leader (responsible for
// cron firing, delay promotion, and stalled-lease sweeping) and which are
// followers.
//
// # Worker Entity
//
// Each running Conveyor instance registers itself as a [Worker] with:
//   - a unique [id.WorkerID]
//   - its hostname
//   - the list of queues it polls
//   - its concurrency limit
//   - a state: [WorkerActive], [WorkerDraining], or [WorkerDead]
//
// Workers send periodic heartbeats. If a heartbeat is not received within
// the configured threshold, the worker is considered dead. Its leased jobs
// are not reassigned directly; their leases simply expire and the stall
// sweeper returns them to the ready set.
//
// # Leader Election
//
// One worker at a time holds leadership. The leader:
//   - fires cron entries
//   - promotes due delayed jobs
//   - sweeps expired leases
//
// Leadership is managed by [Store.AcquireLeadership] using optimistic locking.
// If leadership is lost mid-operation, [conveyor.ErrLeadershipLost] is returned.
package cluster
