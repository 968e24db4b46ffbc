// Package conveyor provides a persistent, priority-ordered job-queue engine
// for Go with delayed scheduling, worker leasing, retry/backoff, and
// dead-letter handling.
//
// Conveyor is designed as a library, not a service. Import it, configure a
// store, and register jobs as ordinary Go functions. Workers claim jobs
// under time-bounded, token-authenticated leases; a worker that vanishes
// mid-job is detected by the stall sweeper and the job is re-queued without
// burning a retry attempt.
//
// # Quick Start
//
//	c, err := conveyor.New(
//	    conveyor.WithStore(memStore),
//	    conveyor.WithConcurrency(20),
//	)
//
// # Architecture
//
// Conveyor follows a composable store pattern where each subsystem (job,
// dlq, event, cron, cluster) defines its own store interface. A single
// backend (memory, redis, pebble, postgres) implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers. Lease tokens are TypeIDs too, regenerated
// on every grant, so a stale holder can never act on a re-dispatched job.
package conveyor
