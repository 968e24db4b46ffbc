// Package dlq provides the dead letter store for terminally failed jobs.
// It supports inspection, requeueing, and purging.
//
// A job is dead-lettered for exactly one of three reasons: its retry
// budget is exhausted, its error was classified non-retryable, or it
// exceeded the stall limit (too many lease expiries without a worker
// report). The original payload, final error, and counters are preserved
// for debugging.
//
// Dead-lettering never fails silently: if the append fails, the job keeps
// its active state and lease so the stall path retries the transition.
//
// # Entry
//
// An [Entry] captures:
//   - JobID / JobName / Queue: original job identity
//   - Payload: the raw payload at time of failure
//   - Error: the final error message
//   - Reason: exhausted | non-retryable | exceeded-stall-limit
//   - AttemptsMade / MaxAttempts / StallCount: the spent budgets
//   - FailedAt: when the terminal failure occurred
//   - RequeuedAt: set when the entry is requeued (nil if not yet)
//
// # Service
//
// [Service] wraps the DLQ store with high-level operations:
//
//	svc := dlq.NewService(store, jobStore)
//
//	// Push is called by the engine on terminal failure.
//	svc.Push(ctx, deadJob, err, dlq.ReasonExhausted)
//
//	// Requeue derives a fresh job (new ID, zero attempts) from the
//	// stored payload. The entry itself is retained with RequeuedAt set.
//	newJob, err := svc.Requeue(ctx, entryID)
//
//	// Access the underlying store for list/get/purge/count.
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
package dlq
