// Package lease implements worker leasing: time-bounded, token-authenticated
// exclusive holds on jobs.
//
// A lease is granted when [Manager.Acquire] claims a ready job. Every grant
// carries a fresh [id.LeaseToken]; the token is the worker's proof of
// ownership and must accompany every subsequent report (complete, fail,
// renew). A report with a stale token is rejected with
// [conveyor.ErrInvalidLease] — the job has since been swept or re-leased
// and the late worker's result is discarded.
//
// Leases expire. An active job whose LeaseExpiresAt passes without a
// renewal is presumed stalled: the [Sweeper] returns it to the ready set
// with its StallCount incremented (not AttemptsMade — a stall is an
// infrastructure event, not a handler failure). A job that stalls
// MaxStalledCount times is dead-lettered with reason
// exceeded-stall-limit.
//
// The sweeper resolves each expired lease through the store's CAS
// operation, so a worker report racing the sweep wins: whichever side
// commits first invalidates the other's token.
package lease
