package conveyor

import "errors"

var (
	// Store errors.
	ErrNoStore            = errors.New("conveyor: no store configured")
	ErrStoreClosed        = errors.New("conveyor: store closed")
	ErrMigrationFailed    = errors.New("conveyor: migration failed")
	ErrStorageUnavailable = errors.New("conveyor: storage unavailable")

	// Not found errors.
	ErrJobNotFound    = errors.New("conveyor: job not found")
	ErrCronNotFound   = errors.New("conveyor: cron entry not found")
	ErrDLQNotFound    = errors.New("conveyor: dlq entry not found")
	ErrEventNotFound  = errors.New("conveyor: event not found")
	ErrWorkerNotFound = errors.New("conveyor: worker not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("conveyor: job already exists")
	ErrDuplicateCron    = errors.New("conveyor: duplicate cron entry")

	// Lease and state errors. ErrInvalidLease is returned when an operation
	// presents a stale or absent lease token, or targets a job that is not
	// active; the caller must re-fetch current state and assume its report
	// was discarded. ErrInvalidState means the operation is illegal for the
	// job's current state (e.g. removing an active job).
	ErrInvalidLease = errors.New("conveyor: invalid lease")
	ErrInvalidState = errors.New("conveyor: invalid state transition")

	// ErrDependencyUnsatisfied is returned when a job with unfinished
	// parents is handed to a worker. The scheduler filters dependency-gated
	// jobs before dispatch, so this should not surface in normal operation.
	ErrDependencyUnsatisfied = errors.New("conveyor: job dependencies unsatisfied")

	// Cluster errors.
	ErrLeadershipLost = errors.New("conveyor: leadership lost")
	ErrNotLeader      = errors.New("conveyor: not the leader")
)
