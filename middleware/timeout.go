package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conveyor/job"
)

// Timeout returns middleware that enforces a per-job execution deadline.
// A job's own Timeout takes precedence; jobs without one fall back to the
// given default. When both are zero the handler runs unbounded. On expiry
// the handler's context is cancelled and it should return
// context.DeadlineExceeded.
//
// The effective timeout should be shorter than the lease duration: a
// handler that outlives its lease will have its eventual report rejected
// as a stale lease.
func Timeout(logger *slog.Logger, fallback time.Duration) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		limit := j.Timeout
		if limit <= 0 {
			limit = fallback
		}
		if limit > 0 {
			logger.Debug("job timeout set",
				slog.String("job_id", j.ID.String()),
				slog.Duration("timeout", limit),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}
		return next(ctx)
	}
}
