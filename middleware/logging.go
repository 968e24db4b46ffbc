package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/job"
)

// Logging returns middleware that logs job start and completion.
// Retries and stall recoveries are visible through the attempt and
// stall_count attributes on the start line; failures additionally carry
// the error class when one is attached.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		startAttrs := []any{
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.Int("attempt", j.AttemptsMade+1),
		}
		if j.StallCount > 0 {
			startAttrs = append(startAttrs, slog.Int("stall_count", j.StallCount))
		}
		if j.Priority != 0 {
			startAttrs = append(startAttrs, slog.Int("priority", j.Priority))
		}
		logger.Info("job started", startAttrs...)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			failAttrs := []any{
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID.String()),
				slog.Int("attempt", j.AttemptsMade+1),
				slog.Int("max_attempts", j.MaxAttempts),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			}
			if class := conveyor.ClassOf(err); class != conveyor.ClassUnknown {
				failAttrs = append(failAttrs, slog.String("error_class", string(class)))
			}
			logger.Error("job failed", failAttrs...)
		} else {
			logger.Info("job completed",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
