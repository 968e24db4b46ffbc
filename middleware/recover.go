package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/job"
)

// ClassPanic is the error class attached to recovered panics. Retry
// policies can route it with backoff.ByClass, e.g. to refuse retries for
// handlers that crash rather than fail.
const ClassPanic conveyor.Class = "panic"

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors classified as ClassPanic and logged with
// a stack trace, so a panicking handler goes through the normal retry path
// instead of taking the worker down.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job_name", j.Name),
					slog.String("job_id", j.ID.String()),
					slog.Int("attempt", j.AttemptsMade+1),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = conveyor.Classify(fmt.Errorf("panic in job %s: %v", j.Name, r), ClassPanic)
			}
		}()
		return next(ctx)
	}
}
