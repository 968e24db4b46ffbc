// Package worker provides the execution side of the engine: an Executor
// that runs a leased job through middleware and its registered handler
// and reports the outcome, and a Pool of goroutines that acquire leases,
// keep them renewed while handlers run, and drain on shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/middleware"
)

// Reporter receives execution outcomes. The engine implements it: Complete
// and Fail validate the lease token against the job's current lease, so a
// report that arrives after the lease was swept is rejected rather than
// overwriting newer state. retryable=false forces an immediate dead-letter
// regardless of the retry policy.
type Reporter interface {
	Complete(ctx context.Context, j *job.Job, token id.LeaseToken, result []byte, elapsed time.Duration) error
	Fail(ctx context.Context, j *job.Job, token id.LeaseToken, jobErr error, retryable bool) error
}

// Executor runs a single leased job through the middleware chain and its
// registered handler, then reports the outcome.
type Executor struct {
	registry *job.Registry
	reporter Reporter
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor. Middleware are applied left-to-right:
// the first is the outermost wrapper.
func NewExecutor(
	registry *job.Registry,
	reporter Reporter,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry: registry,
		reporter: reporter,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Execute runs j and reports the outcome through the Reporter. The lease
// token is captured before the handler runs; the report presents it so a
// lease lost mid-execution surfaces as a rejected report, not a silent
// overwrite.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	token := j.LeaseToken

	handler, ok := e.registry.Get(j.Name)
	if !ok {
		err := fmt.Errorf("no handler registered for job %q", j.Name)
		e.logger.Error("unroutable job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
		return e.reporter.Fail(ctx, j, token, err, false)
	}

	terminal := func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	}

	start := time.Now()
	err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Debug("job handler failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return e.reporter.Fail(ctx, j, token, err, true)
	}

	return e.reporter.Complete(ctx, j, token, nil, elapsed)
}
