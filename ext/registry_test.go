package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// recorder implements every job hook and records invocations.
type recorder struct {
	enqueued  int
	acquired  int
	completed int
	retrying  int
	stalled   int
	dead      int
	requeued  int
	shutdown  int
	fail      bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnJobEnqueued(context.Context, *job.Job) error {
	r.enqueued++
	return r.maybeFail()
}

func (r *recorder) OnJobAcquired(context.Context, *job.Job, id.WorkerID) error {
	r.acquired++
	return r.maybeFail()
}

func (r *recorder) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	r.completed++
	return r.maybeFail()
}

func (r *recorder) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	r.retrying++
	return r.maybeFail()
}

func (r *recorder) OnJobStalled(context.Context, *job.Job, int) error {
	r.stalled++
	return r.maybeFail()
}

func (r *recorder) OnJobDead(context.Context, *job.Job, error) error {
	r.dead++
	return r.maybeFail()
}

func (r *recorder) OnJobRequeued(context.Context, id.DLQID, *job.Job) error {
	r.requeued++
	return r.maybeFail()
}

func (r *recorder) OnShutdown(context.Context) error {
	r.shutdown++
	return r.maybeFail()
}

func (r *recorder) maybeFail() error {
	if r.fail {
		return errors.New("hook failure")
	}
	return nil
}

// enqueueOnly implements only the JobEnqueued hook.
type enqueueOnly struct{ count int }

func (e *enqueueOnly) Name() string { return "enqueue-only" }
func (e *enqueueOnly) OnJobEnqueued(context.Context, *job.Job) error {
	e.count++
	return nil
}

func TestRegistryDispatchesToImplementedHooks(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	rec := &recorder{}
	only := &enqueueOnly{}
	r.Register(rec)
	r.Register(only)

	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), Name: "t"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobAcquired(ctx, j, id.NewWorkerID())
	r.EmitJobCompleted(ctx, j, time.Millisecond)
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobStalled(ctx, j, 1)
	r.EmitJobDead(ctx, j, errors.New("x"))
	r.EmitJobRequeued(ctx, id.NewDLQID(), j)
	r.EmitShutdown(ctx)

	if rec.enqueued != 1 || rec.acquired != 1 || rec.completed != 1 ||
		rec.retrying != 1 || rec.stalled != 1 || rec.dead != 1 ||
		rec.requeued != 1 || rec.shutdown != 1 {
		t.Fatalf("recorder missed events: %+v", rec)
	}
	if only.count != 1 {
		t.Fatalf("enqueueOnly.count = %d, want 1", only.count)
	}
}

func TestRegistryHookErrorsDoNotPropagate(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	failing := &recorder{fail: true}
	healthy := &recorder{}
	r.Register(failing)
	r.Register(healthy)

	// Emit must not panic and must still reach the healthy extension.
	r.EmitJobEnqueued(context.Background(), &job.Job{ID: id.NewJobID()})

	if healthy.enqueued != 1 {
		t.Fatal("healthy extension skipped after a failing one")
	}
}

func TestRegistryExtensionsList(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	r.Register(&recorder{})
	r.Register(&enqueueOnly{})

	if got := len(r.Extensions()); got != 2 {
		t.Fatalf("Extensions() = %d entries, want 2", got)
	}
}
