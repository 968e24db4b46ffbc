package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/lease"
	"github.com/xraph/conveyor/store/memory"
)

// casReporter finalizes outcomes straight through the store, standing in
// for the engine in pool tests. Complete moves the job to completed;
// Fail parks it back in waiting.
type casReporter struct {
	store job.Store
}

func (r *casReporter) Complete(ctx context.Context, j *job.Job, token id.LeaseToken, _ []byte, _ time.Duration) error {
	now := time.Now().UTC()
	done := *j
	done.State = job.StateCompleted
	done.CompletedAt = &now
	done.ClearLease()
	done.Touch()
	return r.store.CASJob(ctx, &done, job.StateActive, token)
}

func (r *casReporter) Fail(ctx context.Context, j *job.Job, token id.LeaseToken, jobErr error, _ bool) error {
	parked := *j
	parked.State = job.StateWaiting
	parked.AttemptsMade++
	parked.LastError = jobErr.Error()
	parked.ReadyAt = time.Now().UTC()
	parked.ClearLease()
	parked.Touch()
	return r.store.CASJob(ctx, &parked, job.StateActive, token)
}

func waitingJob(name string) *job.Job {
	return &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Name:        name,
		Queue:       "default",
		Payload:     []byte(`{}`),
		State:       job.StateWaiting,
		MaxAttempts: 3,
		ReadyAt:     time.Now().UTC().Add(-time.Second),
	}
}

func awaitState(t *testing.T, s job.Store, jobID id.JobID, want job.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		j, err := s.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j.State == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job state = %s, want %s before deadline", j.State, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ──────────────────────────────────────────────────
// Pool tests
// ──────────────────────────────────────────────────

func TestPool_ExecutesJobs(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	var executions atomic.Int64
	registry := job.NewRegistry()
	registry.RegisterRaw("count-me", func(context.Context, []byte) error {
		executions.Add(1)
		return nil
	})

	leases := lease.NewManager(s, 30*time.Second, testLogger())
	executor := NewExecutor(registry, &casReporter{store: s}, testLogger())
	pool := NewPool(leases, executor, ext.NewRegistry(testLogger()), testLogger(),
		WithPoolConcurrency(2),
		WithAcquireWait(50*time.Millisecond),
	)

	jobs := make([]*job.Job, 3)
	for i := range jobs {
		jobs[i] = waitingJob("count-me")
		if err := s.CreateJob(ctx, jobs[i]); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(ctx) //nolint:errcheck

	for _, j := range jobs {
		awaitState(t, s, j.ID, job.StateCompleted)
	}
	if got := executions.Load(); got != 3 {
		t.Errorf("handler executions = %d, want 3", got)
	}
}

func TestPool_QueueManagerThrottles(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	var executions atomic.Int64
	registry := job.NewRegistry()
	registry.RegisterRaw("gated", func(context.Context, []byte) error {
		executions.Add(1)
		return nil
	})

	leases := lease.NewManager(s, 30*time.Second, testLogger())
	executor := NewExecutor(registry, &casReporter{store: s}, testLogger())
	pool := NewPool(leases, executor, ext.NewRegistry(testLogger()), testLogger(),
		WithPoolConcurrency(1),
		WithAcquireWait(20*time.Millisecond),
		WithThrottleDelay(10*time.Millisecond),
		WithQueueManager(denyAll{}),
	)

	j := waitingJob("gated")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(ctx) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)

	if got := executions.Load(); got != 0 {
		t.Errorf("handler executions = %d, want 0 while the queue is denied", got)
	}
	stored, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.AttemptsMade != 0 || stored.StallCount != 0 {
		t.Errorf("throttled release recorded attempts=%d stalls=%d, want 0/0",
			stored.AttemptsMade, stored.StallCount)
	}
}

type denyAll struct{}

func (denyAll) Acquire(string) bool { return false }
func (denyAll) Release(string)     {}

func TestPool_RenewalOutlivesLease(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	registry := job.NewRegistry()
	registry.RegisterRaw("long-haul", func(ctx context.Context, _ []byte) error {
		select {
		case <-time.After(300 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	leases := lease.NewManager(s, 80*time.Millisecond, testLogger())
	executor := NewExecutor(registry, &casReporter{store: s}, testLogger())
	extensions := ext.NewRegistry(testLogger())
	pool := NewPool(leases, executor, extensions, testLogger(),
		WithPoolConcurrency(1),
		WithAcquireWait(20*time.Millisecond),
	)
	sweeper := lease.NewSweeper(s, dlq.NewService(s, s), event.NewBus(s), extensions, 2, 20*time.Millisecond, testLogger())

	j := waitingJob("long-haul")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("sweeper Start: %v", err)
	}
	defer func() {
		sweeper.Stop(ctx) //nolint:errcheck
		pool.Stop(ctx)    //nolint:errcheck
	}()

	awaitState(t, s, j.ID, job.StateCompleted)

	stored, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.StallCount != 0 {
		t.Errorf("StallCount = %d, want 0; renewals should keep the sweeper off a live handler", stored.StallCount)
	}
}

func TestPool_StopDrainsInFlight(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	registry := job.NewRegistry()
	registry.RegisterRaw("drainable", func(ctx context.Context, _ []byte) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	leases := lease.NewManager(s, 30*time.Second, testLogger())
	executor := NewExecutor(registry, &casReporter{store: s}, testLogger())
	pool := NewPool(leases, executor, ext.NewRegistry(testLogger()), testLogger(),
		WithPoolConcurrency(1),
		WithAcquireWait(20*time.Millisecond),
	)

	j := waitingJob("drainable")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	awaitState(t, s, j.ID, job.StateCompleted)
}
