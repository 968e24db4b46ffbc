package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/store/memory"
)

// captureExt records stall and dead notifications for assertions.
type captureExt struct {
	mu      sync.Mutex
	stalled []int
	dead    []error
}

func (c *captureExt) Name() string { return "capture" }

func (c *captureExt) OnJobStalled(_ context.Context, _ *job.Job, stallCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = append(c.stalled, stallCount)
	return nil
}

func (c *captureExt) OnJobDead(_ context.Context, _ *job.Job, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = append(c.dead, err)
	return nil
}

func (c *captureExt) stalledCounts() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.stalled...)
}

func (c *captureExt) deadErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.dead...)
}

type sweepFixture struct {
	store   *memory.Store
	sweeper *Sweeper
	bus     *event.Bus
	capture *captureExt
}

func newSweepFixture(t *testing.T, maxStalled int) *sweepFixture {
	t.Helper()
	s := memory.New()
	capture := &captureExt{}
	registry := ext.NewRegistry(testLogger())
	registry.Register(capture)
	bus := event.NewBus(s)

	return &sweepFixture{
		store:   s,
		sweeper: NewSweeper(s, dlq.NewService(s, s), bus, registry, maxStalled, time.Minute, testLogger()),
		bus:     bus,
		capture: capture,
	}
}

// claimExpired puts the job into active state with a lease that has
// already run out, as the sweeper would find it.
func claimExpired(t *testing.T, s *memory.Store, queue string) *job.Job {
	t.Helper()
	now := time.Now().UTC()
	j, err := s.ClaimNextReady(context.Background(), []string{queue}, job.Claim{
		WorkerID:   id.NewWorkerID(),
		Token:      id.NewLeaseToken(),
		Now:        now,
		LeaseUntil: now.Add(-time.Second),
	})
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if j == nil {
		t.Fatal("ClaimNextReady returned no job")
	}
	return j
}

// ──────────────────────────────────────────────────
// Sweep tests
// ──────────────────────────────────────────────────

func TestSweeper_RequeuesExpiredLease(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 3)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("slow-worker", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	f.sweeper.Sweep(ctx)

	swept, err := f.store.GetJob(ctx, leased.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if swept.State != job.StateWaiting {
		t.Errorf("swept job state = %s, want waiting", swept.State)
	}
	if swept.StallCount != 1 {
		t.Errorf("StallCount = %d, want 1", swept.StallCount)
	}
	if swept.AttemptsMade != 0 {
		t.Errorf("AttemptsMade = %d, want 0; stalls are not attempts", swept.AttemptsMade)
	}
	if swept.Leased() {
		t.Error("swept job still carries lease fields")
	}
	if got := f.capture.stalledCounts(); len(got) != 1 || got[0] != 1 {
		t.Errorf("stalled notifications = %v, want [1]", got)
	}
}

func TestSweeper_RequeuedJobClaimableAgain(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 3)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("retry-me", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	first := claimExpired(t, f.store, "default")

	f.sweeper.Sweep(ctx)

	m := NewManager(f.store, time.Minute, testLogger())
	second, err := m.Acquire(ctx, []string{"default"}, id.NewWorkerID())
	if err != nil || second == nil {
		t.Fatalf("re-acquire after sweep = (%v, %v)", second, err)
	}
	if second.LeaseToken.String() == first.LeaseToken.String() {
		t.Error("re-grant reused the expired lease token")
	}
}

func TestSweeper_SurvivesStallsUpToLimit(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 1)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("one-strike-left", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	// First expiry: the stall count is below the bound, so the job goes
	// back to the queue rather than the dead-letter store.
	f.sweeper.Sweep(ctx)

	swept, err := f.store.GetJob(ctx, leased.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if swept.State != job.StateWaiting {
		t.Errorf("job state after first expiry = %s, want waiting", swept.State)
	}
	if swept.StallCount != 1 {
		t.Errorf("StallCount = %d, want 1", swept.StallCount)
	}

	entries, err := f.store.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("DLQ entries after first expiry = %d, want 0", len(entries))
	}
}

func TestSweeper_DeadLettersAtStallLimit(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 1)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("stuck-forever", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	// First expiry re-queues; the second one exceeds the bound.
	f.sweeper.Sweep(ctx)
	claimExpired(t, f.store, "default")
	f.sweeper.Sweep(ctx)

	dead, err := f.store.GetJob(ctx, leased.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if dead.State != job.StateDead {
		t.Errorf("job state = %s, want dead", dead.State)
	}
	if dead.LastError != ErrStalled.Error() {
		t.Errorf("LastError = %q, want %q", dead.LastError, ErrStalled.Error())
	}

	entries, err := f.store.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("DLQ entries = %d, want 1", len(entries))
	}
	if entries[0].Reason != dlq.ReasonStallLimit {
		t.Errorf("entry reason = %s, want %s", entries[0].Reason, dlq.ReasonStallLimit)
	}
	if entries[0].StallCount != 2 {
		t.Errorf("entry stall count = %d, want 2", entries[0].StallCount)
	}

	if got := f.capture.deadErrors(); len(got) != 1 || !errors.Is(got[0], ErrStalled) {
		t.Errorf("dead notifications = %v, want [ErrStalled]", got)
	}
	if got := f.capture.stalledCounts(); len(got) != 1 || got[0] != 1 {
		t.Errorf("stalled notifications = %v, want [1]", got)
	}
}

func TestSweeper_PublishesDeadEvent(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 0)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("no-strikes", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	f.sweeper.Sweep(ctx)

	evt, err := f.bus.Subscribe(ctx, event.JobDead, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if evt == nil {
		t.Fatal("no dead event published")
	}
	if evt.JobID.String() != leased.ID.String() {
		t.Errorf("event job ID = %s, want %s", evt.JobID, leased.ID)
	}
}

func TestSweeper_FinalizesParkedFailedJob(t *testing.T) {
	t.Parallel()
	s := memory.New()
	registry := ext.NewRegistry(testLogger())
	// A short interval so the parked failure is already past the one-
	// interval grace when the sweep runs.
	sweeper := NewSweeper(s, dlq.NewService(s, s), event.NewBus(s), registry,
		3, time.Millisecond, testLogger())
	ctx := context.Background()

	if err := s.CreateJob(ctx, newWaitingJob("half-buried", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, s, "default")

	// Park the job as a reporter would after a dead-letter append it
	// could not complete.
	parked := *leased
	parked.State = job.StateFailed
	parked.AttemptsMade = parked.MaxAttempts
	parked.LastError = "boom"
	token := parked.LeaseToken
	parked.ClearLease()
	if err := s.CASJob(ctx, &parked, job.StateActive, token); err != nil {
		t.Fatalf("park CAS: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	sweeper.Sweep(ctx)

	dead, err := s.GetJob(ctx, leased.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if dead.State != job.StateDead {
		t.Errorf("job state = %s, want dead", dead.State)
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("DLQ entries = %d, want 1", len(entries))
	}
	if entries[0].Reason != dlq.ReasonExhausted {
		t.Errorf("entry reason = %s, want %s", entries[0].Reason, dlq.ReasonExhausted)
	}
}

func TestSweeper_DiscardsCancelRequested(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 3)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("cancelled", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	leased.CancelRequested = true
	if err := f.store.UpdateJob(ctx, leased); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	f.sweeper.Sweep(ctx)

	if _, err := f.store.GetJob(ctx, leased.ID); !errors.Is(err, conveyor.ErrJobNotFound) {
		t.Errorf("GetJob after discard error = %v, want ErrJobNotFound", err)
	}
	if got := f.capture.stalledCounts(); len(got) != 0 {
		t.Errorf("stalled notifications = %v, want none for a discarded job", got)
	}
}

func TestSweeper_WorkerReportWins(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 3)
	ctx := context.Background()

	if err := f.store.CreateJob(ctx, newWaitingJob("slow-but-done", "default", 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	leased := claimExpired(t, f.store, "default")

	// A worker report lands between the expiry scan and the sweep's CAS.
	done := *leased
	done.State = job.StateCompleted
	token := done.LeaseToken
	done.ClearLease()
	if err := f.store.CASJob(ctx, &done, job.StateActive, token); err != nil {
		t.Fatalf("worker-report CAS: %v", err)
	}

	f.sweeper.resolve(ctx, leased, time.Now().UTC())

	stored, err := f.store.GetJob(ctx, leased.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StateCompleted {
		t.Errorf("job state = %s, want completed; sweep must not override a worker report", stored.State)
	}
	if got := f.capture.stalledCounts(); len(got) != 0 {
		t.Errorf("stalled notifications = %v, want none when the report wins", got)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()
	f := newSweepFixture(t, 3)
	ctx := context.Background()

	if err := f.sweeper.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.sweeper.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
