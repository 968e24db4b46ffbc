package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/cluster"
	"github.com/xraph/conveyor/cron"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Job Store tests
// ──────────────────────────────────────────────────

func newJob(name, queue string, state job.State, priority int) *job.Job {
	return &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Name:        name,
		Queue:       queue,
		Payload:     []byte(`{"test":true}`),
		State:       state,
		Priority:    priority,
		MaxAttempts: 3,
		ReadyAt:     time.Now().UTC().Add(-time.Second), // eligible immediately
	}
}

func testClaim() job.Claim {
	now := time.Now().UTC()
	return job.Claim{
		WorkerID:   id.NewWorkerID(),
		Token:      id.NewLeaseToken(),
		Now:        now,
		LeaseUntil: now.Add(30 * time.Second),
	}
}

func TestJobCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("test-job", "default", job.StateWaiting, 0)

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if j.Sequence == 0 {
		t.Error("expected CreateJob to assign a non-zero sequence")
	}

	if err := s.CreateJob(ctx, j); !errors.Is(err, conveyor.ErrJobAlreadyExists) {
		t.Errorf("duplicate CreateJob error = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != "test-job" {
		t.Errorf("Name = %q, want %q", got.Name, "test-job")
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, conveyor.ErrJobNotFound) {
		t.Errorf("GetJob(unknown) error = %v, want ErrJobNotFound", err)
	}
}

func TestJobSequenceMonotonic(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var last uint64
	for range 5 {
		j := newJob("seq", "default", job.StateWaiting, 0)
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if j.Sequence <= last {
			t.Fatalf("sequence %d not greater than previous %d", j.Sequence, last)
		}
		last = j.Sequence
	}
}

func TestClaimNextReady_PriorityOrder(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	low := newJob("low", "default", job.StateWaiting, 1)
	high := newJob("high", "default", job.StateWaiting, 5)
	mid := newJob("mid", "default", job.StateWaiting, 3)

	for _, j := range []*job.Job{low, high, mid} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	var names []string
	for range 3 {
		j, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
		if err != nil {
			t.Fatalf("ClaimNextReady: %v", err)
		}
		if j == nil {
			t.Fatal("expected a job")
		}
		names = append(names, j.Name)
	}

	want := []string{"high", "mid", "low"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("claim order[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestClaimNextReady_FIFOWithinPriority(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	first := newJob("first", "default", job.StateWaiting, 2)
	second := newJob("second", "default", job.StateWaiting, 2)

	if err := s.CreateJob(ctx, first); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, second); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	j, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if j.Name != "first" {
		t.Errorf("claimed %q, want %q (insertion order)", j.Name, "first")
	}
}

func TestClaimNextReady_GlobalOrderAcrossQueues(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	// The highest-priority job wins no matter which queue holds it.
	aLow := newJob("a-low", "alpha", job.StateWaiting, 1)
	bHigh := newJob("b-high", "beta", job.StateWaiting, 9)
	aMid := newJob("a-mid", "alpha", job.StateWaiting, 4)

	for _, j := range []*job.Job{aLow, bHigh, aMid} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	var names []string
	for range 3 {
		j, err := s.ClaimNextReady(ctx, []string{"alpha", "beta"}, testClaim())
		if err != nil {
			t.Fatalf("ClaimNextReady: %v", err)
		}
		if j == nil {
			t.Fatal("expected a job")
		}
		names = append(names, j.Name)
	}

	want := []string{"b-high", "a-mid", "a-low"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("claim order[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestClaimNextReady_StampsLease(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("leased", "default", job.StateWaiting, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	claim := testClaim()
	got, err := s.ClaimNextReady(ctx, []string{"default"}, claim)
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}

	if got.State != job.StateActive {
		t.Errorf("State = %q, want active", got.State)
	}
	if got.LeaseToken.String() != claim.Token.String() {
		t.Error("lease token not stamped")
	}
	if got.WorkerID.String() != claim.WorkerID.String() {
		t.Error("worker id not stamped")
	}
	if got.LeaseExpiresAt == nil || !got.LeaseExpiresAt.Equal(claim.LeaseUntil) {
		t.Error("lease expiry not stamped")
	}

	// A second claim must not see the same job.
	again, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no job on second claim, got %q", again.Name)
	}
}

func TestClaimNextReady_SkipsFutureAndForeignQueues(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	future := newJob("future", "default", job.StateDelayed, 0)
	future.ReadyAt = time.Now().UTC().Add(time.Hour)
	other := newJob("other", "emails", job.StateWaiting, 0)

	for _, j := range []*job.Job{future, other} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	j, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if j != nil {
		t.Fatalf("expected no ready job in default, got %q", j.Name)
	}
}

func TestClaimNextReady_DueDelayedClaimable(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("due", "default", job.StateDelayed, 0)
	j.ReadyAt = time.Now().UTC().Add(-time.Minute)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if got == nil || got.Name != "due" {
		t.Fatal("expected due delayed job to be claimable without promotion")
	}
}

func TestClaimNextReady_ParentGating(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	parent := newJob("parent", "default", job.StateWaiting, 0)
	if err := s.CreateJob(ctx, parent); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	child := newJob("child", "default", job.StateWaiting, 10)
	child.ParentRefs = []id.JobID{parent.ID}
	if err := s.CreateJob(ctx, child); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Child outranks parent on priority but must not be claimed first.
	claim := testClaim()
	got, err := s.ClaimNextReady(ctx, []string{"default"}, claim)
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if got == nil || got.Name != "parent" {
		t.Fatalf("claimed %v, want parent", got)
	}

	// Complete the parent; child becomes claimable.
	got.State = job.StateCompleted
	got.ClearLease()
	if err := s.CASJob(ctx, got, job.StateActive, claim.Token); err != nil {
		t.Fatalf("CASJob: %v", err)
	}

	next, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if next == nil || next.Name != "child" {
		t.Fatal("expected child claimable after parent completion")
	}
}

func TestClaimNextReady_DiscardsCancelRequested(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("cancelled", "default", job.StateWaiting, 0)
	j.CancelRequested = true
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.ClaimNextReady(ctx, []string{"default"}, testClaim())
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}
	if got != nil {
		t.Fatalf("cancel-requested job handed out: %q", got.Name)
	}

	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, conveyor.ErrJobNotFound) {
		t.Error("expected cancel-requested job to be discarded on claim")
	}
}

func TestCASJob_TokenAndStateChecks(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("cas", "default", job.StateWaiting, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	claim := testClaim()
	leased, err := s.ClaimNextReady(ctx, []string{"default"}, claim)
	if err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}

	// Stale token is rejected.
	upd := *leased
	upd.State = job.StateCompleted
	upd.ClearLease()
	if err := s.CASJob(ctx, &upd, job.StateActive, id.NewLeaseToken()); !errors.Is(err, conveyor.ErrInvalidLease) {
		t.Errorf("stale token CAS error = %v, want ErrInvalidLease", err)
	}

	// Correct token succeeds.
	if err := s.CASJob(ctx, &upd, job.StateActive, claim.Token); err != nil {
		t.Fatalf("CASJob with valid token: %v", err)
	}

	// Replaying the same CAS fails: the stored token is now cleared, so
	// the old token is a lease error.
	if err := s.CASJob(ctx, &upd, job.StateActive, claim.Token); !errors.Is(err, conveyor.ErrInvalidLease) {
		t.Errorf("replayed CAS error = %v, want ErrInvalidLease", err)
	}
}

func TestCASJob_IllegalTransitionRejected(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("illegal", "default", job.StateWaiting, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// waiting → completed is not a legal transition.
	upd := *j
	upd.State = job.StateCompleted
	if err := s.CASJob(ctx, &upd, job.StateWaiting, id.Nil); !errors.Is(err, conveyor.ErrInvalidState) {
		t.Errorf("illegal transition CAS error = %v, want ErrInvalidState", err)
	}
}

func TestPromoteDueJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	due := newJob("due", "default", job.StateDelayed, 0)
	due.ReadyAt = time.Now().UTC().Add(-time.Minute)
	notDue := newJob("not-due", "default", job.StateDelayed, 0)
	notDue.ReadyAt = time.Now().UTC().Add(time.Hour)

	for _, j := range []*job.Job{due, notDue} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	n, err := s.PromoteDueJobs(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("PromoteDueJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("promoted %d jobs, want 1", n)
	}

	got, err := s.GetJob(ctx, due.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateWaiting {
		t.Errorf("due job state = %q, want waiting", got.State)
	}

	still, err := s.GetJob(ctx, notDue.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if still.State != job.StateDelayed {
		t.Errorf("not-due job state = %q, want delayed", still.State)
	}
}

func TestExpiredLeaseJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("expiring", "default", job.StateWaiting, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	now := time.Now().UTC()
	claim := job.Claim{
		WorkerID:   id.NewWorkerID(),
		Token:      id.NewLeaseToken(),
		Now:        now,
		LeaseUntil: now.Add(-time.Second), // already expired
	}
	if _, err := s.ClaimNextReady(ctx, []string{"default"}, claim); err != nil {
		t.Fatalf("ClaimNextReady: %v", err)
	}

	expired, err := s.ExpiredLeaseJobs(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpiredLeaseJobs: %v", err)
	}
	if len(expired) != 1 || expired[0].ID.String() != j.ID.String() {
		t.Fatalf("expected 1 expired lease, got %d", len(expired))
	}
}

func TestDependentsOf(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	parent := newJob("parent", "default", job.StateWaiting, 0)
	childA := newJob("child-a", "default", job.StateWaiting, 0)
	childA.ParentRefs = []id.JobID{parent.ID}
	childB := newJob("child-b", "default", job.StateWaiting, 0)
	childB.ParentRefs = []id.JobID{parent.ID}
	unrelated := newJob("unrelated", "default", job.StateWaiting, 0)

	for _, j := range []*job.Job{parent, childA, childB, unrelated} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	deps, err := s.DependentsOf(ctx, parent.ID)
	if err != nil {
		t.Fatalf("DependentsOf: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependents, got %d", len(deps))
	}
}

func TestWaitReady_WokenByCreate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() {
		woken, err := s.WaitReady(ctx, []string{"default"}, 2*time.Second)
		if err != nil {
			done <- false
			return
		}
		done <- woken
	}()

	time.Sleep(50 * time.Millisecond)
	if err := s.CreateJob(ctx, newJob("waker", "default", job.StateWaiting, 0)); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	select {
	case woken := <-done:
		if !woken {
			t.Error("expected WaitReady to be woken by CreateJob")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("WaitReady did not return")
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	t.Parallel()
	s := New()

	woken, err := s.WaitReady(context.Background(), []string{"default"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if woken {
		t.Error("expected timeout, got woken")
	}
}

func TestListAndCountJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i := range 3 {
		j := newJob("listed", "default", job.StateWaiting, i)
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	other := newJob("other", "emails", job.StateDelayed, 0)
	other.ReadyAt = time.Now().UTC().Add(time.Hour)
	if err := s.CreateJob(ctx, other); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	waiting, err := s.ListJobsByState(ctx, job.StateWaiting, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(waiting) != 3 {
		t.Errorf("waiting jobs = %d, want 3", len(waiting))
	}

	limited, err := s.ListJobsByState(ctx, job.StateWaiting, job.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited jobs = %d, want 2", len(limited))
	}

	count, err := s.CountJobs(ctx, job.CountOpts{State: job.StateDelayed})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if count != 1 {
		t.Errorf("delayed count = %d, want 1", count)
	}
}

// ──────────────────────────────────────────────────
// DLQ Store tests
// ──────────────────────────────────────────────────

func TestDLQPushGetMarkRequeued(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	entry := &dlq.Entry{
		ID:       id.NewDLQID(),
		JobID:    id.NewJobID(),
		JobName:  "dead-job",
		Queue:    "default",
		Reason:   dlq.ReasonExhausted,
		FailedAt: time.Now().UTC(),
	}
	if err := s.PushDLQ(ctx, entry); err != nil {
		t.Fatalf("PushDLQ: %v", err)
	}

	got, err := s.GetDLQ(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if got.JobName != "dead-job" {
		t.Errorf("JobName = %q, want %q", got.JobName, "dead-job")
	}

	now := time.Now().UTC()
	if err := s.MarkRequeued(ctx, entry.ID, now); err != nil {
		t.Fatalf("MarkRequeued: %v", err)
	}
	got, _ = s.GetDLQ(ctx, entry.ID)
	if got.RequeuedAt == nil || !got.RequeuedAt.Equal(now) {
		t.Error("RequeuedAt not stamped")
	}

	count, err := s.CountDLQ(ctx)
	if err != nil {
		t.Fatalf("CountDLQ: %v", err)
	}
	if count != 1 {
		t.Errorf("CountDLQ = %d, want 1", count)
	}
}

func TestDLQPurge(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	old := &dlq.Entry{ID: id.NewDLQID(), FailedAt: time.Now().UTC().Add(-time.Hour)}
	recent := &dlq.Entry{ID: id.NewDLQID(), FailedAt: time.Now().UTC()}
	_ = s.PushDLQ(ctx, old)
	_ = s.PushDLQ(ctx, recent)

	n, err := s.PurgeDLQ(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("PurgeDLQ: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
}

// ──────────────────────────────────────────────────
// Event Store tests
// ──────────────────────────────────────────────────

func TestEventPublishSubscribeAck(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	evt := &event.Event{
		ID:        id.NewEventID(),
		Name:      event.JobCompleted,
		JobID:     id.NewJobID(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.PublishEvent(ctx, evt); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	got, err := s.SubscribeEvent(ctx, event.JobCompleted, time.Second)
	if err != nil {
		t.Fatalf("SubscribeEvent: %v", err)
	}
	if got == nil || got.ID.String() != evt.ID.String() {
		t.Fatal("expected to receive the published event")
	}

	if err := s.AckEvent(ctx, evt.ID); err != nil {
		t.Fatalf("AckEvent: %v", err)
	}

	// Acked events are not delivered again.
	again, err := s.SubscribeEvent(ctx, event.JobCompleted, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("SubscribeEvent: %v", err)
	}
	if again != nil {
		t.Error("acked event delivered again")
	}
}

// ──────────────────────────────────────────────────
// Cluster Store tests
// ──────────────────────────────────────────────────

func TestLeadership(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	a := id.NewWorkerID()
	b := id.NewWorkerID()
	for _, wid := range []id.WorkerID{a, b} {
		w := &cluster.Worker{
			ID:        wid,
			Hostname:  "host",
			State:     cluster.WorkerActive,
			LastSeen:  time.Now().UTC(),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.RegisterWorker(ctx, w); err != nil {
			t.Fatalf("RegisterWorker: %v", err)
		}
	}

	acquired, err := s.AcquireLeadership(ctx, a, 30*time.Second)
	if err != nil || !acquired {
		t.Fatalf("AcquireLeadership(a): acquired=%v err=%v", acquired, err)
	}

	// b cannot take leadership while a holds it.
	taken, err := s.AcquireLeadership(ctx, b, 30*time.Second)
	if err != nil {
		t.Fatalf("AcquireLeadership(b): %v", err)
	}
	if taken {
		t.Error("b acquired leadership while a held it")
	}

	// a can renew; b cannot.
	renewed, err := s.RenewLeadership(ctx, a, 30*time.Second)
	if err != nil || !renewed {
		t.Fatalf("RenewLeadership(a): renewed=%v err=%v", renewed, err)
	}
	renewed, err = s.RenewLeadership(ctx, b, 30*time.Second)
	if err != nil {
		t.Fatalf("RenewLeadership(b): %v", err)
	}
	if renewed {
		t.Error("b renewed leadership it never held")
	}

	leader, err := s.GetLeader(ctx)
	if err != nil {
		t.Fatalf("GetLeader: %v", err)
	}
	if leader == nil || leader.ID.String() != a.String() {
		t.Error("GetLeader did not return a")
	}
}

func TestCronLocking(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	entry := &cron.Entry{
		Entity:   conveyor.NewEntity(),
		ID:       id.NewCronID(),
		Name:     "locked",
		Schedule: "@every 1m",
		JobName:  "tick",
		Enabled:  true,
	}
	if err := s.RegisterCron(ctx, entry); err != nil {
		t.Fatalf("RegisterCron: %v", err)
	}

	a := id.NewWorkerID()
	b := id.NewWorkerID()

	locked, err := s.AcquireCronLock(ctx, entry.ID, a, 30*time.Second)
	if err != nil || !locked {
		t.Fatalf("AcquireCronLock(a): locked=%v err=%v", locked, err)
	}

	locked, err = s.AcquireCronLock(ctx, entry.ID, b, 30*time.Second)
	if err != nil {
		t.Fatalf("AcquireCronLock(b): %v", err)
	}
	if locked {
		t.Error("b acquired a lock held by a")
	}

	if err := s.ReleaseCronLock(ctx, entry.ID, a); err != nil {
		t.Fatalf("ReleaseCronLock: %v", err)
	}

	locked, err = s.AcquireCronLock(ctx, entry.ID, b, 30*time.Second)
	if err != nil || !locked {
		t.Fatalf("AcquireCronLock(b) after release: locked=%v err=%v", locked, err)
	}
}
