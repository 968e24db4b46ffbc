package sched

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delayedJob(name string, readyAt time.Time) *job.Job {
	return &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Name:        name,
		Queue:       "default",
		Payload:     []byte(`{}`),
		State:       job.StateDelayed,
		MaxAttempts: 3,
		ReadyAt:     readyAt,
	}
}

func TestPromoter_PromotesDueJobs(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	due := delayedJob("due", time.Now().UTC().Add(-time.Second))
	future := delayedJob("future", time.Now().UTC().Add(time.Hour))
	for _, j := range []*job.Job{due, future} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob %s: %v", j.Name, err)
		}
	}

	p := NewPromoter(s, time.Minute, testLogger())
	p.Promote(ctx)

	got, err := s.GetJob(ctx, due.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateWaiting {
		t.Errorf("due job state = %s, want waiting", got.State)
	}

	got, err = s.GetJob(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateDelayed {
		t.Errorf("future job state = %s, want delayed", got.State)
	}
}

func TestPromoter_StartStop(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	p := NewPromoter(s, 10*time.Millisecond, testLogger())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	j := delayedJob("sweep-me", time.Now().UTC().Add(-time.Second))
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := s.GetJob(ctx, j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.State == job.StateWaiting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not promoted before deadline, state = %s", got.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
