package lease

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// ErrStalled is recorded on a job each time its lease expires without a
// worker report.
var ErrStalled = errors.New("conveyor: lease expired without report")

// Sweeper reclaims jobs whose leases expired without a worker report.
// Each reclaim increments the job's StallCount; a job whose count has
// already reached MaxStalledCount is dead-lettered instead of re-queued.
// Cancel-requested jobs are discarded on reclaim. The sweeper also
// finalizes jobs parked in the failed state, whose dead-letter append
// did not complete.
type Sweeper struct {
	store      job.Store
	dlqService *dlq.Service
	bus        *event.Bus
	extensions *ext.Registry
	maxStalled int
	interval   time.Duration
	logger     *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a stall sweeper. maxStalled is the number of lease
// expiries a job survives before dead-lettering; interval is how often
// the sweep runs.
func NewSweeper(
	store job.Store,
	dlqService *dlq.Service,
	bus *event.Bus,
	extensions *ext.Registry,
	maxStalled int,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		dlqService: dlqService,
		bus:        bus,
		extensions: extensions,
		maxStalled: maxStalled,
		interval:   interval,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("stall sweeper started",
		slog.Duration("interval", s.interval),
		slog.Int("max_stalled", s.maxStalled),
	)
	return nil
}

// Stop signals the sweeper to stop and waits for the loop to finish.
func (s *Sweeper) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("stall sweeper stopped")
	return nil
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep resolves every expired lease once and finalizes parked failed
// jobs. Exported so the engine can force a pass in tests and on demand.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	expired, err := s.store.ExpiredLeaseJobs(ctx, now)
	if err != nil {
		s.logger.Error("expired lease scan error", slog.String("error", err.Error()))
		return
	}

	for _, j := range expired {
		s.resolve(ctx, j, now)
	}

	s.finalizeParked(ctx, now)
}

// resolve handles a single expired lease. All writes go through CASJob
// against the expired token, so a worker report that lands first wins and
// the sweep of that job becomes a no-op.
func (s *Sweeper) resolve(ctx context.Context, j *job.Job, now time.Time) {
	token := j.LeaseToken

	if j.CancelRequested {
		s.discard(ctx, j, token)
		return
	}

	// A job survives maxStalled lease expiries: the pre-increment count
	// is checked against the bound, and only at the bound does this
	// expiry dead-letter instead of re-queue.
	if j.StallCount >= s.maxStalled {
		s.deadLetter(ctx, j, token, j.StallCount+1)
		return
	}

	requeued := *j
	requeued.State = job.StateWaiting
	requeued.StallCount = j.StallCount + 1
	requeued.ReadyAt = now
	requeued.ClearLease()
	requeued.Touch()

	if err := s.store.CASJob(ctx, &requeued, job.StateActive, token); err != nil {
		if errors.Is(err, conveyor.ErrInvalidLease) || errors.Is(err, conveyor.ErrInvalidState) {
			// A worker report beat the sweep. Its token was still valid
			// when it landed, so its result stands.
			return
		}
		s.logger.Error("stall requeue error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.extensions.EmitJobStalled(ctx, &requeued, requeued.StallCount)
	s.logger.Warn("job stalled, returned to queue",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("stall_count", requeued.StallCount),
		slog.Int("max_stalled", s.maxStalled),
	)
}

// discard drops a cancel-requested job whose lease has expired. The CAS
// guards against a worker report landing in the same instant.
func (s *Sweeper) discard(ctx context.Context, j *job.Job, token id.LeaseToken) {
	parked := *j
	parked.State = job.StateWaiting
	parked.ClearLease()
	parked.Touch()

	if err := s.store.CASJob(ctx, &parked, job.StateActive, token); err != nil {
		if errors.Is(err, conveyor.ErrInvalidLease) || errors.Is(err, conveyor.ErrInvalidState) {
			return
		}
		s.logger.Error("cancel discard error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.store.DeleteJob(ctx, j.ID); err != nil {
		s.logger.Error("cancel delete error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("cancelled job discarded",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
	)
}

// deadLetter routes a stall-limited job to the dead-letter store. The
// token-validating CAS into failed comes first, so a racing worker report
// wins cleanly and no dead-letter entry is written for it; the append and
// the final dead transition follow.
func (s *Sweeper) deadLetter(ctx context.Context, j *job.Job, token id.LeaseToken, stalls int) {
	condemned := *j
	condemned.State = job.StateFailed
	condemned.StallCount = stalls
	condemned.LastError = ErrStalled.Error()
	condemned.ClearLease()
	condemned.Touch()

	if err := s.store.CASJob(ctx, &condemned, job.StateActive, token); err != nil {
		if errors.Is(err, conveyor.ErrInvalidLease) || errors.Is(err, conveyor.ErrInvalidState) {
			// A late worker report resolved the job first; its result
			// stands and nothing was written.
			return
		}
		s.logger.Error("failed transition error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.finalize(ctx, &condemned, ErrStalled, dlq.ReasonStallLimit)
}

// finalize appends the dead-letter record for a job in the failed state
// and completes the dead transition. If the append fails the job stays
// parked in failed and a later sweep retries.
func (s *Sweeper) finalize(ctx context.Context, j *job.Job, jobErr error, reason dlq.Reason) {
	if _, err := s.dlqService.Push(ctx, j, jobErr, reason); err != nil {
		s.logger.Error("dlq push error, job parked in failed state",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	dead := *j
	dead.State = job.StateDead
	dead.Touch()

	if err := s.store.CASJob(ctx, &dead, job.StateFailed, j.LeaseToken); err != nil {
		s.logger.Error("dead transition error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if _, pubErr := s.bus.Publish(ctx, event.JobDead, dead.ID, nil); pubErr != nil {
		s.logger.Warn("dead event publish error",
			slog.String("job_id", dead.ID.String()),
			slog.String("error", pubErr.Error()),
		)
	}

	s.extensions.EmitJobDead(ctx, &dead, jobErr)
	s.logger.Error("job dead-lettered",
		slog.String("job_id", dead.ID.String()),
		slog.String("job_name", dead.Name),
		slog.String("reason", string(reason)),
		slog.Int("stall_count", dead.StallCount),
	)
}

// finalizeParked retries the dead-letter append for jobs stuck in the
// failed state. Failures younger than one sweep interval are skipped;
// their reporter is usually still finalizing them.
func (s *Sweeper) finalizeParked(ctx context.Context, now time.Time) {
	parked, err := s.store.ListJobsByState(ctx, job.StateFailed, job.ListOpts{})
	if err != nil {
		s.logger.Error("failed job scan error", slog.String("error", err.Error()))
		return
	}

	for _, j := range parked {
		if now.Sub(j.UpdatedAt) < s.interval {
			continue
		}
		s.finalize(ctx, j, errors.New(j.LastError), s.parkedReason(j))
	}
}

// parkedReason reconstructs the terminal reason for a parked failed job
// from its counters.
func (s *Sweeper) parkedReason(j *job.Job) dlq.Reason {
	switch {
	case j.StallCount >= s.maxStalled && s.maxStalled > 0:
		return dlq.ReasonStallLimit
	case j.AttemptsMade >= j.MaxAttempts:
		return dlq.ReasonExhausted
	default:
		return dlq.ReasonNonRetryable
	}
}
