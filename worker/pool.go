package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/lease"
)

// QueueManager gates execution per queue: rate limits, concurrency caps,
// and pauses. The pool calls Acquire after claiming a job and Release
// once execution finishes.
type QueueManager interface {
	// Acquire reports whether a job on the queue may run now.
	Acquire(queue string) bool
	// Release returns the queue slot taken by Acquire.
	Release(queue string)
}

// activeJob tracks one leased job under execution: the cancel func for
// shutdown, and a renewal snapshot so the renew loop never touches the
// job instance the handler sees.
type activeJob struct {
	snapshot job.Job
	token    id.LeaseToken
	cancel   context.CancelFunc
}

// Pool runs a fixed number of worker goroutines. Each goroutine blocks on
// the lease manager for a grant, runs the job through the Executor, and
// reports. A single renew loop extends the leases of everything in flight
// at half the lease duration, so handlers outliving one lease period keep
// their grants instead of stalling.
type Pool struct {
	leases      *lease.Manager
	executor    *Executor
	extensions  *ext.Registry
	concurrency int
	queues      []string
	acquireWait time.Duration
	throttle    time.Duration
	workerID    id.WorkerID
	logger      *slog.Logger

	queueManager QueueManager

	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	active   map[string]*activeJob
	activeMu sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues the pool claims from.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithAcquireWait sets how long each blocking claim waits before the
// worker re-checks for shutdown.
func WithAcquireWait(d time.Duration) PoolOption {
	return func(p *Pool) { p.acquireWait = d }
}

// WithThrottleDelay sets how far a claim rejected by the queue manager is
// pushed back before it becomes claimable again.
func WithThrottleDelay(d time.Duration) PoolOption {
	return func(p *Pool) { p.throttle = d }
}

// WithQueueManager sets the queue manager gating execution.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// NewPool creates a worker pool.
func NewPool(
	leases *lease.Manager,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		leases:      leases,
		executor:    executor,
		extensions:  extensions,
		concurrency: 10,
		queues:      []string{"default"},
		acquireWait: 5 * time.Second,
		throttle:    time.Second,
		workerID:    id.NewWorkerID(),
		logger:      logger,
		stopCh:      make(chan struct{}),
		active:      make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines and the renew loop. It returns
// immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.runLoop()
	}

	p.wg.Add(1)
	go p.renewLoop()

	return nil
}

// Stop signals all workers to stop and waits for in-flight jobs to
// finish. If the context has a deadline, remaining jobs are cancelled
// when time runs out; their handlers see ctx.Done and the executor
// reports their failures as usual.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool drain timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// runLoop is run by each worker goroutine.
func (p *Pool) runLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		j, err := p.leases.AcquireWait(context.Background(), p.queues, p.workerID, p.acquireWait)
		if err != nil {
			p.logger.Error("claim error", slog.String("error", err.Error()))
			p.pause()
			continue
		}
		if j == nil {
			continue
		}

		if p.queueManager != nil && !p.queueManager.Acquire(j.Queue) {
			if relErr := p.leases.Release(context.Background(), j, j.LeaseToken, p.throttle); relErr != nil {
				p.logger.Error("throttled release error",
					slog.String("job_id", j.ID.String()),
					slog.String("error", relErr.Error()),
				)
			}
			p.pause()
			continue
		}

		p.execute(j)

		if p.queueManager != nil {
			p.queueManager.Release(j.Queue)
		}
	}
}

func (p *Pool) execute(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	p.track(j, cancel)
	defer func() {
		p.untrack(j.ID.String())
		cancel()
	}()

	p.extensions.EmitJobAcquired(ctx, j, p.workerID)

	if err := p.executor.Execute(ctx, j); err != nil {
		p.logger.Debug("job execution reported failure",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", err.Error()),
		)
	}
}

// renewLoop extends the lease of every in-flight job at half the lease
// duration. Renewals operate on snapshots; a renewal that fails with a
// stale lease means the sweeper reclaimed the job, and the eventual
// worker report will be rejected the same way.
func (p *Pool) renewLoop() {
	defer p.wg.Done()

	interval := p.leases.Duration() / 2
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.renewActive()
		}
	}
}

func (p *Pool) renewActive() {
	p.activeMu.Lock()
	renewals := make([]*activeJob, 0, len(p.active))
	for _, a := range p.active {
		renewals = append(renewals, a)
	}
	p.activeMu.Unlock()

	for _, a := range renewals {
		if err := p.leases.Renew(context.Background(), &a.snapshot, a.token, 0); err != nil {
			p.logger.Warn("lease renewal failed",
				slog.String("job_id", a.snapshot.ID.String()),
				slog.String("job_name", a.snapshot.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pool) pause() {
	select {
	case <-time.After(p.throttle):
	case <-p.stopCh:
	}
}

func (p *Pool) track(j *job.Job, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[j.ID.String()] = &activeJob{
		snapshot: *j,
		token:    j.LeaseToken,
		cancel:   cancel,
	}
	p.activeMu.Unlock()
}

func (p *Pool) untrack(jobID string) {
	p.activeMu.Lock()
	delete(p.active, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, a := range p.active {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		a.cancel()
	}
}
