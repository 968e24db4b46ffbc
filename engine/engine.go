package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/backoff"
	"github.com/xraph/conveyor/cluster"
	"github.com/xraph/conveyor/cron"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/ext"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/lease"
	mw "github.com/xraph/conveyor/middleware"
	"github.com/xraph/conveyor/queue"
	"github.com/xraph/conveyor/sched"
	"github.com/xraph/conveyor/worker"
)

// Engine wraps a Conveyor with typed subsystem access. Use Build() to
// create one. The Engine is the worker.Reporter: all execution outcomes
// flow through Complete and Fail, which validate the lease token before
// touching job state.
type Engine struct {
	c          *conveyor.Conveyor
	extensions *ext.Registry
	registry   *job.Registry
	jobStore   job.Store
	dlqService *dlq.Service
	policy     backoff.Policy
	leases     *lease.Manager
	sweeper    *lease.Sweeper
	promoter   *sched.Promoter
	pool       *worker.Pool
	eventBus   *event.Bus
	mws        []mw.Middleware
	logger     *slog.Logger

	// Cron subsystem.
	cronStore    cron.Store
	clusterStore cluster.Store
	scheduler    *cron.Scheduler

	// Queue subsystem.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithRetryPolicy sets the retry policy consulted on worker-reported
// failures. If not set, backoff.DefaultPolicy() (always retry with
// exponential backoff and jitter) is used.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(eng *Engine) {
		eng.policy = p
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Conveyor.
// The Conveyor's store must implement every subsystem store interface.
func Build(c *conveyor.Conveyor, opts ...Option) (*Engine, error) {
	logger := c.Logger()
	store := c.Store()

	if store == nil {
		return nil, conveyor.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement dlq.Store")
	}
	es, ok := store.(event.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement event.Store")
	}
	cs, ok := store.(cron.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement cron.Store")
	}
	cls, ok := store.(cluster.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement cluster.Store")
	}

	eng := &Engine{
		c:          c,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		jobStore:   js,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.policy == nil {
		eng.policy = backoff.DefaultPolicy()
	}

	config := c.Config()

	eng.dlqService = dlq.NewService(ds, js)
	eng.eventBus = event.NewBus(es)
	eng.leases = lease.NewManager(js, config.LeaseDuration, logger)
	eng.sweeper = lease.NewSweeper(js, eng.dlqService, eng.eventBus, eng.extensions,
		config.MaxStalledCount, config.StallInterval, logger)
	eng.promoter = sched.NewPromoter(js, config.PromoteInterval, logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/xraph/conveyor")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/conveyor")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger, config.DefaultJobTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng, logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithAcquireWait(config.PollInterval),
	}

	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(
		eng.leases,
		executor,
		eng.extensions,
		logger,
		poolOpts...,
	)

	// Wire back into the Conveyor.
	c.SetPool(eng.pool)
	c.SetExtensions(eng.extensions)

	// Create the cron scheduler.
	eng.cronStore = cs
	eng.clusterStore = cls
	enqueueFunc := func(ctx context.Context, name string, payload []byte, opts ...job.Option) (id.JobID, error) {
		j, err := eng.EnqueueRaw(ctx, name, payload, opts...)
		if err != nil {
			return id.JobID{}, err
		}
		return j.ID, nil
	}
	eng.scheduler = cron.NewScheduler(cs, cls, enqueueFunc, eng.extensions, eng.pool.WorkerID(), logger)

	// Register this worker in the cluster store.
	hostname, hostnameErr := os.Hostname()
	if hostnameErr != nil {
		hostname = "unknown"
	}
	w := &cluster.Worker{
		ID:          eng.pool.WorkerID(),
		Hostname:    hostname,
		Queues:      config.Queues,
		Concurrency: config.Concurrency,
		State:       cluster.WorkerActive,
		LastSeen:    time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if regErr := cls.RegisterWorker(context.Background(), w); regErr != nil {
		logger.Warn("failed to register worker in cluster store", slog.String("error", regErr.Error()))
	}

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues a job with a typed payload.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}

	return eng.EnqueueRaw(ctx, name, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload. Jobs with a
// delay enter the delay set; jobs with parents stay invisible to claims
// until every parent completes.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	jobOpts := job.DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}
	if jobOpts.MaxAttempts < 1 {
		return nil, fmt.Errorf("conveyor: job %q: max attempts must be at least 1", name)
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Name:        name,
		Payload:     payload,
		State:       job.StateWaiting,
		Queue:       jobOpts.Queue,
		Priority:    jobOpts.Priority,
		MaxAttempts: jobOpts.MaxAttempts,
		Timeout:     jobOpts.Timeout,
		ReadyAt:     now,
		ParentRefs:  jobOpts.Parents,
	}
	if jobOpts.Delay > 0 {
		j.State = job.StateDelayed
		j.ReadyAt = now.Add(jobOpts.Delay)
	}

	for _, parent := range j.ParentRefs {
		if _, err := eng.jobStore.GetJob(ctx, parent); err != nil {
			return nil, fmt.Errorf("conveyor: job %q: parent %s: %w", name, parent, err)
		}
	}

	if err := eng.jobStore.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Acquire claims the next ready job from the given queues. Workers that
// bypass the built-in pool (external consumers) use this together with
// Renew, Complete, and Fail. Returns (nil, nil) when nothing is ready.
func (eng *Engine) Acquire(ctx context.Context, queues []string, workerID id.WorkerID) (*job.Job, error) {
	j, err := eng.leases.Acquire(ctx, queues, workerID)
	if err != nil || j == nil {
		return j, err
	}
	eng.extensions.EmitJobAcquired(ctx, j, workerID)
	return j, nil
}

// AcquireWait claims the next ready job, blocking until one becomes
// available or timeout elapses.
func (eng *Engine) AcquireWait(ctx context.Context, queues []string, workerID id.WorkerID, timeout time.Duration) (*job.Job, error) {
	j, err := eng.leases.AcquireWait(ctx, queues, workerID, timeout)
	if err != nil || j == nil {
		return j, err
	}
	eng.extensions.EmitJobAcquired(ctx, j, workerID)
	return j, nil
}

// Renew extends the lease on j by extension (zero means the configured
// lease duration). The presented token must match the current grant.
func (eng *Engine) Renew(ctx context.Context, j *job.Job, token id.LeaseToken, extension time.Duration) error {
	return eng.leases.Renew(ctx, j, token, extension)
}

// Complete records a successful execution. The token must match the
// job's current lease; a report arriving after the sweeper reclaimed the
// job is rejected with ErrInvalidLease and the caller must assume its
// result was discarded.
func (eng *Engine) Complete(ctx context.Context, j *job.Job, token id.LeaseToken, result []byte, elapsed time.Duration) error {
	now := time.Now().UTC()
	done := *j
	done.State = job.StateCompleted
	done.Result = result
	done.CompletedAt = &now
	done.ClearLease()
	done.Touch()

	if err := eng.jobStore.CASJob(ctx, &done, job.StateActive, token); err != nil {
		return err
	}

	if _, pubErr := eng.eventBus.Publish(ctx, event.JobCompleted, done.ID, result); pubErr != nil {
		eng.logger.Warn("completion event publish error",
			slog.String("job_id", done.ID.String()),
			slog.String("error", pubErr.Error()),
		)
	}

	eng.promoteDependents(ctx, done.ID)

	eng.extensions.EmitJobCompleted(ctx, &done, elapsed)
	return nil
}

// promoteDependents re-evaluates the children of a completed job and
// re-saves each fully satisfied waiting one, firing the store's readiness
// notification for it so blocked claimers wake.
func (eng *Engine) promoteDependents(ctx context.Context, parentID id.JobID) {
	dependents, err := eng.jobStore.DependentsOf(ctx, parentID)
	if err != nil {
		eng.logger.Error("dependent scan error",
			slog.String("parent_id", parentID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, dep := range dependents {
		if dep.State != job.StateWaiting {
			continue
		}
		satisfied, err := eng.parentsCompleted(ctx, dep)
		if err != nil {
			eng.logger.Error("dependent parent check error",
				slog.String("job_id", dep.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !satisfied {
			continue
		}

		dep.Touch()
		if err := eng.jobStore.UpdateJob(ctx, dep); err != nil {
			eng.logger.Error("dependent promote error",
				slog.String("job_id", dep.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		eng.logger.Debug("dependent promoted",
			slog.String("job_id", dep.ID.String()),
			slog.String("parent_id", parentID.String()),
		)
	}
}

// parentsCompleted reports whether every parent of j has completed.
func (eng *Engine) parentsCompleted(ctx context.Context, j *job.Job) (bool, error) {
	for _, parentID := range j.ParentRefs {
		parent, err := eng.jobStore.GetJob(ctx, parentID)
		if err != nil {
			if errors.Is(err, conveyor.ErrJobNotFound) {
				return false, nil
			}
			return false, err
		}
		if parent.State != job.StateCompleted {
			return false, nil
		}
	}
	return true, nil
}

// Fail records a failed execution. The retry policy decides whether the
// job is re-queued with a delay or dead-lettered; retryable=false and an
// exhausted attempt budget both force the dead-letter path. The DLQ
// append precedes the dead transition, so a job can never be dead
// without a record; the token check precedes both.
func (eng *Engine) Fail(ctx context.Context, j *job.Job, token id.LeaseToken, jobErr error, retryable bool) error {
	attempt := j.AttemptsMade + 1

	failed := *j
	failed.AttemptsMade = attempt
	failed.LastError = jobErr.Error()

	var reason dlq.Reason
	switch {
	case !retryable:
		reason = dlq.ReasonNonRetryable
	case attempt >= j.MaxAttempts:
		reason = dlq.ReasonExhausted
	default:
		decision := eng.policy.Decide(attempt, jobErr)
		if decision.Retry {
			return eng.scheduleRetry(ctx, &failed, token, attempt, decision.Delay)
		}
		reason = dlq.ReasonNonRetryable
	}

	return eng.deadLetter(ctx, &failed, token, jobErr, reason)
}

// scheduleRetry parks the job in the delay set until now+delay.
func (eng *Engine) scheduleRetry(ctx context.Context, j *job.Job, token id.LeaseToken, attempt int, delay time.Duration) error {
	readyAt := time.Now().UTC().Add(delay)
	j.State = job.StateDelayed
	j.ReadyAt = readyAt
	j.ClearLease()
	j.Touch()

	if err := eng.jobStore.CASJob(ctx, j, job.StateActive, token); err != nil {
		return err
	}

	eng.extensions.EmitJobRetrying(ctx, j, attempt, readyAt)

	eng.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
	)
	return nil
}

// deadLetter routes a terminally failed job to the dead-letter store.
// The token-validating CAS into failed comes first: a stale token is
// rejected before anything is written, so a discarded report leaves no
// trace. The DLQ append and the dead transition follow; if the append
// fails the job parks in failed and the stall sweeper retries it.
func (eng *Engine) deadLetter(ctx context.Context, j *job.Job, token id.LeaseToken, jobErr error, reason dlq.Reason) error {
	j.State = job.StateFailed
	j.ClearLease()
	j.Touch()

	if err := eng.jobStore.CASJob(ctx, j, job.StateActive, token); err != nil {
		return err
	}

	if _, pushErr := eng.dlqService.Push(ctx, j, jobErr, reason); pushErr != nil {
		eng.logger.Error("dlq push error, job parked in failed state",
			slog.String("job_id", j.ID.String()),
			slog.String("error", pushErr.Error()),
		)
		return pushErr
	}

	j.State = job.StateDead
	j.Touch()

	if err := eng.jobStore.CASJob(ctx, j, job.StateFailed, j.LeaseToken); err != nil {
		return err
	}

	if _, pubErr := eng.eventBus.Publish(ctx, event.JobDead, j.ID, nil); pubErr != nil {
		eng.logger.Warn("dead event publish error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", pubErr.Error()),
		)
	}

	eng.extensions.EmitJobDead(ctx, j, jobErr)

	eng.logger.Warn("job dead-lettered",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("reason", string(reason)),
		slog.Int("attempts_made", j.AttemptsMade),
		slog.String("error", jobErr.Error()),
	)
	return nil
}

// Cancel requests cancellation. Waiting and delayed jobs are removed
// immediately. Active jobs are flagged; running handlers are not
// interrupted, and the flag takes effect when the lease next expires
// (use ForceExpire to hasten that). Terminal jobs cannot be cancelled.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID) error {
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch j.State {
	case job.StateWaiting, job.StateDelayed:
		return eng.jobStore.DeleteJob(ctx, jobID)
	case job.StateActive:
		j.CancelRequested = true
		j.Touch()
		return eng.jobStore.UpdateJob(ctx, j)
	default:
		return fmt.Errorf("conveyor: cancel job in state %q: %w", j.State, conveyor.ErrInvalidState)
	}
}

// ForceExpire cuts an active job's lease short so the next sweep
// resolves it immediately. Combined with Cancel it yields prompt
// discard of a running job.
func (eng *Engine) ForceExpire(ctx context.Context, jobID id.JobID) error {
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.State != job.StateActive {
		return fmt.Errorf("conveyor: force-expire job in state %q: %w", j.State, conveyor.ErrInvalidState)
	}

	past := time.Now().UTC().Add(-time.Second)
	j.LeaseExpiresAt = &past
	j.Touch()
	return eng.jobStore.UpdateJob(ctx, j)
}

// Remove deletes a job that is not currently executing.
func (eng *Engine) Remove(ctx context.Context, jobID id.JobID) error {
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.State == job.StateActive {
		return fmt.Errorf("conveyor: remove active job: %w", conveyor.ErrInvalidState)
	}
	return eng.jobStore.DeleteJob(ctx, jobID)
}

// Requeue derives a fresh job from a dead-letter entry and enqueues it.
func (eng *Engine) Requeue(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	j, err := eng.dlqService.Requeue(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if _, pubErr := eng.eventBus.Publish(ctx, event.JobRequeued, j.ID, nil); pubErr != nil {
		eng.logger.Warn("requeue event publish error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", pubErr.Error()),
		)
	}

	eng.extensions.EmitJobRequeued(ctx, entryID, j)
	return j, nil
}

// ListDeadLetters returns dead-letter entries, newest first.
func (eng *Engine) ListDeadLetters(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	return eng.dlqService.DLQStore().ListDLQ(ctx, opts)
}

// Start begins job processing: the delay promoter, stall sweeper, and
// cron scheduler first, then the worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.promoter.Start(ctx); err != nil {
		return fmt.Errorf("start delay promoter: %w", err)
	}
	if err := eng.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start stall sweeper: %w", err)
	}
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}

	return eng.c.Start(ctx)
}

// Stop gracefully shuts down the engine: claim loops drain first so no
// new work starts, then the background loops stop.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.clusterStore.DeregisterWorker(ctx, eng.pool.WorkerID()); err != nil {
		eng.logger.Warn("failed to deregister worker", slog.String("error", err.Error()))
	}

	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}

	err := eng.c.Stop(ctx)

	var g errgroup.Group
	g.Go(func() error { return eng.sweeper.Stop(ctx) })
	g.Go(func() error { return eng.promoter.Stop(ctx) })
	if stopErr := g.Wait(); stopErr != nil {
		eng.logger.Error("background loop stop error", slog.String("error", stopErr.Error()))
	}

	return err
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Conveyor returns the underlying Conveyor.
func (eng *Engine) Conveyor() *conveyor.Conveyor { return eng.c }

// DLQService returns the engine's DLQ service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// EventBus returns the event bus.
func (eng *Engine) EventBus() *event.Bus { return eng.eventBus }

// Leases returns the lease manager.
func (eng *Engine) Leases() *lease.Manager { return eng.leases }

// Sweeper returns the stall sweeper.
func (eng *Engine) Sweeper() *lease.Sweeper { return eng.sweeper }

// Promoter returns the delay promoter.
func (eng *Engine) Promoter() *sched.Promoter { return eng.promoter }

// CronStore returns the cron store.
func (eng *Engine) CronStore() cron.Store { return eng.cronStore }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// QueueManager returns the queue manager, or nil if no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// RegisterCron registers a typed cron definition with the engine.
// It validates the schedule expression, computes the initial NextRunAt,
// and persists the entry. Re-registration of the same name is idempotent.
func RegisterCron[T any](ctx context.Context, eng *Engine, def *cron.Definition[T]) error {
	schedule, err := cron.ParseSchedule(def.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", def.Schedule, err)
	}

	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal cron payload: %w", err)
	}

	now := time.Now().UTC()
	next := schedule.Next(now)

	entry := &cron.Entry{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewCronID(),
		Name:        def.Name,
		Schedule:    def.Schedule,
		JobName:     def.JobName,
		Queue:       def.Queue,
		Priority:    def.Priority,
		MaxAttempts: def.MaxAttempts,
		Timeout:     def.Timeout,
		Payload:     payload,
		NextRunAt:   &next,
		Enabled:     true,
	}

	if err := eng.CronStore().RegisterCron(ctx, entry); err != nil {
		// Idempotent: ignore duplicate cron entries.
		if errors.Is(err, conveyor.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("register cron %q: %w", def.Name, err)
	}

	eng.logger.Info("cron registered",
		slog.String("name", def.Name),
		slog.String("schedule", def.Schedule),
		slog.String("job_name", def.JobName),
		slog.Time("next_run_at", next),
	)

	return nil
}
