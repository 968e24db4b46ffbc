// Package engine wires all Conveyor subsystems together and provides
// the primary application-level API for registering and enqueuing work.
//
// The engine package exists to break a fundamental import cycle: the root
// conveyor package defines Entity (imported by job, cron, etc.) and
// therefore cannot import those packages back. Engine sits above all
// subsystem packages and below the application layer.
//
// # Building an Engine
//
//	c, err := conveyor.New(
//	    conveyor.WithStore(pgStore),
//	    conveyor.WithConcurrency(20),
//	)
//
//	eng, err := engine.Build(c,
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(middleware.Logging(logger)),
//	    engine.WithRetryPolicy(backoff.DefaultPolicy()),
//	    engine.WithQueueConfig(queue.Config{
//	        Name:      "critical",
//	        RateLimit: 100,
//	    }),
//	)
//
// # Registering Work
//
//	// Jobs
//	engine.Register(eng, SendEmail)
//
//	// Crons
//	engine.RegisterCron(ctx, eng, DailyReport)
//
// # Enqueuing Jobs
//
//	engine.Enqueue(ctx, eng, "send-email", EmailInput{To: "user@example.com"})
//
//	// With options
//	engine.Enqueue(ctx, eng, "send-email", input,
//	    job.WithPriority(10),
//	    job.WithDelay(5*time.Minute),
//	    job.WithParents(parent.ID),
//	)
//
// # Options
//
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add a middleware to the execution chain
//   - [WithRetryPolicy] — set the retry policy for failed jobs
//   - [WithQueueConfig] — configure per-queue rate limits and concurrency
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
