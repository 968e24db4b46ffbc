// Package job defines the job entity, state machine, typed definitions,
// and store interface.
//
// # Job Entity
//
// A [Job] represents a unit of work. It embeds [conveyor.Entity] for
// timestamps, carries an opaque byte payload, and progresses through a
// state machine:
//
//	waiting → active → completed
//	waiting → active → delayed → waiting → active → ...   (retry with backoff)
//	waiting → active → dead                               (retries or stalls exhausted)
//	delayed → waiting                                     (ReadyAt elapsed)
//	active  → waiting                                     (lease expired, stall recovery)
//
// Fields of note:
//   - Queue: which queue the job belongs to (default: "default")
//   - Priority: higher values are dispatched first; ties are FIFO by the
//     store-assigned insertion Sequence
//   - MaxAttempts / AttemptsMade: the retry budget (stalls are counted
//     separately in StallCount and never consume attempts)
//   - ReadyAt: earliest time the job may be dispatched
//   - LeaseToken / LeaseExpiresAt: set only while active; the token is
//     regenerated on every grant and every state-changing report must
//     present it
//   - ParentRefs: the job is not dispatchable until every parent has
//     completed
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs:
//
//	var SendEmail = job.NewDefinition("send_email",
//	    func(ctx context.Context, input EmailInput) error {
//	        return mailer.Send(input.To, input.Subject, input.Body)
//	    },
//	)
//
// # Registry
//
// [Registry] maps job names to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]:
//
//	job.RegisterDefinition(registry, SendEmail)
//	job.RegisterDefinition(registry, GenerateReport)
//
// The engine package provides higher-level engine.Register and
// engine.Enqueue wrappers.
package job
