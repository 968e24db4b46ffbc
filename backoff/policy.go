package backoff

import (
	"time"

	"github.com/xraph/conveyor"
)

// Decision is the outcome of a retry policy for one failed attempt.
type Decision struct {
	// Retry indicates whether the job should be re-queued. When false the
	// job is dead-lettered immediately, regardless of remaining attempts.
	Retry bool
	// Delay is how long to park the job in the delay set before it
	// becomes dispatchable again. Ignored when Retry is false.
	Delay time.Duration
}

// RetryIn returns a Decision that re-queues after d.
func RetryIn(d time.Duration) Decision {
	return Decision{Retry: true, Delay: d}
}

// Stop returns a Decision that dead-letters the job immediately.
func Stop() Decision {
	return Decision{Retry: false}
}

// Policy decides whether and when a failed job is retried. attempt is the
// number of attempts made so far including the one that just failed
// (1-indexed). The error is the worker-reported failure; policies may
// route on its classification key but the engine itself never inspects
// error content.
type Policy interface {
	Decide(attempt int, err error) Decision
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(attempt int, err error) Decision

// Decide calls f.
func (f PolicyFunc) Decide(attempt int, err error) Decision {
	return f(attempt, err)
}

// FromStrategy lifts a delay Strategy into a Policy that always retries.
func FromStrategy(s Strategy) Policy {
	return PolicyFunc(func(attempt int, _ error) Decision {
		return RetryIn(s.Delay(attempt))
	})
}

// NoRetry returns a Policy that never retries. Useful as a per-class
// entry for validation-style errors.
func NoRetry() Policy {
	return PolicyFunc(func(int, error) Decision {
		return Stop()
	})
}

// ByClass routes on the error's classification key (conveyor.ClassOf) to
// pick a per-class policy, falling back to fallback for unclassified or
// unmapped errors. The class is treated as an opaque key; mapping
// failure categories to policies is entirely the caller's concern.
//
//	backoff.ByClass(map[conveyor.Class]backoff.Policy{
//	    "rate-limit":  backoff.FromStrategy(backoff.NewConstant(5 * time.Minute)),
//	    "validation":  backoff.NoRetry(),
//	}, backoff.DefaultPolicy())
func ByClass(policies map[conveyor.Class]Policy, fallback Policy) Policy {
	return PolicyFunc(func(attempt int, err error) Decision {
		if p, ok := policies[conveyor.ClassOf(err)]; ok {
			return p.Decide(attempt, err)
		}
		return fallback.Decide(attempt, err)
	})
}

// DefaultPolicy returns the engine default: always retry with
// DefaultStrategy delays.
func DefaultPolicy() Policy {
	return FromStrategy(DefaultStrategy())
}
