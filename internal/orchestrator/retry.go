// internal/orchestrator/retry.go
package orchestrator

import (
	"math"
	"math/rand"
	"time"

	"github.com/user/commentflow/internal/types"
)

// RetryPolicy controls how failed tasks are redelivered with exponential
// backoff. Delays are scheduled through the durable queue, so they survive
// a restart.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// Jitter is the fraction of the delay randomized away (0..1) so
	// simultaneous failures do not retry in lockstep.
	Jitter float64
}

// DefaultRetryPolicy returns the standard stage policy: 5 attempts with
// delays of roughly 15s, 1m, 5m, 15m capped at 1h.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 15 * time.Second,
		Multiplier:   4.0,
		MaxDelay:     1 * time.Hour,
		Jitter:       0.1,
	}
}

// ActionRetryPolicy returns the policy for external side effects, which get
// fewer attempts with tighter delays.
func ActionRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Second,
		Multiplier:   3.0,
		MaxDelay:     5 * time.Minute,
		Jitter:       0.1,
	}
}

// ShouldRetry reports whether the error is retryable and the attempt count
// (1-indexed, counting the attempt that just failed) leaves room for more.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return types.IsTransient(err)
}

// NextDelay returns the backoff delay after the given attempt number
// (1-indexed): InitialDelay * Multiplier^(attempt-1), capped at MaxDelay,
// minus up to Jitter of itself.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay -= delay * p.Jitter * rand.Float64()
	}
	return time.Duration(delay)
}
