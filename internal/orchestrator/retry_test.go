// internal/orchestrator/retry_test.go
package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/user/commentflow/internal/types"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := DefaultRetryPolicy()

	transient := &types.TransientError{Op: "call", Err: errors.New("rate limit")}
	if !policy.ShouldRetry(transient, 1) {
		t.Error("expected transient error to be retryable")
	}

	permanent := &types.PermanentError{Op: "call", Err: errors.New("target deleted")}
	if policy.ShouldRetry(permanent, 1) {
		t.Error("expected permanent error to be non-retryable")
	}

	if policy.ShouldRetry(transient, policy.MaxAttempts) {
		t.Error("should not retry once attempts are exhausted")
	}
}

func TestRetryPolicy_UntypedErrorHeuristics(t *testing.T) {
	policy := DefaultRetryPolicy()

	if !policy.ShouldRetry(errors.New("connection refused"), 1) {
		t.Error("expected connection error to be retryable")
	}
	if policy.ShouldRetry(errors.New("unauthorized"), 1) {
		t.Error("expected auth error to be non-retryable")
	}
	if policy.ShouldRetry(nil, 1) {
		t.Error("nil error should not be retryable")
	}
}

func TestRetryPolicy_NextDelayProgression(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 15 * time.Second,
		Multiplier:   4.0,
		MaxDelay:     time.Hour,
	}

	if d := policy.NextDelay(1); d != 15*time.Second {
		t.Errorf("attempt 1: expected 15s, got %v", d)
	}
	if d := policy.NextDelay(2); d != 60*time.Second {
		t.Errorf("attempt 2: expected 1m, got %v", d)
	}
	if d := policy.NextDelay(3); d != 4*time.Minute {
		t.Errorf("attempt 3: expected 4m, got %v", d)
	}
	if d := policy.NextDelay(10); d != time.Hour {
		t.Errorf("attempt 10: expected cap at 1h, got %v", d)
	}
}

func TestRetryPolicy_JitterStaysBounded(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     time.Minute,
		Jitter:       0.2,
	}

	for i := 0; i < 50; i++ {
		d := policy.NextDelay(1)
		if d > 10*time.Second || d < 8*time.Second {
			t.Fatalf("jittered delay %v outside [8s,10s]", d)
		}
	}
}
