// internal/types/errors_test.go
package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_TypedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", &TransientError{Op: "call", Err: errors.New("timeout")}, true},
		{"permanent", &PermanentError{Op: "call", Err: errors.New("deleted")}, false},
		{"validation", &ValidationError{Reason: "missing id"}, false},
		{"invariant", &InvariantError{Reason: "unknown comment"}, false},
		{"wrapped transient", fmt.Errorf("stage: %w", &TransientError{Op: "x", Err: errors.New("reset")}), true},
		{"wrapped permanent", fmt.Errorf("stage: %w", &PermanentError{Op: "x", Err: errors.New("gone")}), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTransient_MessageHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"dial tcp: connection refused", true},
		{"read: connection reset by peer", true},
		{"context deadline exceeded (Client.Timeout)", true},
		{"rate limit exceeded", true},
		{"unauthorized", false},
		{"resource not found", false},
		{"invalid parameter", false},
		// Unknown errors default to retryable.
		{"something unexpected happened", true},
	}
	for _, tc := range cases {
		if got := IsTransient(errors.New(tc.msg)); got != tc.want {
			t.Errorf("%q: IsTransient = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestCommentStatus_Terminal(t *testing.T) {
	terminal := []CommentStatus{StatusActioned, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	active := []CommentStatus{StatusReceived, StatusClassifying, StatusEnriching, StatusDeciding}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2})
	if u.InputTokens != 13 || u.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", u)
	}
}
