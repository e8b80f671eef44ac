// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// ErrLockBusy is returned by the conversation lock when another stage
// holds the lease. Callers re-queue with backoff instead of waiting.
var ErrLockBusy = errors.New("conversation lock busy")

// ValidationError marks malformed input. Never retried, always reported.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// TransientError marks a failure worth retrying with backoff
// (timeout, rate limit, network).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an external failure that retrying cannot fix
// (target deleted, permission revoked).
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// InvariantError marks an internal inconsistency (e.g. a decision task
// for a comment that does not exist). The pipeline halts for that comment.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}

// IsTransient reports whether err should be retried. Typed errors win;
// untyped errors fall back to message heuristics, defaulting to retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var validation *ValidationError
	var permanent *PermanentError
	var invariant *InvariantError
	if errors.As(err, &validation) || errors.As(err, &permanent) || errors.As(err, &invariant) {
		return false
	}
	return messageLooksTransient(err.Error())
}
