// internal/types/heuristics.go
package types

import "strings"

// messageLooksTransient classifies untyped errors by message.
// Connection and timeout failures are retryable; auth/validation are not.
// Unknown errors default to retryable.
func messageLooksTransient(msg string) bool {
	msg = strings.ToLower(msg)

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}

	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "not found") {
		return false
	}

	return true
}
