// internal/agents/parse.go
package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/pkg/llm"
)

// extractJSON unmarshals the first JSON object found in an agent reply.
// Models occasionally wrap the object in prose or a code fence.
func extractJSON(content string, v any) error {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in agent output")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return fmt.Errorf("parse agent output: %w", err)
	}
	return nil
}

// classifyCallError maps provider failures onto the pipeline error taxonomy.
func classifyCallError(op string, err error) error {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			return &types.TransientError{Op: op, Err: err}
		}
		return &types.PermanentError{Op: op, Err: err}
	}
	// Transport-level failures (timeouts, resets) are worth retrying.
	return &types.TransientError{Op: op, Err: err}
}
