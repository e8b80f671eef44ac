// internal/pipeline/payload.go
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/user/commentflow/internal/types"
)

type enrichPayload struct {
	Source string `json:"source"`
}

type replyPayload struct {
	ReplyText string `json:"reply_text"`
}

func encodePayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Payload structs are plain strings; this cannot fail in practice.
		panic(fmt.Sprintf("encode task payload: %v", err))
	}
	return data
}

func decodePayload(task *types.Task, v any) error {
	if len(task.Payload) == 0 {
		return &types.PermanentError{
			Op:  "decode payload",
			Err: fmt.Errorf("task %s has no payload", task.ID),
		}
	}
	if err := json.Unmarshal(task.Payload, v); err != nil {
		return &types.PermanentError{
			Op:  "decode payload",
			Err: fmt.Errorf("task %s: %w", task.ID, err),
		}
	}
	return nil
}
