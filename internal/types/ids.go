// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type CommentID string
type MediaID string
type EventID string
type TaskID string
type ConversationKey string

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// MediaConversationKey groups all comments under one media post. The
// conversation lock and the agent session store are keyed by this.
func MediaConversationKey(mediaID MediaID) ConversationKey {
	return ConversationKey("media:" + string(mediaID))
}
