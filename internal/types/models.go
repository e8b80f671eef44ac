// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// CommentStatus tracks which pipeline stage currently owns a comment.
type CommentStatus string

const (
	StatusReceived    CommentStatus = "received"
	StatusClassifying CommentStatus = "classifying"
	StatusEnriching   CommentStatus = "enriching"
	StatusDeciding    CommentStatus = "deciding"
	StatusActioned    CommentStatus = "actioned"
	StatusFailed      CommentStatus = "failed"
	StatusCancelled   CommentStatus = "cancelled"
)

// Terminal reports whether no further stage may mutate a comment in this status.
func (s CommentStatus) Terminal() bool {
	return s == StatusActioned || s == StatusFailed || s == StatusCancelled
}

type Comment struct {
	ID       CommentID `json:"id"`
	MediaID  MediaID   `json:"media_id"`
	ParentID CommentID `json:"parent_id,omitempty"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Text     string    `json:"text"`

	Status CommentStatus `json:"status"`

	// PendingEnrichments is the fan-in counter: number of enrichment
	// sources that have not yet reached a terminal result.
	PendingEnrichments int `json:"pending_enrichments,omitempty"`

	// Contexts holds enrichment results keyed by source name. An entry
	// exists once the source reached a terminal result (empty string for
	// a permanent enrichment failure), so reruns never double-decrement
	// the fan-in counter.
	Contexts map[string]string `json:"contexts,omitempty"`

	// Actions marks completed side effects by action kind. Checked before
	// executing, since the external calls are not idempotent themselves.
	Actions map[string]bool `json:"actions,omitempty"`

	// Decided is the persisted decision, set before the action tasks are
	// enqueued so a rerun of the decide stage re-enqueues instead of
	// re-invoking the agent.
	Decided *Decision `json:"decided,omitempty"`

	// ReplyID is the platform ID of the reply we posted, used to recognize
	// our own replies in later webhook deliveries.
	ReplyID CommentID `json:"reply_id,omitempty"`

	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Media struct {
	ID        MediaID `json:"id"`
	OwnerID   string  `json:"owner_id,omitempty"`
	Caption   string  `json:"caption,omitempty"`
	MediaType string  `json:"media_type,omitempty"`
	MediaURL  string  `json:"media_url,omitempty"`

	// ProcessingEnabled gates the whole pipeline for this media's thread.
	ProcessingEnabled bool `json:"processing_enabled"`

	// Analysis caches the media analysis result; AnalyzedAt is its version.
	Analysis   string     `json:"analysis,omitempty"`
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Classification is one classification attempt for a comment. History is
// retained; the latest record wins for decision-making.
type Classification struct {
	CommentID  CommentID `json:"comment_id"`
	Label      string    `json:"label"`
	Confidence int       `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Model      string    `json:"model,omitempty"`
	RawOutput  string    `json:"raw_output,omitempty"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at"`
}

// Turn is one entry in an agent session's append-only conversation log.
type Turn struct {
	Seq     int64     `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type TaskKind string

const (
	TaskClassify  TaskKind = "classify"
	TaskEnrich    TaskKind = "enrich"
	TaskDecide    TaskKind = "decide"
	TaskActReply  TaskKind = "act_reply"
	TaskActHide   TaskKind = "act_hide"
	TaskActNotify TaskKind = "act_notify"
)

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskDead      TaskStatus = "dead"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is one retryable unit of pipeline work.
type Task struct {
	ID           TaskID          `json:"id"`
	Kind         TaskKind        `json:"kind"`
	CommentID    CommentID       `json:"comment_id"`
	Conversation ConversationKey `json:"conversation"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Attempts     int             `json:"attempts"`
	Status       TaskStatus      `json:"status"`
	ScheduledAt  time.Time       `json:"scheduled_at"`

	// LeaseUntil is the visibility timeout while running: a running task
	// whose lease expired is re-deliverable.
	LeaseUntil time.Time `json:"lease_until,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionKind is the side effect a decision directs.
type ActionKind string

const (
	ActionReply  ActionKind = "reply"
	ActionHide   ActionKind = "hide"
	ActionNone   ActionKind = "none"
	ActionNotify ActionKind = "notify"
)

// Decision is the directive produced by the decision stage.
type Decision struct {
	Action    ActionKind `json:"action"`
	ReplyText string     `json:"reply_text,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	Usage     Usage      `json:"usage"`
}

// AdmitRecord maps an external event ID to its first admission.
type AdmitRecord struct {
	EventID   EventID   `json:"event_id"`
	CommentID CommentID `json:"comment_id"`
	FirstSeen time.Time `json:"first_seen"`
}

// Admission is the result of presenting an event ID to the ledger.
type Admission struct {
	Admitted bool
	Existing *AdmitRecord
}

// Usage tracks token consumption across agent calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Outcome records a comment's terminal transition for analytics.
type Outcome struct {
	CommentID CommentID     `json:"comment_id"`
	State     CommentStatus `json:"state"`
	Detail    string        `json:"detail,omitempty"`
	Usage     Usage         `json:"usage"`
	At        time.Time     `json:"at"`
}

// InboundEvent is the raw comment webhook delivery.
type InboundEvent struct {
	EventID   EventID   `json:"event_id"`
	MediaID   MediaID   `json:"media_id"`
	CommentID CommentID `json:"comment_id"`
	ParentID  CommentID `json:"parent_id,omitempty"`
	AuthorID  string    `json:"author_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp int64     `json:"timestamp"`
}
