// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

type CommentStore interface {
	Create(ctx context.Context, comment *Comment) error
	Get(ctx context.Context, id CommentID) (*Comment, error)
	Update(ctx context.Context, comment *Comment) error
	List(ctx context.Context) ([]*Comment, error)
	// FindByReplyID returns the comment whose posted reply has the given
	// platform ID, or nil when none matches.
	FindByReplyID(ctx context.Context, replyID CommentID) (*Comment, error)
}

type MediaStore interface {
	Get(ctx context.Context, id MediaID) (*Media, error)
	Put(ctx context.Context, media *Media) error
}

// Ledger admits external event IDs exactly once, surviving restarts.
type Ledger interface {
	Admit(ctx context.Context, eventID EventID, commentID CommentID) (*Admission, error)
}

type ClassificationStore interface {
	Append(ctx context.Context, cls *Classification) error
	Latest(ctx context.Context, id CommentID) (*Classification, error)
	History(ctx context.Context, id CommentID) ([]*Classification, error)
}

type SessionStore interface {
	AppendTurn(ctx context.Context, key ConversationKey, turn *Turn) error
	Tail(ctx context.Context, key ConversationKey, maxTurns int) ([]*Turn, error)
}

// TaskQueue is the durable, at-least-once, worker-pull task store.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *Task) error
	Claim(ctx context.Context, lease time.Duration) (*Task, error)
	Requeue(ctx context.Context, task *Task, delay time.Duration, countAttempt bool) error
	MarkSucceeded(ctx context.Context, task *Task) error
	MarkDead(ctx context.Context, task *Task, reason string) error
	Cancel(ctx context.Context, id TaskID) error
	Get(ctx context.Context, id TaskID) (*Task, error)
	ListByStatus(ctx context.Context, status TaskStatus) ([]*Task, error)
	ExpireLeases(ctx context.Context) (int, error)
}

// LockHandle is a held conversation lease.
type LockHandle interface {
	Renew(d time.Duration) error
	Release() error
}

// ConversationLock provides per-media mutual exclusion with auto-expiring
// leases. Acquire returns ErrLockBusy instead of blocking.
type ConversationLock interface {
	Acquire(ctx context.Context, key ConversationKey, lease time.Duration) (LockHandle, error)
}

// OutcomeRecorder persists terminal transitions, write-once per
// (comment, state) so duplicate action executions never double-count.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome *Outcome) error
	List(ctx context.Context) ([]*Outcome, error)
}
