// internal/pipeline/act.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/user/commentflow/internal/types"
)

// HandleActReply posts the decided reply. The Actions guard makes the task
// safe to redeliver: the reply is posted at most once per comment even when
// the queue delivers the task twice.
func (p *Pipeline) HandleActReply(ctx context.Context, task *types.Task) error {
	var payload replyPayload
	if err := decodePayload(task, &payload); err != nil {
		return err
	}

	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("reply task %s: %v", task.ID, err)}
	}
	if comment.Status == types.StatusCancelled || comment.Status == types.StatusFailed {
		return nil
	}

	handle, err := p.acquire(ctx, task.Conversation)
	if err != nil {
		return err
	}
	defer handle.Release()

	// Recheck under the lock: a lease-expiry redelivery racing the
	// original worker must see the recorded action, not a stale snapshot.
	comment, err = p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("reload comment: %w", err)
	}
	if comment.Status == types.StatusCancelled || comment.Status == types.StatusFailed {
		return nil
	}
	if comment.Actions[string(types.ActionReply)] {
		return p.ensureFinalized(ctx, comment, "replied")
	}

	replyID, err := p.deps.Replies.PostReply(ctx, comment.ID, payload.ReplyText)
	if err != nil {
		return err
	}
	renew(handle, p.opts.Lease)

	if comment.Actions == nil {
		comment.Actions = make(map[string]bool)
	}
	comment.Actions[string(types.ActionReply)] = true
	comment.ReplyID = replyID
	comment.Status = types.StatusActioned
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	turn := &types.Turn{Role: "assistant", Content: payload.ReplyText, At: time.Now().UTC()}
	if err := p.deps.Sessions.AppendTurn(ctx, task.Conversation, turn); err != nil {
		return fmt.Errorf("append session turn: %w", err)
	}

	p.deps.Logger.Info("reply posted",
		"comment_id", comment.ID, "reply_id", replyID)
	return p.recordOutcome(ctx, comment, "replied")
}

// HandleActHide hides the comment on the platform, guarded the same way.
func (p *Pipeline) HandleActHide(ctx context.Context, task *types.Task) error {
	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("hide task %s: %v", task.ID, err)}
	}
	if comment.Status == types.StatusCancelled || comment.Status == types.StatusFailed {
		return nil
	}

	handle, err := p.acquire(ctx, task.Conversation)
	if err != nil {
		return err
	}
	defer handle.Release()

	// Recheck under the lock, same as the reply path.
	comment, err = p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("reload comment: %w", err)
	}
	if comment.Status == types.StatusCancelled || comment.Status == types.StatusFailed {
		return nil
	}
	if comment.Actions[string(types.ActionHide)] {
		return p.ensureFinalized(ctx, comment, "hidden")
	}

	if err := p.deps.Hider.HideComment(ctx, comment.ID); err != nil {
		return err
	}
	renew(handle, p.opts.Lease)

	if comment.Actions == nil {
		comment.Actions = make(map[string]bool)
	}
	comment.Actions[string(types.ActionHide)] = true
	comment.Status = types.StatusActioned
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	p.deps.Logger.Info("comment hidden", "comment_id", comment.ID)
	return p.recordOutcome(ctx, comment, "hidden")
}

// HandleActNotify alerts the operator channel about a flagged comment. It
// runs alongside the main pipeline and never changes the comment's status.
func (p *Pipeline) HandleActNotify(ctx context.Context, task *types.Task) error {
	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("notify task %s: %v", task.ID, err)}
	}
	if comment.Status == types.StatusCancelled {
		return nil
	}
	if comment.Actions[string(types.ActionNotify)] {
		return nil
	}
	if p.deps.Operator == nil {
		return nil
	}

	handle, err := p.acquire(ctx, task.Conversation)
	if err != nil {
		return err
	}
	defer handle.Release()

	// Recheck under the lock: another delivery may have notified already.
	comment, err = p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("reload comment: %w", err)
	}
	if comment.Actions[string(types.ActionNotify)] {
		return nil
	}

	label := "unclassified"
	if cls, err := p.deps.Classifications.Latest(ctx, comment.ID); err == nil {
		label = cls.Label
	}
	summary := fmt.Sprintf("[%s] @%s on media %s:\n%s",
		label, comment.Username, comment.MediaID, comment.Text)

	if err := p.deps.Operator.NotifyOperator(ctx, summary); err != nil {
		return err
	}
	renew(handle, p.opts.Lease)

	if comment.Actions == nil {
		comment.Actions = make(map[string]bool)
	}
	comment.Actions[string(types.ActionNotify)] = true
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	p.deps.Logger.Info("operator notified", "comment_id", comment.ID, "label", label)
	return nil
}

// ensureFinalized repairs a comment whose action completed but whose
// terminal transition was lost to a crash.
func (p *Pipeline) ensureFinalized(ctx context.Context, comment *types.Comment, detail string) error {
	if comment.Status == types.StatusActioned {
		return nil
	}
	comment.Status = types.StatusActioned
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return p.recordOutcome(ctx, comment, detail)
}

func (p *Pipeline) recordOutcome(ctx context.Context, comment *types.Comment, detail string) error {
	outcome := &types.Outcome{
		CommentID: comment.ID,
		State:     types.StatusActioned,
		Detail:    detail,
		Usage:     comment.Usage,
		At:        time.Now().UTC(),
	}
	if err := p.deps.Outcomes.Record(ctx, outcome); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}
