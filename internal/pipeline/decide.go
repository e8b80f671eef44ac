// internal/pipeline/decide.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/user/commentflow/internal/types"
)

// HandleDecide turns a classified, enriched comment into an action. The
// decision is persisted on the comment before the action task is enqueued,
// so a rerun re-enqueues the action instead of consulting the agent again.
func (p *Pipeline) HandleDecide(ctx context.Context, task *types.Task) error {
	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("decide task %s: %v", task.ID, err)}
	}
	if comment.Status != types.StatusDeciding {
		return nil
	}

	handle, err := p.acquire(ctx, task.Conversation)
	if err != nil {
		return err
	}
	defer handle.Release()

	// Reload under the lock: the pre-lock read raced other workers.
	comment, err = p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("reload comment: %w", err)
	}
	if comment.Status != types.StatusDeciding {
		return nil
	}

	if comment.Decided != nil {
		return p.dispatchAction(ctx, comment, task.Conversation)
	}

	cls, err := p.deps.Classifications.Latest(ctx, comment.ID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("deciding unclassified comment %s: %v", comment.ID, err)}
	}
	history, err := p.deps.Sessions.Tail(ctx, task.Conversation, p.opts.MaxTurns)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	decision, err := p.deps.Decider.Decide(ctx, comment, cls.Label, comment.Contexts, history)
	if err != nil {
		return err
	}
	renew(handle, p.opts.Lease)

	comment.Decided = decision
	comment.Usage.Add(decision.Usage)
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	p.deps.Logger.Info("decision made",
		"comment_id", comment.ID, "action", decision.Action)
	return p.dispatchAction(ctx, comment, task.Conversation)
}

// dispatchAction enqueues the task for the decided action, or finalizes the
// comment directly when no side effect is needed.
func (p *Pipeline) dispatchAction(ctx context.Context, comment *types.Comment, key types.ConversationKey) error {
	switch comment.Decided.Action {
	case types.ActionReply:
		act := &types.Task{
			Kind:         types.TaskActReply,
			CommentID:    comment.ID,
			Conversation: key,
			Payload:      encodePayload(replyPayload{ReplyText: comment.Decided.ReplyText}),
		}
		if err := p.deps.Tasks.Enqueue(ctx, act); err != nil {
			return fmt.Errorf("enqueue reply: %w", err)
		}
	case types.ActionHide:
		act := &types.Task{
			Kind:         types.TaskActHide,
			CommentID:    comment.ID,
			Conversation: key,
		}
		if err := p.deps.Tasks.Enqueue(ctx, act); err != nil {
			return fmt.Errorf("enqueue hide: %w", err)
		}
	case types.ActionNone:
		return p.finalize(ctx, comment, "no action")
	default:
		return &types.InvariantError{
			Reason: fmt.Sprintf("comment %s decided unknown action %q", comment.ID, comment.Decided.Action),
		}
	}
	return nil
}

// finalize moves a comment to actioned and records the terminal outcome.
// The outcome store is write-once per (comment, state), so reruns cannot
// double-count.
func (p *Pipeline) finalize(ctx context.Context, comment *types.Comment, detail string) error {
	comment.Status = types.StatusActioned
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
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
