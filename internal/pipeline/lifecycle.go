// internal/pipeline/lifecycle.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/user/commentflow/internal/types"
)

// HandleDeadTask is the dead-letter hook: when a stage exhausts its retries
// the comment it was driving moves to failed so nothing is silently stuck.
func (p *Pipeline) HandleDeadTask(ctx context.Context, task *types.Task, reason string) {
	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		p.deps.Logger.Error("dead task for unknown comment",
			"task_id", task.ID, "comment_id", task.CommentID, "error", err)
		return
	}
	if comment.Status.Terminal() {
		return
	}

	comment.Status = types.StatusFailed
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		p.deps.Logger.Error("failed to mark comment failed",
			"comment_id", comment.ID, "error", err)
		return
	}

	outcome := &types.Outcome{
		CommentID: comment.ID,
		State:     types.StatusFailed,
		Detail:    fmt.Sprintf("%s: %s", task.Kind, reason),
		Usage:     comment.Usage,
		At:        time.Now().UTC(),
	}
	if err := p.deps.Outcomes.Record(ctx, outcome); err != nil {
		p.deps.Logger.Error("failed to record outcome",
			"comment_id", comment.ID, "error", err)
	}

	p.deps.Logger.Warn("comment failed",
		"comment_id", comment.ID, "task_kind", task.Kind, "reason", reason)
}

// RetryDeadTask puts a dead task back in the queue with a fresh attempt
// budget, reviving its comment from failed to the status the stage expects.
func (p *Pipeline) RetryDeadTask(ctx context.Context, id types.TaskID) error {
	task, err := p.deps.Tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != types.TaskDead {
		return fmt.Errorf("task %s is %s, only dead tasks can be retried", id, task.Status)
	}

	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return err
	}
	if comment.Status == types.StatusFailed {
		comment.Status = stageStatus(task.Kind)
		if err := p.deps.Comments.Update(ctx, comment); err != nil {
			return fmt.Errorf("revive comment: %w", err)
		}
	}

	task.Attempts = 0
	task.LastError = ""
	if err := p.deps.Tasks.Requeue(ctx, task, 0, false); err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}

	p.deps.Logger.Info("dead task retried", "task_id", id, "comment_id", task.CommentID)
	return nil
}

// stageStatus maps a task kind to the comment status its handler expects.
func stageStatus(kind types.TaskKind) types.CommentStatus {
	switch kind {
	case types.TaskClassify:
		return types.StatusClassifying
	case types.TaskEnrich:
		return types.StatusEnriching
	default:
		return types.StatusDeciding
	}
}

// CancelComment withdraws a comment from processing: its status becomes
// cancelled, queued tasks for it are cancelled, and stage handlers treat
// any in-flight redelivery as a no-op. Side effects already executed stay
// executed.
func (p *Pipeline) CancelComment(ctx context.Context, id types.CommentID) error {
	comment, err := p.deps.Comments.Get(ctx, id)
	if err != nil {
		return err
	}
	if comment.Status.Terminal() {
		return fmt.Errorf("comment %s is already %s", id, comment.Status)
	}

	comment.Status = types.StatusCancelled
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	queued, err := p.deps.Tasks.ListByStatus(ctx, types.TaskQueued)
	if err != nil {
		return fmt.Errorf("list queued tasks: %w", err)
	}
	for _, task := range queued {
		if task.CommentID != id {
			continue
		}
		if err := p.deps.Tasks.Cancel(ctx, task.ID); err != nil {
			// Lost the race with a worker claiming it; the handler's
			// status check absorbs the delivery.
			p.deps.Logger.Debug("task cancel raced",
				"task_id", task.ID, "error", err)
		}
	}

	outcome := &types.Outcome{
		CommentID: id,
		State:     types.StatusCancelled,
		Usage:     comment.Usage,
		At:        time.Now().UTC(),
	}
	if err := p.deps.Outcomes.Record(ctx, outcome); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	p.deps.Logger.Info("comment cancelled", "comment_id", id)
	return nil
}
