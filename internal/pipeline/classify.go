// internal/pipeline/classify.go
package pipeline

import (
	"context"
	"fmt"

	"github.com/user/commentflow/internal/types"
)

// HandleClassify labels a comment and routes it to enrichment or straight
// to decision. Re-entrant: a rerun of an already-advanced comment is a no-op.
func (p *Pipeline) HandleClassify(ctx context.Context, task *types.Task) error {
	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("classify task %s: %v", task.ID, err)}
	}
	if comment.Status != types.StatusClassifying {
		// Terminal, cancelled, or already past this stage.
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
	if comment.Status != types.StatusClassifying {
		return nil
	}

	media, err := p.deps.Media.Get(ctx, comment.MediaID)
	if err != nil {
		return fmt.Errorf("get media: %w", err)
	}
	history, err := p.deps.Sessions.Tail(ctx, task.Conversation, p.opts.MaxTurns)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	cls, err := p.deps.Classifier.Classify(ctx, comment, media, history)
	if err != nil {
		return err
	}
	renew(handle, p.opts.Lease)

	if err := p.deps.Classifications.Append(ctx, cls); err != nil {
		return fmt.Errorf("append classification: %w", err)
	}
	comment.Usage.Add(cls.Usage)

	p.deps.Logger.Info("comment classified",
		"comment_id", comment.ID, "label", cls.Label, "confidence", cls.Confidence)

	if p.deps.NotifyPolicy(cls.Label) {
		notify := &types.Task{
			Kind:         types.TaskActNotify,
			CommentID:    comment.ID,
			Conversation: task.Conversation,
		}
		if err := p.deps.Tasks.Enqueue(ctx, notify); err != nil {
			return fmt.Errorf("enqueue notify: %w", err)
		}
	}

	plan := p.pendingSources(comment, p.deps.EnrichmentPolicy(cls.Label, media))
	if len(plan) == 0 {
		comment.Status = types.StatusDeciding
		if err := p.deps.Comments.Update(ctx, comment); err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		return p.enqueueDecide(ctx, comment, task.Conversation)
	}

	comment.Status = types.StatusEnriching
	comment.PendingEnrichments = len(plan)
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	for _, source := range plan {
		enrich := &types.Task{
			Kind:         types.TaskEnrich,
			CommentID:    comment.ID,
			Conversation: task.Conversation,
			Payload:      encodePayload(enrichPayload{Source: source}),
		}
		if err := p.deps.Tasks.Enqueue(ctx, enrich); err != nil {
			return fmt.Errorf("enqueue enrich %s: %w", source, err)
		}
	}
	return nil
}

// pendingSources filters the plan down to sources without a terminal
// result yet, so a rerun never re-counts finished enrichments.
func (p *Pipeline) pendingSources(comment *types.Comment, plan []string) []string {
	var pending []string
	for _, source := range plan {
		if _, done := comment.Contexts[source]; !done {
			pending = append(pending, source)
		}
	}
	return pending
}

func (p *Pipeline) enqueueDecide(ctx context.Context, comment *types.Comment, key types.ConversationKey) error {
	decide := &types.Task{
		Kind:         types.TaskDecide,
		CommentID:    comment.ID,
		Conversation: key,
	}
	if err := p.deps.Tasks.Enqueue(ctx, decide); err != nil {
		return fmt.Errorf("enqueue decide: %w", err)
	}
	return nil
}
