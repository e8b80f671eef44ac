// internal/pipeline/enrich.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/commentflow/internal/agents"
	"github.com/user/commentflow/internal/types"
)

// HandleEnrich resolves one context source for a comment and decrements the
// fan-in counter. A permanent enrichment failure is terminal for the source
// but not for the comment: it records an empty result and the decision
// stage works with what it has. Only transient errors bubble up for retry.
func (p *Pipeline) HandleEnrich(ctx context.Context, task *types.Task) error {
	var payload enrichPayload
	if err := decodePayload(task, &payload); err != nil {
		return err
	}

	comment, err := p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return &types.InvariantError{Reason: fmt.Sprintf("enrich task %s: %v", task.ID, err)}
	}
	if comment.Status != types.StatusEnriching {
		return nil
	}
	if _, done := comment.Contexts[payload.Source]; done {
		// A previous run already recorded this source.
		return nil
	}

	handle, err := p.acquire(ctx, task.Conversation)
	if err != nil {
		return err
	}
	defer handle.Release()

	// Reload under the lock: a sibling enrichment may have written its
	// result between the pre-lock read and the acquire, and mutating that
	// stale snapshot would erase it and strand the fan-in counter.
	comment, err = p.deps.Comments.Get(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("reload comment: %w", err)
	}
	if comment.Status != types.StatusEnriching {
		return nil
	}
	if _, done := comment.Contexts[payload.Source]; done {
		return nil
	}

	result, usage, err := p.resolveSource(ctx, comment, payload.Source)
	if err != nil {
		var permanent *types.PermanentError
		if !errors.As(err, &permanent) {
			return err
		}
		// Terminal for this source: record the miss and move on.
		p.deps.Logger.Warn("enrichment failed permanently",
			"comment_id", comment.ID, "source", payload.Source, "error", err)
		result = ""
	}
	renew(handle, p.opts.Lease)

	if comment.Contexts == nil {
		comment.Contexts = make(map[string]string)
	}
	comment.Contexts[payload.Source] = result
	comment.Usage.Add(usage)
	if comment.PendingEnrichments > 0 {
		comment.PendingEnrichments--
	}

	lastSource := comment.PendingEnrichments == 0
	if lastSource {
		comment.Status = types.StatusDeciding
	}
	if err := p.deps.Comments.Update(ctx, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if lastSource {
		return p.enqueueDecide(ctx, comment, task.Conversation)
	}
	return nil
}

func (p *Pipeline) resolveSource(ctx context.Context, comment *types.Comment, source string) (string, types.Usage, error) {
	switch source {
	case agents.SourceMediaAnalysis:
		return p.analyzeMedia(ctx, comment)
	case agents.SourceDocumentLookup:
		if p.deps.Documents == nil {
			return "", types.Usage{}, &types.PermanentError{
				Op:  "document lookup",
				Err: errors.New("no document provider configured"),
			}
		}
		text, err := p.deps.Documents.RetrieveContext(ctx, comment.Text)
		return text, types.Usage{}, err
	default:
		return "", types.Usage{}, &types.PermanentError{
			Op:  "resolve source",
			Err: fmt.Errorf("unknown enrichment source %q", source),
		}
	}
}

// analyzeMedia returns the cached analysis when present, otherwise runs the
// analyzer and caches the result on the media record.
func (p *Pipeline) analyzeMedia(ctx context.Context, comment *types.Comment) (string, types.Usage, error) {
	media, err := p.deps.Media.Get(ctx, comment.MediaID)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("get media: %w", err)
	}
	if media == nil {
		return "", types.Usage{}, &types.InvariantError{
			Reason: fmt.Sprintf("comment %s references missing media %s", comment.ID, comment.MediaID),
		}
	}
	if media.Analysis != "" {
		return media.Analysis, types.Usage{}, nil
	}
	if p.deps.Analyzer == nil {
		return "", types.Usage{}, &types.PermanentError{
			Op:  "analyze media",
			Err: errors.New("no media analyzer configured"),
		}
	}

	analysis, usage, err := p.deps.Analyzer.AnalyzeMedia(ctx, media)
	if err != nil {
		return "", usage, err
	}

	now := time.Now().UTC()
	media.Analysis = analysis
	media.AnalyzedAt = &now
	if err := p.deps.Media.Put(ctx, media); err != nil {
		return "", usage, fmt.Errorf("cache media analysis: %w", err)
	}
	return analysis, usage, nil
}
