// internal/pipeline/ingest.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/commentflow/internal/types"
)

// IngestResult reports what happened to an inbound event.
type IngestResult struct {
	Accepted  bool            `json:"accepted"`
	Reason    string          `json:"reason,omitempty"`
	CommentID types.CommentID `json:"comment_id,omitempty"`
}

// Ingest is the synchronous front of the pipeline: validate the event,
// apply the skip rules, admit it through the idempotency ledger exactly
// once, and enqueue the first stage. Everything after this point is
// asynchronous task work.
func (p *Pipeline) Ingest(ctx context.Context, event *types.InboundEvent) (*IngestResult, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if reason := p.skipReason(ctx, event); reason != "" {
		p.deps.Logger.Info("skipping comment",
			"comment_id", event.CommentID, "reason", reason)
		return &IngestResult{Accepted: false, Reason: reason}, nil
	}

	admission, err := p.deps.Ledger.Admit(ctx, event.EventID, event.CommentID)
	if err != nil {
		return nil, fmt.Errorf("admit event: %w", err)
	}
	if !admission.Admitted {
		result := &IngestResult{Accepted: false, Reason: "duplicate event"}
		if admission.Existing != nil {
			result.CommentID = admission.Existing.CommentID
		}
		return result, nil
	}

	media, err := p.resolveMedia(ctx, event.MediaID)
	if err != nil {
		return nil, err
	}
	if !media.ProcessingEnabled {
		p.deps.Logger.Info("processing disabled for media",
			"media_id", media.ID, "comment_id", event.CommentID)
		return &IngestResult{Accepted: false, Reason: "processing disabled"}, nil
	}

	comment := &types.Comment{
		ID:       event.CommentID,
		MediaID:  event.MediaID,
		ParentID: event.ParentID,
		UserID:   event.AuthorID,
		Username: event.Username,
		Text:     event.Text,
		Status:   types.StatusClassifying,
	}
	if err := p.deps.Comments.Create(ctx, comment); err != nil {
		// The ledger admitted the event, so a pre-existing comment means a
		// redelivery raced us past the ledger write. Treat as duplicate.
		if existing, getErr := p.deps.Comments.Get(ctx, comment.ID); getErr == nil {
			return &IngestResult{Accepted: false, Reason: "duplicate comment", CommentID: existing.ID}, nil
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}

	key := types.MediaConversationKey(event.MediaID)
	turn := &types.Turn{Role: "user", Content: event.Text, At: time.Now().UTC()}
	if err := p.deps.Sessions.AppendTurn(ctx, key, turn); err != nil {
		return nil, fmt.Errorf("append session turn: %w", err)
	}

	task := &types.Task{
		Kind:         types.TaskClassify,
		CommentID:    comment.ID,
		Conversation: key,
	}
	if err := p.deps.Tasks.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue classify: %w", err)
	}

	p.deps.Logger.Info("comment admitted",
		"comment_id", comment.ID, "media_id", comment.MediaID, "event_id", event.EventID)
	return &IngestResult{Accepted: true, CommentID: comment.ID}, nil
}

func validateEvent(event *types.InboundEvent) error {
	switch {
	case event == nil:
		return &types.ValidationError{Reason: "nil event"}
	case event.EventID == "":
		return &types.ValidationError{Reason: "missing event_id"}
	case event.CommentID == "":
		return &types.ValidationError{Reason: "missing comment_id"}
	case event.MediaID == "":
		return &types.ValidationError{Reason: "missing media_id"}
	}
	return nil
}

// skipReason applies the ignore rules: the account's own comments, replies
// to replies we posted, and empty comment text.
func (p *Pipeline) skipReason(ctx context.Context, event *types.InboundEvent) string {
	if strings.TrimSpace(event.Text) == "" {
		return "empty text"
	}
	if p.opts.BotUsername != "" && strings.EqualFold(event.Username, p.opts.BotUsername) {
		return "own comment"
	}
	if event.ParentID != "" {
		parent, err := p.deps.Comments.FindByReplyID(ctx, event.ParentID)
		if err == nil && parent != nil {
			return "reply to our reply"
		}
	}
	return ""
}

// resolveMedia returns the media record, fetching metadata from the
// platform on first sight. When no fetcher is wired (or the fetch fails)
// a placeholder record with processing enabled is created so the comment
// is not lost; metadata fills in on a later fetch.
func (p *Pipeline) resolveMedia(ctx context.Context, id types.MediaID) (*types.Media, error) {
	media, err := p.deps.Media.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	if media != nil {
		return media, nil
	}

	if p.deps.Fetcher != nil {
		fetched, err := p.deps.Fetcher.FetchMedia(ctx, id)
		if err != nil {
			p.deps.Logger.Warn("media fetch failed, using placeholder",
				"media_id", id, "error", err)
		} else if fetched != nil {
			media = fetched
		}
	}
	if media == nil {
		media = &types.Media{ID: id, ProcessingEnabled: true}
	}
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}
	if err := p.deps.Media.Put(ctx, media); err != nil {
		return nil, fmt.Errorf("put media: %w", err)
	}
	return media, nil
}
