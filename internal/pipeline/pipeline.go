// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/commentflow/internal/types"
)

// Classifier invokes the classification agent.
type Classifier interface {
	Classify(ctx context.Context, comment *types.Comment, media *types.Media, history []*types.Turn) (*types.Classification, error)
}

// Decider invokes the decision agent.
type Decider interface {
	Decide(ctx context.Context, comment *types.Comment, label string, contexts map[string]string, history []*types.Turn) (*types.Decision, error)
}

// MediaAnalyzer produces a cacheable text description of a media's content.
type MediaAnalyzer interface {
	AnalyzeMedia(ctx context.Context, media *types.Media) (string, types.Usage, error)
}

// DocumentProvider retrieves knowledge-base context for a query.
type DocumentProvider interface {
	RetrieveContext(ctx context.Context, query string) (string, error)
}

// MediaFetcher resolves media metadata from the platform. Optional; when
// absent, media records are created lazily with empty metadata.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, id types.MediaID) (*types.Media, error)
}

// ReplyPoster posts a public reply to a comment, returning the platform ID
// of the reply.
type ReplyPoster interface {
	PostReply(ctx context.Context, commentID types.CommentID, text string) (types.CommentID, error)
}

// CommentHider hides a comment on the platform.
type CommentHider interface {
	HideComment(ctx context.Context, commentID types.CommentID) error
}

// OperatorNotifier delivers an alert to the operator channel.
type OperatorNotifier interface {
	NotifyOperator(ctx context.Context, summary string) error
}

// EnrichmentPolicy decides which context sources a classified comment
// needs. Pluggable: label-to-plan mappings are policy, not mechanism.
type EnrichmentPolicy func(label string, media *types.Media) []string

// NotifyPolicy reports whether a label warrants an operator alert.
type NotifyPolicy func(label string) bool

// Deps wires the pipeline's collaborators. Everything is injected; stage
// handlers hold no ambient state.
type Deps struct {
	Comments        types.CommentStore
	Media           types.MediaStore
	Ledger          types.Ledger
	Classifications types.ClassificationStore
	Sessions        types.SessionStore
	Tasks           types.TaskQueue
	Lock            types.ConversationLock
	Outcomes        types.OutcomeRecorder

	Classifier Classifier
	Decider    Decider
	Analyzer   MediaAnalyzer
	Documents  DocumentProvider
	Fetcher    MediaFetcher
	Replies    ReplyPoster
	Hider      CommentHider
	Operator   OperatorNotifier

	EnrichmentPolicy EnrichmentPolicy
	NotifyPolicy     NotifyPolicy

	Logger *slog.Logger
}

// Options tunes stage behavior.
type Options struct {
	// Lease is the conversation lock lease duration per stage execution.
	Lease time.Duration
	// MaxTurns bounds how much session history stages read.
	MaxTurns int
	// BotUsername identifies the account's own replies in webhooks.
	BotUsername string
}

// Pipeline owns the comment state machine. Each stage is a re-entrant task
// handler: duplicate deliveries and lease-expiry reruns are absorbed by the
// idempotency checks inside each handler.
type Pipeline struct {
	deps Deps
	opts Options
}

// New creates a pipeline. Missing policies default to never enriching and
// never notifying.
func New(deps Deps, opts Options) *Pipeline {
	if deps.EnrichmentPolicy == nil {
		deps.EnrichmentPolicy = func(string, *types.Media) []string { return nil }
	}
	if deps.NotifyPolicy == nil {
		deps.NotifyPolicy = func(string) bool { return false }
	}
	if opts.Lease <= 0 {
		opts.Lease = 60 * time.Second
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps, opts: opts}
}

// acquire takes the conversation lock for a comment's media thread.
func (p *Pipeline) acquire(ctx context.Context, key types.ConversationKey) (types.LockHandle, error) {
	return p.deps.Lock.Acquire(ctx, key, p.opts.Lease)
}

// renew extends the lease around a suspension point (agent or API call).
func renew(handle types.LockHandle, lease time.Duration) {
	// A failed renewal means the lease expired and may have been taken
	// over; the stage will fail on its next mutation, which is safe.
	_ = handle.Renew(lease)
}
