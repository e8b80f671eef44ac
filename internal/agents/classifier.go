// internal/agents/classifier.go
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/pkg/llm"
)

// Categories the classifier may assign. Carried as data so the
// enrichment/action policies stay pluggable.
var Categories = []string{
	"positive feedback",
	"critical feedback",
	"urgent issue / complaint",
	"question / inquiry",
	"partnership proposal",
	"toxic / abusive",
	"spam / irrelevant",
}

const classifierSystemPrompt = `You classify Instagram comments on a business account into exactly one category.
Categories: %s.
Consider the conversation history and the post context when present.
Respond with a single JSON object: {"label": "<category>", "confidence": <0-100>, "reasoning": "<one sentence>"}.`

// Classifier invokes the classification agent.
type Classifier struct {
	provider llm.Provider
	builder  *ContextBuilder
	model    string
}

// NewClassifier creates a classifier on the given provider. model overrides
// the provider's default when non-empty.
func NewClassifier(provider llm.Provider, builder *ContextBuilder, model string) *Classifier {
	return &Classifier{provider: provider, builder: builder, model: model}
}

type classifierOutput struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// Classify labels a comment given its media context and session history.
func (c *Classifier) Classify(ctx context.Context, comment *types.Comment, media *types.Media, history []*types.Turn) (*types.Classification, error) {
	system := fmt.Sprintf(classifierSystemPrompt, strings.Join(Categories, "; "))
	if media != nil && media.Caption != "" {
		system += "\nPost caption: " + media.Caption
	}
	if media != nil && media.Analysis != "" {
		system += "\nPost content analysis: " + media.Analysis
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	messages = append(messages, c.builder.HistoryMessages(history)...)
	messages = append(messages, llm.Message{Role: "user", Content: comment.Text})

	resp, err := c.provider.Complete(ctx, messages, llm.Options{JSONResponse: true, Model: c.model})
	if err != nil {
		return nil, classifyCallError("classify comment", err)
	}

	var out classifierOutput
	if err := extractJSON(resp.Content, &out); err != nil {
		return nil, &types.TransientError{Op: "classify comment", Err: err}
	}
	if !validLabel(out.Label) {
		return nil, &types.TransientError{Op: "classify comment", Err: fmt.Errorf("unknown label %q", out.Label)}
	}

	return &types.Classification{
		CommentID:  comment.ID,
		Label:      out.Label,
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
		Model:      resp.Model,
		RawOutput:  resp.Content,
		Usage: types.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

func validLabel(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}
