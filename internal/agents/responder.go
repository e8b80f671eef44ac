// internal/agents/responder.go
package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/pkg/llm"
)

// Label sets driving the default decision routing, mirroring the
// moderation rules of the account operators.
var (
	answerLabels = map[string]bool{
		"question / inquiry": true,
	}
	hideLabels = map[string]bool{
		"toxic / abusive":   true,
		"spam / irrelevant": true,
	}
)

const responderSystemPrompt = `You write short, friendly replies to Instagram comments on a business account, in the language of the comment.
Ground every factual claim in the provided context; if the context does not answer the question, say you will follow up rather than guessing.
Respond with a single JSON object: {"action": "reply" or "none", "reply_text": "<the reply>", "reasoning": "<one sentence>"}.`

// Responder is the decision agent: it turns a classification label plus
// enrichment context into an action directive. Hide/no-op labels are routed
// without an LLM call; only answerable questions reach the model.
type Responder struct {
	provider llm.Provider
	builder  *ContextBuilder
	model    string
}

// NewResponder creates a responder on the given provider. model overrides
// the provider's default when non-empty.
func NewResponder(provider llm.Provider, builder *ContextBuilder, model string) *Responder {
	return &Responder{provider: provider, builder: builder, model: model}
}

type responderOutput struct {
	Action    string `json:"action"`
	ReplyText string `json:"reply_text"`
	Reasoning string `json:"reasoning"`
}

// Decide produces the action directive for a classified comment.
func (r *Responder) Decide(ctx context.Context, comment *types.Comment, label string, contexts map[string]string, history []*types.Turn) (*types.Decision, error) {
	if hideLabels[label] {
		return &types.Decision{Action: types.ActionHide, Reasoning: "label " + label}, nil
	}
	if !answerLabels[label] {
		return &types.Decision{Action: types.ActionNone, Reasoning: "label " + label}, nil
	}

	system := responderSystemPrompt
	if block := contextBlock(contexts); block != "" {
		system += "\n\nContext:\n" + block
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	messages = append(messages, r.builder.HistoryMessages(history)...)
	messages = append(messages, llm.Message{Role: "user", Content: comment.Text})

	resp, err := r.provider.Complete(ctx, messages, llm.Options{JSONResponse: true, Model: r.model})
	if err != nil {
		return nil, classifyCallError("generate answer", err)
	}

	var out responderOutput
	if err := extractJSON(resp.Content, &out); err != nil {
		return nil, &types.TransientError{Op: "generate answer", Err: err}
	}

	decision := &types.Decision{
		Action:    types.ActionNone,
		Reasoning: out.Reasoning,
		Usage: types.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	if out.Action == "reply" && strings.TrimSpace(out.ReplyText) != "" {
		decision.Action = types.ActionReply
		decision.ReplyText = strings.TrimSpace(out.ReplyText)
	}
	return decision, nil
}

// contextBlock renders non-empty context sources in a stable order so the
// same inputs produce the same prompt.
func contextBlock(contexts map[string]string) string {
	sources := make([]string, 0, len(contexts))
	for source, text := range contexts {
		if text != "" {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)

	var parts []string
	for _, source := range sources {
		parts = append(parts, "["+source+"]\n"+contexts[source])
	}
	return strings.Join(parts, "\n\n")
}
