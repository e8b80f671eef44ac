// internal/agents/context.go
package agents

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/pkg/llm"
)

// ContextBuilder assembles token-budgeted session context for agent calls.
type ContextBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewContextBuilder creates a context builder with the specified token
// budget for history. model selects the tokenizer (e.g. "gpt-4o-mini");
// unknown models fall back to cl100k_base, and when no encoding can be
// loaded at all a character-based estimate is used instead.
func NewContextBuilder(model string, maxTokens int) (*ContextBuilder, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("context budget must be positive, got %d", maxTokens)
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &ContextBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
	}, nil
}

// countTokens returns the token count for a string, approximating with
// 4 chars per token when no tokenizer is available.
func (b *ContextBuilder) countTokens(text string) int {
	if b.tokenizer == nil {
		return (len(text) + 3) / 4
	}
	return len(b.tokenizer.Encode(text, nil, nil))
}

// HistoryMessages converts session turns to chat messages newest-first
// within the token budget, returned in chronological order. Truncation is
// silent; callers tolerate partial history.
func (b *ContextBuilder) HistoryMessages(turns []*types.Turn) []llm.Message {
	used := 0
	var kept []llm.Message
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		cost := b.countTokens(turn.Content)
		if used+cost > b.maxTokens {
			break
		}
		kept = append(kept, llm.Message{Role: turn.Role, Content: turn.Content})
		used += cost
	}

	// Reverse back to chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
