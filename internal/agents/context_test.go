// internal/agents/context_test.go
package agents

import (
	"strings"
	"testing"

	"github.com/user/commentflow/internal/types"
)

// charBuilder approximates tokens at 4 chars each, which keeps the budget
// math deterministic regardless of which encoding is available.
func charBuilder(maxTokens int) *ContextBuilder {
	return &ContextBuilder{maxTokens: maxTokens}
}

func TestContextBuilder_KeepsEverythingWithinBudget(t *testing.T) {
	builder := charBuilder(1000)
	turns := []*types.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}

	messages := builder.HistoryMessages(turns)
	if len(messages) != 3 {
		t.Fatalf("expected all turns kept, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[2].Content != "third" {
		t.Errorf("expected chronological order, got %q..%q", messages[0].Content, messages[2].Content)
	}
}

func TestContextBuilder_TruncatesOldestFirst(t *testing.T) {
	// Each turn costs 10 tokens (40 chars); a budget of 25 fits two.
	content := strings.Repeat("x", 40)
	turns := []*types.Turn{
		{Role: "user", Content: content + "A"},
		{Role: "user", Content: content},
		{Role: "user", Content: content},
	}

	messages := charBuilder(25).HistoryMessages(turns)
	if len(messages) != 2 {
		t.Fatalf("expected 2 turns within budget, got %d", len(messages))
	}
	for _, m := range messages {
		if strings.HasSuffix(m.Content, "A") {
			t.Error("expected the oldest turn dropped")
		}
	}
}

func TestContextBuilder_EmptyHistory(t *testing.T) {
	if messages := charBuilder(100).HistoryMessages(nil); len(messages) != 0 {
		t.Errorf("expected no messages, got %d", len(messages))
	}
}

func TestNewContextBuilder_RejectsNonPositiveBudget(t *testing.T) {
	if _, err := NewContextBuilder("gpt-4o-mini", 0); err == nil {
		t.Fatal("expected error for zero budget")
	}
}
