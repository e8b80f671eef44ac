// internal/state/outcome_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/commentflow/internal/types"
)

func TestOutcomeStore_WriteOnce(t *testing.T) {
	store := NewOutcomeStore(t.TempDir())
	ctx := context.Background()

	first := &types.Outcome{
		CommentID: "c-1",
		State:     types.StatusActioned,
		Detail:    "replied",
		Usage:     types.Usage{InputTokens: 100, OutputTokens: 20},
	}
	if err := store.Record(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A duplicate execution records nothing new.
	dup := &types.Outcome{CommentID: "c-1", State: types.StatusActioned, Detail: "replied again"}
	if err := store.Record(ctx, dup); err != nil {
		t.Fatal(err)
	}

	outcomes, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Detail != "replied" {
		t.Errorf("expected first record to win, got %q", outcomes[0].Detail)
	}
	if outcomes[0].Usage.InputTokens != 100 {
		t.Errorf("usage not persisted: %+v", outcomes[0].Usage)
	}
}

func TestOutcomeStore_DistinctStates(t *testing.T) {
	store := NewOutcomeStore(t.TempDir())
	ctx := context.Background()

	if err := store.Record(ctx, &types.Outcome{CommentID: "c-1", State: types.StatusFailed}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, &types.Outcome{CommentID: "c-1", State: types.StatusCancelled}); err != nil {
		t.Fatal(err)
	}

	outcomes, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Errorf("expected 2 outcomes for distinct states, got %d", len(outcomes))
	}
}

func TestOutcomeStore_ListOrdered(t *testing.T) {
	store := NewOutcomeStore(t.TempDir())
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.Record(ctx, &types.Outcome{CommentID: "c-2", State: types.StatusActioned, At: now}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, &types.Outcome{CommentID: "c-1", State: types.StatusActioned, At: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	outcomes, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].CommentID != "c-1" {
		t.Errorf("expected oldest first, got %s", outcomes[0].CommentID)
	}
}
