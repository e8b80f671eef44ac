// internal/state/comment_test.go
package state

import (
	"context"
	"testing"

	"github.com/user/commentflow/internal/types"
)

func TestCommentStore_CreateAndGet(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	ctx := context.Background()

	comment := &types.Comment{
		ID:       "c-1",
		MediaID:  "m-1",
		UserID:   "u-1",
		Username: "alice",
		Text:     "how much is this?",
		Status:   types.StatusClassifying,
	}
	if err := store.Create(ctx, comment); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "how much is this?" {
		t.Errorf("text mismatch: %q", got.Text)
	}
	if got.Status != types.StatusClassifying {
		t.Errorf("status mismatch: %s", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCommentStore_CreateDuplicate(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	ctx := context.Background()

	comment := &types.Comment{ID: "c-1", MediaID: "m-1", Status: types.StatusClassifying}
	if err := store.Create(ctx, comment); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, comment); err == nil {
		t.Fatal("expected error for duplicate comment")
	}
}

func TestCommentStore_GetNotFound(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing comment")
	}
}

func TestCommentStore_Update(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	ctx := context.Background()

	comment := &types.Comment{ID: "c-1", MediaID: "m-1", Status: types.StatusClassifying}
	if err := store.Create(ctx, comment); err != nil {
		t.Fatal(err)
	}

	comment.Status = types.StatusActioned
	comment.Contexts = map[string]string{"document_lookup": "pricing info"}
	if err := store.Update(ctx, comment); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusActioned {
		t.Errorf("expected actioned, got %s", got.Status)
	}
	if got.Contexts["document_lookup"] != "pricing info" {
		t.Errorf("contexts not persisted: %v", got.Contexts)
	}
}

func TestCommentStore_UpdateMissing(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	comment := &types.Comment{ID: "c-1", Status: types.StatusClassifying}
	if err := store.Update(context.Background(), comment); err == nil {
		t.Fatal("expected error updating missing comment")
	}
}

func TestCommentStore_FindByReplyID(t *testing.T) {
	store := NewCommentStore(t.TempDir())
	ctx := context.Background()

	comment := &types.Comment{ID: "c-1", MediaID: "m-1", Status: types.StatusActioned, ReplyID: "r-1"}
	if err := store.Create(ctx, comment); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindByReplyID(ctx, "r-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "c-1" {
		t.Fatalf("expected c-1, got %+v", got)
	}

	got, err = store.FindByReplyID(ctx, "r-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown reply ID, got %s", got.ID)
	}

	got, err = store.FindByReplyID(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected nil for empty reply ID")
	}
}
