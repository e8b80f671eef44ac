// internal/state/media_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/commentflow/internal/types"
)

func TestMediaStore_GetMissingIsNil(t *testing.T) {
	store := NewMediaStore(t.TempDir())

	media, err := store.Get(context.Background(), "m-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if media != nil {
		t.Errorf("expected nil for missing media, got %+v", media)
	}
}

func TestMediaStore_PutAndGet(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	ctx := context.Background()

	media := &types.Media{
		ID:                "m-1",
		Caption:           "new product drop",
		MediaURL:          "https://cdn.example.com/m-1.jpg",
		ProcessingEnabled: true,
		CreatedAt:         time.Now().UTC(),
	}
	if err := store.Put(ctx, media); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Caption != "new product drop" {
		t.Errorf("caption mismatch: %q", got.Caption)
	}
	if !got.ProcessingEnabled {
		t.Error("expected processing enabled")
	}
}

func TestMediaStore_PutUpserts(t *testing.T) {
	store := NewMediaStore(t.TempDir())
	ctx := context.Background()

	media := &types.Media{ID: "m-1", ProcessingEnabled: true}
	if err := store.Put(ctx, media); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	media.Analysis = "photo of a red sneaker, price tag $79"
	media.AnalyzedAt = &now
	if err := store.Put(ctx, media); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Analysis == "" || got.AnalyzedAt == nil {
		t.Errorf("expected cached analysis, got %+v", got)
	}
}
