// internal/state/media.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/commentflow/internal/types"
)

// MediaStore stores media records as individual JSON files under media/.
type MediaStore struct {
	root string
	mu   sync.RWMutex
}

// NewMediaStore creates a file-backed MediaStore rooted at the given directory.
func NewMediaStore(root string) *MediaStore {
	return &MediaStore{root: root}
}

func (s *MediaStore) mediaPath(id types.MediaID) string {
	return filepath.Join(s.root, "media", safeName(string(id))+".json")
}

// Get returns the media record, or nil if it does not exist.
func (s *MediaStore) Get(_ context.Context, id types.MediaID) (*types.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.mediaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read media: %w", err)
	}

	var media types.Media
	if err := json.Unmarshal(data, &media); err != nil {
		return nil, fmt.Errorf("unmarshal media: %w", err)
	}
	return &media, nil
}

// Put creates or replaces the media record.
func (s *MediaStore) Put(_ context.Context, media *types.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(media, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}
	return writeAtomic(s.mediaPath(media.ID), data)
}
