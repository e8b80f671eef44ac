// internal/state/comment.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/commentflow/internal/types"
)

// CommentStore stores comments as individual JSON files under comments/.
// Create uses O_EXCL so two workers racing on the same comment ID cannot
// both insert it.
type CommentStore struct {
	root string
	mu   sync.RWMutex
}

// NewCommentStore creates a file-backed CommentStore rooted at the given directory.
func NewCommentStore(root string) *CommentStore {
	return &CommentStore{root: root}
}

func (s *CommentStore) commentPath(id types.CommentID) string {
	return filepath.Join(s.root, "comments", safeName(string(id))+".json")
}

// Create persists a new comment. Returns an error if the comment already exists.
func (s *CommentStore) Create(_ context.Context, comment *types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.commentPath(comment.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create comments dir: %w", err)
	}

	now := time.Now().UTC()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	comment.UpdatedAt = now

	data, err := json.MarshalIndent(comment, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("comment already exists: %s", comment.ID)
		}
		return fmt.Errorf("create comment file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	return nil
}

// Get returns the comment with the given ID.
func (s *CommentStore) Get(_ context.Context, id types.CommentID) (*types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.commentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("comment not found: %s", id)
		}
		return nil, fmt.Errorf("read comment: %w", err)
	}

	var comment types.Comment
	if err := json.Unmarshal(data, &comment); err != nil {
		return nil, fmt.Errorf("unmarshal comment: %w", err)
	}
	return &comment, nil
}

// Update persists changes to an existing comment, setting UpdatedAt to now.
func (s *CommentStore) Update(_ context.Context, comment *types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.commentPath(comment.ID)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("comment not found: %s", comment.ID)
	}

	comment.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(comment, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	return writeAtomic(path, data)
}

// FindByReplyID returns the comment whose posted reply carries the given
// platform ID, or nil when none matches.
func (s *CommentStore) FindByReplyID(ctx context.Context, replyID types.CommentID) (*types.Comment, error) {
	if replyID == "" {
		return nil, nil
	}
	comments, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, comment := range comments {
		if comment.ReplyID == replyID {
			return comment, nil
		}
	}
	return nil, nil
}

// List returns all comments ordered by creation time.
func (s *CommentStore) List(_ context.Context) ([]*types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.root, "comments", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob comments: %w", err)
	}

	comments := make([]*types.Comment, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read comment: %w", err)
		}
		var comment types.Comment
		if err := json.Unmarshal(data, &comment); err != nil {
			return nil, fmt.Errorf("unmarshal comment %s: %w", path, err)
		}
		comments = append(comments, &comment)
	}

	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}
