// internal/state/classification.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/commentflow/internal/types"
)

// ClassificationStore is a JSONL-backed append-only store of classification
// attempts, one file per comment. History is retained for audit; the last
// line wins for decision-making.
type ClassificationStore struct {
	root string
	mu   sync.Mutex
}

// NewClassificationStore creates a file-backed ClassificationStore rooted at
// the given directory.
func NewClassificationStore(root string) *ClassificationStore {
	return &ClassificationStore{root: root}
}

func (s *ClassificationStore) path(id types.CommentID) string {
	return filepath.Join(s.root, "classifications", safeName(string(id))+".jsonl")
}

// Append records one classification attempt.
func (s *ClassificationStore) Append(_ context.Context, cls *types.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = time.Now().UTC()
	}

	path := s.path(cls.CommentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create classifications dir: %w", err)
	}

	data, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open classifications file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write classification: %w", err)
	}
	return nil
}

// History returns all classification attempts for a comment in order.
func (s *ClassificationStore) History(_ context.Context, id types.CommentID) ([]*types.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open classifications file: %w", err)
	}
	defer f.Close()

	var history []*types.Classification
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var cls types.Classification
		if err := json.Unmarshal(scanner.Bytes(), &cls); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
		history = append(history, &cls)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan classifications file: %w", err)
	}
	return history, nil
}

// Latest returns the most recent classification, or an error if none exists.
func (s *ClassificationStore) Latest(ctx context.Context, id types.CommentID) (*types.Classification, error) {
	history, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no classification for comment: %s", id)
	}
	return history[len(history)-1], nil
}
