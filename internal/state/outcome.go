// internal/state/outcome.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/user/commentflow/internal/types"
)

// OutcomeStore records terminal transitions, one JSON file per
// (comment, state) created with O_EXCL. Recording the same pair twice is a
// no-op, so duplicate action executions never double-count analytics.
type OutcomeStore struct {
	root string
}

// NewOutcomeStore creates a file-backed OutcomeStore rooted at the given directory.
func NewOutcomeStore(root string) *OutcomeStore {
	return &OutcomeStore{root: root}
}

func (s *OutcomeStore) outcomePath(id types.CommentID, state types.CommentStatus) string {
	name := safeName(string(id)) + "-" + string(state) + ".json"
	return filepath.Join(s.root, "outcomes", name)
}

// Record writes the outcome once. Later calls for the same (comment, state)
// return nil without touching the first record.
func (s *OutcomeStore) Record(_ context.Context, outcome *types.Outcome) error {
	path := s.outcomePath(outcome.CommentID, outcome.State)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create outcomes dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create outcome file: %w", err)
	}
	defer f.Close()

	if outcome.At.IsZero() {
		outcome.At = time.Now().UTC()
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// List returns all recorded outcomes, oldest first.
func (s *OutcomeStore) List(_ context.Context) ([]*types.Outcome, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "outcomes", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob outcomes: %w", err)
	}

	outcomes := make([]*types.Outcome, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read outcome: %w", err)
		}
		var outcome types.Outcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome %s: %w", path, err)
		}
		outcomes = append(outcomes, &outcome)
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].At.Before(outcomes[j].At)
	})
	return outcomes, nil
}
