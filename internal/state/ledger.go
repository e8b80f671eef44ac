// internal/state/ledger.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/commentflow/internal/types"
)

// Ledger is the durable idempotency ledger. Admission is a single
// O_CREATE|O_EXCL file creation per event ID, so concurrent calls with the
// same event ID yield exactly one admitted=true, including across restarts.
type Ledger struct {
	root string
}

// NewLedger creates a ledger rooted at the given data directory.
func NewLedger(root string) *Ledger {
	return &Ledger{root: root}
}

func (l *Ledger) recordPath(eventID types.EventID) string {
	return filepath.Join(l.root, "ledger", safeName(string(eventID))+".json")
}

// Admit records the event ID if unseen. When the ID was already admitted,
// the existing record is returned so webhook retries get a consistent response.
func (l *Ledger) Admit(_ context.Context, eventID types.EventID, commentID types.CommentID) (*types.Admission, error) {
	if eventID == "" {
		return nil, &types.ValidationError{Reason: "empty event id"}
	}

	path := l.recordPath(eventID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := l.read(path)
			if readErr != nil {
				// The admission fact is the file's existence; a torn record
				// still blocks duplicates.
				existing = &types.AdmitRecord{EventID: eventID}
			}
			return &types.Admission{Admitted: false, Existing: existing}, nil
		}
		return nil, fmt.Errorf("create ledger record: %w", err)
	}
	defer f.Close()

	record := &types.AdmitRecord{
		EventID:   eventID,
		CommentID: commentID,
		FirstSeen: time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return nil, fmt.Errorf("write ledger record: %w", err)
	}

	return &types.Admission{Admitted: true}, nil
}

func (l *Ledger) read(path string) (*types.AdmitRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger record: %w", err)
	}
	var record types.AdmitRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal ledger record: %w", err)
	}
	return &record, nil
}
