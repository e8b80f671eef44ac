// internal/state/lock.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/commentflow/internal/types"
)

// LockManager is the lease-based conversation lock. Each lease is a file
// holding the holder ID and expiry; expired leases are claimable, which is
// the recovery path for crashed workers. Acquire never blocks: contended
// calls return types.ErrLockBusy so the caller can re-queue with backoff.
type LockManager struct {
	root string
	mu   sync.Mutex
}

type lockRecord struct {
	Key       types.ConversationKey `json:"key"`
	Holder    string                `json:"holder"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// NewLockManager creates a lock manager rooted at the given data directory.
func NewLockManager(root string) *LockManager {
	return &LockManager{root: root}
}

func (m *LockManager) lockPath(key types.ConversationKey) string {
	return filepath.Join(m.root, "locks", safeName(string(key))+".json")
}

// Acquire takes the lease for key, or returns types.ErrLockBusy if an
// unexpired lease is held by someone else.
func (m *LockManager) Acquire(_ context.Context, key types.ConversationKey, lease time.Duration) (types.LockHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.lockPath(key)
	existing, err := m.readRecord(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && time.Now().Before(existing.ExpiresAt) {
		return nil, types.ErrLockBusy
	}

	record := &lockRecord{
		Key:       key,
		Holder:    uuid.New().String(),
		ExpiresAt: time.Now().Add(lease),
	}
	if err := m.writeRecord(path, record); err != nil {
		return nil, err
	}

	return &heldLease{manager: m, key: key, holder: record.Holder}, nil
}

func (m *LockManager) readRecord(path string) (*lockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	var record lockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A torn lock file is treated as expired.
		return nil, nil
	}
	return &record, nil
}

func (m *LockManager) writeRecord(path string, record *lockRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}
	return writeAtomic(path, data)
}

// heldLease is a held lock. Renew and Release verify the holder so a lease
// that expired and was re-acquired elsewhere cannot be touched.
type heldLease struct {
	manager *LockManager
	key     types.ConversationKey
	holder  string
}

func (l *heldLease) Renew(d time.Duration) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	path := l.manager.lockPath(l.key)
	record, err := l.manager.readRecord(path)
	if err != nil {
		return err
	}
	if record == nil || record.Holder != l.holder {
		return fmt.Errorf("lease lost for %s", l.key)
	}
	record.ExpiresAt = time.Now().Add(d)
	return l.manager.writeRecord(path, record)
}

func (l *heldLease) Release() error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	path := l.manager.lockPath(l.key)
	record, err := l.manager.readRecord(path)
	if err != nil {
		return err
	}
	if record == nil || record.Holder != l.holder {
		// Already expired and taken over; nothing to release.
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
