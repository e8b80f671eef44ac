// internal/state/session.go
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

// defaultMaxKeep bounds how many turns a session file retains. Appends
// beyond the bound trim the oldest turns; the log is otherwise append-only.
const defaultMaxKeep = 200

// SessionStore is a JSONL-backed agent session store. Turns are stored
// per-conversation in sessions/<key>.jsonl. Callers serialize concurrent
// appends per key via the conversation lock; the per-key mutex here only
// protects the file from interleaved writes within this process.
type SessionStore struct {
	root    string
	maxKeep int
	mu      sync.Mutex
	locks   map[types.ConversationKey]*sync.Mutex
}

// NewSessionStore creates a file-backed SessionStore rooted at the given directory.
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{
		root:    root,
		maxKeep: defaultMaxKeep,
		locks:   make(map[types.ConversationKey]*sync.Mutex),
	}
}

func (s *SessionStore) getLock(key types.ConversationKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

func (s *SessionStore) turnsPath(key types.ConversationKey) string {
	return filepath.Join(s.root, "sessions", safeName(string(key))+".jsonl")
}

// load reads all turns for a key. Caller must hold the key lock.
func (s *SessionStore) load(key types.ConversationKey) ([]*types.Turn, error) {
	f, err := os.Open(s.turnsPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan session file: %w", err)
	}
	return turns, nil
}

// AppendTurn adds a turn with an auto-incremented sequence number, trimming
// the oldest turns once the file exceeds the retention bound.
func (s *SessionStore) AppendTurn(_ context.Context, key types.ConversationKey, turn *types.Turn) error {
	lock := s.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	turns, err := s.load(key)
	if err != nil {
		return err
	}

	turn.Seq = 1
	if len(turns) > 0 {
		turn.Seq = turns[len(turns)-1].Seq + 1
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}

	path := s.turnsPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	if len(turns)+1 > s.maxKeep {
		// Rewrite keeping the newest turns; sequence numbers are preserved.
		turns = append(turns, turn)
		turns = turns[len(turns)-s.maxKeep:]
		var buf []byte
		for _, t := range turns {
			line, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal turn: %w", err)
			}
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
		return writeAtomic(path, buf)
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}
	return nil
}

// Tail returns at most maxTurns most recent turns in chronological order.
// Truncated history is not an error.
func (s *SessionStore) Tail(_ context.Context, key types.ConversationKey, maxTurns int) ([]*types.Turn, error) {
	lock := s.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	turns, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns, nil
}
