// internal/state/task.go
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

// TaskStore is the durable task queue, one JSON file per task under tasks/.
// Delivery is at-least-once: a claimed task carries a lease (visibility
// timeout) and becomes re-deliverable when the lease expires, so stage
// handlers must be re-entrant. Ready tasks are delivered oldest-first,
// which gives FIFO per conversation partition.
type TaskStore struct {
	root string
	mu   sync.Mutex
}

// NewTaskStore creates a file-backed TaskStore rooted at the given directory.
func NewTaskStore(root string) *TaskStore {
	return &TaskStore{root: root}
}

func (s *TaskStore) taskPath(id types.TaskID) string {
	return filepath.Join(s.root, "tasks", safeName(string(id))+".json")
}

func (s *TaskStore) save(task *types.Task) error {
	task.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return writeAtomic(s.taskPath(task.ID), data)
}

func (s *TaskStore) loadAll() ([]*types.Task, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "tasks", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob tasks: %w", err)
	}

	tasks := make([]*types.Task, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read task: %w", err)
		}
		var task types.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("unmarshal task %s: %w", path, err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// Enqueue persists a new queued task. ID, status, and timestamps are filled
// in when unset.
func (s *TaskStore) Enqueue(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = types.NewTaskID()
	}
	if task.Status == "" {
		task.Status = types.TaskQueued
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ScheduledAt.IsZero() {
		task.ScheduledAt = now
	}
	return s.save(task)
}

// Claim marks the oldest ready queued task as running with the given lease
// and returns it. Returns nil when no task is ready.
func (s *TaskStore) Claim(_ context.Context, lease time.Duration) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var ready []*types.Task
	for _, task := range tasks {
		if task.Status == types.TaskQueued && !task.ScheduledAt.After(now) {
			ready = append(ready, task)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].ID < ready[j].ID
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})

	task := ready[0]
	task.Status = types.TaskRunning
	task.LeaseUntil = now.Add(lease)
	if err := s.save(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Requeue schedules the task for redelivery after delay. countAttempt is
// false for concurrency conflicts, which are not failures.
func (s *TaskStore) Requeue(_ context.Context, task *types.Task, delay time.Duration, countAttempt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Status = types.TaskQueued
	task.ScheduledAt = time.Now().UTC().Add(delay)
	task.LeaseUntil = time.Time{}
	if countAttempt {
		task.Attempts++
	}
	return s.save(task)
}

// MarkSucceeded moves the task to its terminal succeeded state.
func (s *TaskStore) MarkSucceeded(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Status = types.TaskSucceeded
	task.LeaseUntil = time.Time{}
	return s.save(task)
}

// MarkDead moves the task to its terminal dead state. Dead tasks require
// operator attention and are never silently dropped.
func (s *TaskStore) MarkDead(_ context.Context, task *types.Task, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Status = types.TaskDead
	task.LastError = reason
	task.LeaseUntil = time.Time{}
	return s.save(task)
}

// Cancel marks a queued task cancelled before a worker claims it.
func (s *TaskStore) Cancel(ctx context.Context, id types.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.get(id)
	if err != nil {
		return err
	}
	if task.Status != types.TaskQueued {
		return fmt.Errorf("task %s is %s, only queued tasks can be cancelled", id, task.Status)
	}
	task.Status = types.TaskCancelled
	return s.save(task)
}

func (s *TaskStore) get(id types.TaskID) (*types.Task, error) {
	data, err := os.ReadFile(s.taskPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task not found: %s", id)
		}
		return nil, fmt.Errorf("read task: %w", err)
	}
	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Get returns the task with the given ID.
func (s *TaskStore) Get(_ context.Context, id types.TaskID) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// ListByStatus returns all tasks in the given status, oldest first.
// An empty status returns everything.
func (s *TaskStore) ListByStatus(_ context.Context, status types.TaskStatus) ([]*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	filtered := tasks[:0]
	for _, task := range tasks {
		if status == "" || task.Status == status {
			filtered = append(filtered, task)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

// ExpireLeases requeues running tasks whose visibility timeout passed,
// covering workers that crashed mid-execution. Returns how many were requeued.
func (s *TaskStore) ExpireLeases(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadAll()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	expired := 0
	for _, task := range tasks {
		if task.Status != types.TaskRunning || task.LeaseUntil.After(now) {
			continue
		}
		task.Status = types.TaskQueued
		task.ScheduledAt = now
		task.LeaseUntil = time.Time{}
		if err := s.save(task); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
