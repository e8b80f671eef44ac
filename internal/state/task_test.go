// internal/state/task_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/commentflow/internal/types"
)

func enqueueTask(t *testing.T, store *TaskStore, kind types.TaskKind, commentID types.CommentID) *types.Task {
	t.Helper()
	task := &types.Task{
		Kind:         kind,
		CommentID:    commentID,
		Conversation: "media:1",
	}
	if err := store.Enqueue(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	return task
}

func TestTaskStore_ClaimEmpty(t *testing.T) {
	store := NewTaskStore(t.TempDir())

	task, err := store.Claim(context.Background(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Errorf("expected nil task from empty queue, got %v", task.ID)
	}
}

func TestTaskStore_EnqueueFillsDefaults(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	task := enqueueTask(t, store, types.TaskClassify, "c-1")

	if task.ID == "" {
		t.Error("expected generated task ID")
	}
	if task.Status != types.TaskQueued {
		t.Errorf("expected queued status, got %s", task.Status)
	}
	if task.CreatedAt.IsZero() || task.ScheduledAt.IsZero() {
		t.Error("expected timestamps to be filled")
	}
}

func TestTaskStore_ClaimOldestFirst(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	first := &types.Task{Kind: types.TaskClassify, CommentID: "c-1", CreatedAt: time.Now().Add(-2 * time.Minute), ScheduledAt: time.Now().Add(-2 * time.Minute)}
	second := &types.Task{Kind: types.TaskClassify, CommentID: "c-2", CreatedAt: time.Now().Add(-1 * time.Minute), ScheduledAt: time.Now().Add(-1 * time.Minute)}
	if err := store.Enqueue(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, first); err != nil {
		t.Fatal(err)
	}

	claimed, err := store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.CommentID != "c-1" {
		t.Fatalf("expected oldest task first, got %+v", claimed)
	}
	if claimed.Status != types.TaskRunning {
		t.Errorf("expected running status, got %s", claimed.Status)
	}
	if claimed.LeaseUntil.IsZero() {
		t.Error("expected lease to be set")
	}
}

func TestTaskStore_ClaimSkipsFutureScheduled(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := &types.Task{Kind: types.TaskClassify, CommentID: "c-1", ScheduledAt: time.Now().Add(time.Hour)}
	if err := store.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}

	claimed, err := store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if claimed != nil {
		t.Errorf("expected no ready task, got %s", claimed.ID)
	}
}

func TestTaskStore_RequeueCountsAttempts(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := enqueueTask(t, store, types.TaskClassify, "c-1")
	claimed, err := store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Requeue(ctx, claimed, 0, true); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
	if got.Status != types.TaskQueued {
		t.Errorf("expected queued, got %s", got.Status)
	}

	// Lock-contention requeue does not count.
	claimed, err = store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Requeue(ctx, claimed, 0, false); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 1 {
		t.Errorf("expected attempts unchanged, got %d", got.Attempts)
	}
}

func TestTaskStore_MarkDead(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := enqueueTask(t, store, types.TaskClassify, "c-1")
	claimed, err := store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDead(ctx, claimed, "exhausted retries"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.TaskDead {
		t.Errorf("expected dead, got %s", got.Status)
	}
	if got.LastError != "exhausted retries" {
		t.Errorf("expected reason recorded, got %q", got.LastError)
	}
}

func TestTaskStore_CancelQueuedOnly(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := enqueueTask(t, store, types.TaskClassify, "c-1")
	if err := store.Cancel(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.TaskCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	// A running task cannot be cancelled.
	running := enqueueTask(t, store, types.TaskClassify, "c-2")
	if _, err := store.Claim(ctx, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := store.Cancel(ctx, running.ID); err == nil {
		t.Error("expected error cancelling a running task")
	}
}

func TestTaskStore_ExpireLeases(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := enqueueTask(t, store, types.TaskClassify, "c-1")
	if _, err := store.Claim(ctx, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	expired, err := store.ExpireLeases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired lease, got %d", expired)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.TaskQueued {
		t.Errorf("expected requeued, got %s", got.Status)
	}
}

func TestTaskStore_ExpireLeavesHealthyLeases(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	enqueueTask(t, store, types.TaskClassify, "c-1")
	if _, err := store.Claim(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}

	expired, err := store.ExpireLeases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Errorf("expected 0 expired leases, got %d", expired)
	}
}

func TestTaskStore_ListByStatus(t *testing.T) {
	store := NewTaskStore(t.TempDir())
	ctx := context.Background()

	enqueueTask(t, store, types.TaskClassify, "c-1")
	enqueueTask(t, store, types.TaskDecide, "c-2")
	claimed, err := store.Claim(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkSucceeded(ctx, claimed); err != nil {
		t.Fatal(err)
	}

	queued, err := store.ListByStatus(ctx, types.TaskQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 {
		t.Errorf("expected 1 queued task, got %d", len(queued))
	}

	all, err := store.ListByStatus(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 tasks total, got %d", len(all))
	}
}
