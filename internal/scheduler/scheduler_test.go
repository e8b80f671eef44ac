// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/commentflow/internal/state"
	"github.com/user/commentflow/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_ReapsExpiredLeases(t *testing.T) {
	tasks := state.NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := &types.Task{Kind: types.TaskClassify, CommentID: "c-1"}
	if err := tasks.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := tasks.Claim(ctx, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	s := New(tasks, nil, discardLogger())
	s.ReapSchedule = "* * * * * *"
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := tasks.Get(ctx, task.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == types.TaskQueued {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expired lease was never requeued")
}

func TestScheduler_ReportsDeadTasks(t *testing.T) {
	tasks := state.NewTaskStore(t.TempDir())
	ctx := context.Background()

	task := &types.Task{Kind: types.TaskClassify, CommentID: "c-1"}
	if err := tasks.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if err := tasks.MarkDead(ctx, task, "exhausted"); err != nil {
		t.Fatal(err)
	}

	var reported atomic.Int64
	s := New(tasks, func(_ context.Context, dead []*types.Task) {
		reported.Store(int64(len(dead)))
	}, discardLogger())
	s.ReportSchedule = "* * * * * *"
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reported.Load() == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("dead task was never reported")
}

func TestScheduler_InvalidScheduleRejected(t *testing.T) {
	s := New(state.NewTaskStore(t.TempDir()), nil, discardLogger())
	s.ReapSchedule = "not a schedule"
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
