// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/commentflow/internal/types"
)

// Handler executes one task kind. Returning types.ErrLockBusy requeues the
// task without consuming an attempt; a transient error consumes an attempt
// and backs off; anything else kills the task.
type Handler func(ctx context.Context, task *types.Task) error

// DeadHook is invoked after a task is marked dead, with the reason.
type DeadHook func(ctx context.Context, task *types.Task, reason string)

type registration struct {
	handler Handler
	policy  *RetryPolicy
}

// Orchestrator pulls tasks from the durable queue and dispatches them to
// registered handlers, bounded by a global concurrency semaphore. Ordering
// within a conversation comes from the queue's oldest-first delivery plus
// the conversation lock, not from the orchestrator.
type Orchestrator struct {
	tasks     types.TaskQueue
	handlers  map[types.TaskKind]registration
	semaphore *semaphore.Weighted
	logger    *slog.Logger

	// BusyDelay is how long a lock-contended task waits before redelivery.
	BusyDelay time.Duration
	// PollInterval is the idle sleep between empty claims.
	PollInterval time.Duration
	// Lease is the visibility timeout given to claimed tasks.
	Lease time.Duration

	onDead DeadHook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Orchestrator allowing up to maxConcurrent handlers to run
// simultaneously.
func New(tasks types.TaskQueue, maxConcurrent int64, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tasks:        tasks,
		handlers:     make(map[types.TaskKind]registration),
		semaphore:    semaphore.NewWeighted(maxConcurrent),
		logger:       logger,
		BusyDelay:    2 * time.Second,
		PollInterval: 500 * time.Millisecond,
		Lease:        2 * time.Minute,
	}
}

// Register binds a handler and retry policy to a task kind. Must be called
// before Start.
func (o *Orchestrator) Register(kind types.TaskKind, handler Handler, policy *RetryPolicy) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	o.handlers[kind] = registration{handler: handler, policy: policy}
}

// OnDead sets the hook invoked when a task exhausts its retries.
func (o *Orchestrator) OnDead(hook DeadHook) {
	o.onDead = hook
}

// Start launches the dispatch loop. It returns immediately; call Stop to
// shut down.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.wg.Add(1)
	go o.dispatch()
}

// Stop cancels the dispatch loop and waits for in-flight handlers.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

func (o *Orchestrator) dispatch() {
	defer o.wg.Done()
	for {
		if o.ctx.Err() != nil {
			return
		}

		task, err := o.tasks.Claim(o.ctx, o.Lease)
		if err != nil {
			o.logger.Error("claim task", "error", err)
			o.sleep(o.PollInterval)
			continue
		}
		if task == nil {
			o.sleep(o.PollInterval)
			continue
		}

		if err := o.semaphore.Acquire(o.ctx, 1); err != nil {
			// Shutting down; the lease reaper redelivers the claim.
			return
		}
		o.wg.Add(1)
		go func(task *types.Task) {
			defer o.wg.Done()
			defer o.semaphore.Release(1)
			o.run(task)
		}(task)
	}
}

// run executes one claimed task and settles its fate in the queue.
func (o *Orchestrator) run(task *types.Task) {
	reg, ok := o.handlers[task.Kind]
	if !ok {
		o.kill(task, "no handler registered for kind "+string(task.Kind))
		return
	}

	err := reg.handler(o.ctx, task)
	switch {
	case err == nil:
		if mErr := o.tasks.MarkSucceeded(o.ctx, task); mErr != nil {
			o.logger.Error("mark task succeeded", "task_id", task.ID, "error", mErr)
		}

	case errors.Is(err, types.ErrLockBusy):
		// Contention is not failure: redeliver without burning an attempt.
		if rErr := o.tasks.Requeue(o.ctx, task, o.BusyDelay, false); rErr != nil {
			o.logger.Error("requeue busy task", "task_id", task.ID, "error", rErr)
		}

	case reg.policy.ShouldRetry(err, task.Attempts+1):
		delay := reg.policy.NextDelay(task.Attempts + 1)
		task.LastError = err.Error()
		o.logger.Warn("task failed, retrying",
			"task_id", task.ID, "kind", task.Kind, "attempt", task.Attempts+1,
			"delay", delay, "error", err)
		if rErr := o.tasks.Requeue(o.ctx, task, delay, true); rErr != nil {
			o.logger.Error("requeue task", "task_id", task.ID, "error", rErr)
		}

	default:
		o.kill(task, err.Error())
	}
}

func (o *Orchestrator) kill(task *types.Task, reason string) {
	o.logger.Error("task dead",
		"task_id", task.ID, "kind", task.Kind, "comment_id", task.CommentID,
		"attempts", task.Attempts, "reason", reason)
	if err := o.tasks.MarkDead(o.ctx, task, reason); err != nil {
		o.logger.Error("mark task dead", "task_id", task.ID, "error", err)
		return
	}
	if o.onDead != nil {
		o.onDead(o.ctx, task, reason)
	}
}

func (o *Orchestrator) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-o.ctx.Done():
	}
}
