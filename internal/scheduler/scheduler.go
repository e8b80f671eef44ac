// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/commentflow/internal/types"
)

// Reporter is called with the current dead tasks on each report tick.
type Reporter func(ctx context.Context, dead []*types.Task)

// Scheduler runs the queue's maintenance jobs on cron schedules: requeueing
// tasks whose worker lease expired, and surfacing dead tasks to the
// operator.
type Scheduler struct {
	tasks    types.TaskQueue
	reporter Reporter
	logger   *slog.Logger
	cron     *cron.Cron

	// ReapSchedule requeues expired leases; ReportSchedule surfaces dead
	// tasks. Both accept standard cron expressions, with optional seconds.
	ReapSchedule   string
	ReportSchedule string
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler over the task queue. reporter may be nil to skip
// dead-task reports.
func New(tasks types.TaskQueue, reporter Reporter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:          tasks,
		reporter:       reporter,
		logger:         logger,
		cron:           cron.New(cron.WithParser(cronParser)),
		ReapSchedule:   "@every 30s",
		ReportSchedule: "@every 15m",
	}
}

// Start registers the maintenance jobs and starts the cron ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.ReapSchedule, func() { s.reapLeases(ctx) }); err != nil {
		return fmt.Errorf("register lease reaper: %w", err)
	}
	if s.reporter != nil {
		if _, err := s.cron.AddFunc(s.ReportSchedule, func() { s.reportDead(ctx) }); err != nil {
			return fmt.Errorf("register dead-task report: %w", err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) reapLeases(ctx context.Context) {
	expired, err := s.tasks.ExpireLeases(ctx)
	if err != nil {
		s.logger.Error("expire leases", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Warn("requeued expired leases", "count", expired)
	}
}

func (s *Scheduler) reportDead(ctx context.Context) {
	dead, err := s.tasks.ListByStatus(ctx, types.TaskDead)
	if err != nil {
		s.logger.Error("list dead tasks", "error", err)
		return
	}
	if len(dead) == 0 {
		return
	}
	s.reporter(ctx, dead)
}
