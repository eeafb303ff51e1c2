package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRunTimeout bounds one periodic run
const DefaultRunTimeout = 30 * time.Minute

// Trigger fires the periodic run and the pre-execution reminders on cron schedules.
// Overlapping firings of the same job are skipped; a manual run may still overlap,
// which the execution claim makes safe.
type Trigger struct {
	service *ScheduleService
	cron    *cron.Cron
	logger  *slog.Logger

	// Timeout bounds each firing; defaults to DefaultRunTimeout
	Timeout time.Duration
}

// NewTrigger creates a new Trigger evaluating schedules in loc
func NewTrigger(service *ScheduleService, loc *time.Location, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Trigger{
		service: service,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		Timeout: DefaultRunTimeout,
	}
}

// Schedule registers the run and reminder jobs; an empty reminder spec disables reminders
func (t *Trigger) Schedule(runSpec, reminderSpec string) error {
	if _, err := t.cron.AddFunc(runSpec, t.run); err != nil {
		return fmt.Errorf("invalid run schedule %q: %w", runSpec, err)
	}

	if reminderSpec != "" {
		if _, err := t.cron.AddFunc(reminderSpec, t.remind); err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", reminderSpec, err)
		}
	}

	return nil
}

// Start runs the scheduler in its own goroutine
func (t *Trigger) Start() {
	t.cron.Start()
	for _, entry := range t.cron.Entries() {
		t.logger.Info("periodic job scheduled", "next", entry.Next)
	}
}

// Stop stops new firings and returns a context done when running jobs have finished
func (t *Trigger) Stop() context.Context {
	return t.cron.Stop()
}

func (t *Trigger) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	report, err := t.service.ExecuteDueNow(ctx)
	if err != nil {
		t.logger.Error("periodic run failed", "error", err)
		return
	}

	t.logger.Info("periodic run finished",
		"executed", report.Executed,
		"failed", len(report.Failures),
	)
}

func (t *Trigger) remind() {
	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	if _, err := t.service.RemindDueTomorrow(ctx, t.service.Today()); err != nil {
		t.logger.Error("pre-execution reminders failed", "error", err)
	}
}
