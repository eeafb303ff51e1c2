package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/executor"
	"github.com/simaogato/standing-orders/internal/usecase/recurrence"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Executor moves the funds of one order
type Executor interface {
	Execute(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (*executor.Result, error)
}

// Notifier emits confirmations and reminders
type Notifier interface {
	OnExecuted(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (bool, error)
	OnReminderDue(ctx context.Context, order *domain.StandingOrder, executionTime time.Time) (bool, error)
}

// Recorder receives run and transfer counters
type Recorder interface {
	RunCompleted(executed, skipped int, failures map[string]int, duration time.Duration)
	TransferOutcome(outcome string)
}

// CreateOrderInput represents the input for creating a standing order
type CreateOrderInput struct {
	SourceAccountID     uuid.UUID
	TargetAccountNumber string
	Amount              decimal.Decimal
	StartDate           time.Time
	EndDate             time.Time
	Frequency           domain.Frequency
	Description         string
}

// ScheduleService drives standing order execution and lifecycle
type ScheduleService struct {
	OrderRepo    domain.OrderRepository
	AccountStore domain.AccountStore
	Executor     Executor
	Notifier     Notifier
	Metrics      Recorder
	Logger       *slog.Logger

	// Workers bounds the number of orders executed concurrently in one run
	Workers int
	// Location defines "today" for on-demand runs
	Location *time.Location
	Now      func() time.Time
}

// NewScheduleService creates a new ScheduleService instance
func NewScheduleService(
	orderRepo domain.OrderRepository,
	accountStore domain.AccountStore,
	exec Executor,
	notifier Notifier,
	logger *slog.Logger,
) *ScheduleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleService{
		OrderRepo:    orderRepo,
		AccountStore: accountStore,
		Executor:     exec,
		Notifier:     notifier,
		Logger:       logger,
		Workers:      DefaultWorkers,
		Location:     time.UTC,
		Now:          time.Now,
	}
}

// Today returns the current calendar date in the service location
func (s *ScheduleService) Today() time.Time {
	return domain.DateOf(s.Now().In(s.Location))
}

// ExecuteDueNow runs every order due today
func (s *ScheduleService) ExecuteDueNow(ctx context.Context) (*ExecutionReport, error) {
	return s.RunOnce(ctx, s.Today())
}

// RunOnce executes every order due on the calendar date of asOf.
//
// Logic:
//  1. Select active orders whose window contains asOf (read-only snapshot)
//  2. For each candidate, in a bounded worker pool:
//     - skip when the recurrence is not due on asOf
//     - reload the order and skip when it was canceled or changed since selection
//     - execute; the (order, asOf) claim makes re-runs and concurrent runs execute once
//     - on success, emit the confirmation and the reminder for the next occurrence
//  3. Per-order failures are itemized in the report and never abort the run
//
// Only a failure to select candidates is returned as an error.
func (s *ScheduleService) RunOnce(ctx context.Context, asOf time.Time) (*ExecutionReport, error) {
	started := time.Now()
	day := domain.DateOf(asOf)

	candidates, err := s.OrderRepo.FindDueCandidates(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to select due candidates: %w: %w", domain.ErrPersistence, err)
	}

	report := &ExecutionReport{
		AsOf:       day,
		Candidates: len(candidates),
		Failures:   make([]Failure, 0),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers())

	for _, candidate := range candidates {
		g.Go(func() error {
			executed, failure := s.runOrder(ctx, candidate, day)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case failure != nil:
				report.Failures = append(report.Failures, *failure)
			case executed:
				report.Executed++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].OrderID.String() < report.Failures[j].OrderID.String()
	})
	report.Duration = time.Since(started)

	if s.Metrics != nil {
		counts := make(map[string]int)
		for reason, n := range report.FailureCounts() {
			counts[string(reason)] = n
		}
		s.Metrics.RunCompleted(report.Executed, report.Skipped, counts, report.Duration)
	}

	s.Logger.InfoContext(ctx, "standing order run completed",
		"as_of", domain.FormatDate(day),
		"candidates", report.Candidates,
		"executed", report.Executed,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, nil
}

// runOrder handles one candidate; it returns whether funds moved, or the failure to report
func (s *ScheduleService) runOrder(ctx context.Context, snapshot *domain.StandingOrder, day time.Time) (bool, *Failure) {
	logger := s.Logger.With("order_id", snapshot.ID, "as_of", domain.FormatDate(day))

	if err := ctx.Err(); err != nil {
		return false, s.fail(ctx, logger, snapshot.ID, ReasonInternal, err)
	}

	due, err := recurrence.IsDueOn(snapshot, day)
	if err != nil {
		return false, s.fail(ctx, logger, snapshot.ID, ReasonInvalidFrequency, err)
	}
	if !due {
		return false, nil
	}

	// Re-validate against the store of record, not the selection snapshot
	order, err := s.OrderRepo.FindByID(ctx, snapshot.ID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return false, nil
		}
		return false, s.fail(ctx, logger, snapshot.ID, ReasonPersistenceFailure, err)
	}
	if !order.IsCurrent(day) {
		logger.InfoContext(ctx, "order no longer current, skipping", "outcome", "SKIPPED")
		return false, nil
	}
	if due, err = recurrence.IsDueOn(order, day); err != nil || !due {
		if err != nil {
			return false, s.fail(ctx, logger, order.ID, ReasonInvalidFrequency, err)
		}
		return false, nil
	}

	result, err := s.Executor.Execute(ctx, order, day)
	if err != nil {
		if errors.Is(err, domain.ErrOrderInactive) {
			return false, nil
		}
		return false, s.fail(ctx, logger, order.ID, reasonForError(err), err)
	}

	if s.Metrics != nil {
		s.Metrics.TransferOutcome(string(result.Outcome))
	}

	switch result.Outcome {
	case executor.OutcomeExecuted:
		logger.InfoContext(ctx, "standing order executed",
			"outcome", result.Outcome,
			"amount", order.Amount.String(),
			"source_balance", result.SourceBalance.String(),
		)
		s.notifyExecuted(ctx, logger, order, day)
		return true, nil

	case executor.OutcomeAlreadyExecuted:
		logger.DebugContext(ctx, "standing order already executed", "outcome", result.Outcome)
		return false, nil

	case executor.OutcomeInsufficientFunds:
		logger.WarnContext(ctx, "insufficient funds, order kept for its next due date",
			"outcome", result.Outcome,
			"amount", order.Amount.String(),
			"balance", result.SourceBalance.String(),
		)
		return false, &Failure{
			OrderID: order.ID,
			Reason:  ReasonInsufficientFunds,
			Message: fmt.Sprintf("balance %s is below amount %s", result.SourceBalance, order.Amount),
		}

	default:
		return false, s.fail(ctx, logger, order.ID, reasonForOutcome(result.Outcome),
			fmt.Errorf("execution outcome %s", result.Outcome))
	}
}

func (s *ScheduleService) notifyExecuted(ctx context.Context, logger *slog.Logger, order *domain.StandingOrder, day time.Time) {
	if s.Notifier == nil {
		return
	}

	// Notification failures never undo a committed transfer
	if _, err := s.Notifier.OnExecuted(ctx, order, day); err != nil {
		logger.ErrorContext(ctx, "failed to emit execution confirmation", "error", err)
	}

	next, ok, err := recurrence.NextOccurrence(order, day.AddDate(0, 0, 1))
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute next occurrence", "error", err)
		return
	}
	if !ok {
		return
	}
	if _, err := s.Notifier.OnReminderDue(ctx, order, next); err != nil {
		logger.ErrorContext(ctx, "failed to emit reminder", "error", err, "next", next)
	}
}

func (s *ScheduleService) fail(ctx context.Context, logger *slog.Logger, orderID uuid.UUID, reason FailureReason, err error) *Failure {
	logger.ErrorContext(ctx, "standing order execution failed", "outcome", reason, "error", err)
	return &Failure{OrderID: orderID, Reason: reason, Message: err.Error()}
}

func (s *ScheduleService) workers() int {
	if s.Workers <= 0 {
		return 1
	}
	return s.Workers
}

// Create registers a new active standing order.
// The target number is resolved locally; an unknown number is kept as an external target.
// A reminder is emitted for the first occurrence.
func (s *ScheduleService) Create(ctx context.Context, input CreateOrderInput) (*domain.StandingOrder, error) {
	source, err := s.AccountStore.GetByID(ctx, input.SourceAccountID)
	if err != nil {
		return nil, err
	}

	order := &domain.StandingOrder{
		ID:                  uuid.New(),
		Amount:              input.Amount,
		StartDate:           domain.DateOf(input.StartDate),
		EndDate:             domain.DateOf(input.EndDate),
		Frequency:           input.Frequency,
		Description:         input.Description,
		Active:              true,
		SourceAccountID:     source.ID,
		TargetAccountNumber: input.TargetAccountNumber,
	}

	if input.TargetAccountNumber != "" {
		target, err := s.AccountStore.GetByNumber(ctx, input.TargetAccountNumber)
		switch {
		case err == nil:
			order.TargetAccountID = &target.ID
		case errors.Is(err, domain.ErrAccountNotFound):
			// External beneficiary, credited through the clearing account
		default:
			return nil, err
		}
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.OrderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "standing order created",
		"order_id", order.ID,
		"frequency", order.Frequency,
		"external", order.IsExternal(),
	)

	s.remindFirstOccurrence(ctx, order)
	return order, nil
}

// Get retrieves an order by its ID
func (s *ScheduleService) Get(ctx context.Context, id uuid.UUID) (*domain.StandingOrder, error) {
	return s.OrderRepo.FindByID(ctx, id)
}

// ListActive retrieves the orders that are active and whose window contains asOf
func (s *ScheduleService) ListActive(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error) {
	return s.OrderRepo.FindDueCandidates(ctx, domain.DateOf(asOf))
}

// ListBySource retrieves every order debiting the given account
func (s *ScheduleService) ListBySource(ctx context.Context, accountID uuid.UUID) ([]*domain.StandingOrder, error) {
	return s.OrderRepo.ListBySource(ctx, accountID)
}

// Cancel deactivates an order for all future runs.
// Returns true if an active order was deactivated, false if it was already inactive.
// A missing order returns false with domain.ErrOrderNotFound.
// An execution already in flight for the order is not interrupted.
func (s *ScheduleService) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	changed, err := s.OrderRepo.Deactivate(ctx, id)
	if err != nil {
		return false, err
	}

	if changed {
		s.Logger.InfoContext(ctx, "standing order canceled", "order_id", id)
	} else {
		s.Logger.InfoContext(ctx, "nothing to cancel", "order_id", id)
	}
	return changed, nil
}

// Update applies a partial replacement to an active order and re-validates it.
// Setting Active to false cancels the order; a canceled order cannot be updated,
// including one canceled between the read and the write.
func (s *ScheduleService) Update(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) (*domain.StandingOrder, error) {
	order, err := s.OrderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyCanceled, id)
	}

	update.Apply(order)
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.OrderRepo.Save(ctx, order); err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "standing order updated", "order_id", id, "active", order.Active)

	if order.Active {
		s.remindFirstOccurrence(ctx, order)
	}
	return order, nil
}

// RemindDueTomorrow emits a reminder for every active order due the day after asOf.
// Returns the number of reminders newly delivered.
func (s *ScheduleService) RemindDueTomorrow(ctx context.Context, asOf time.Time) (int, error) {
	tomorrow := domain.DateOf(asOf).AddDate(0, 0, 1)

	candidates, err := s.OrderRepo.FindDueCandidates(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("failed to select orders due tomorrow: %w: %w", domain.ErrPersistence, err)
	}

	delivered := 0
	for _, order := range candidates {
		due, err := recurrence.IsDueOn(order, tomorrow)
		if err != nil {
			s.Logger.ErrorContext(ctx, "cannot compute reminder", "order_id", order.ID, "error", err)
			continue
		}
		if !due || s.Notifier == nil {
			continue
		}

		ok, err := s.Notifier.OnReminderDue(ctx, order, recurrence.At(tomorrow))
		if err != nil {
			s.Logger.ErrorContext(ctx, "failed to emit reminder", "order_id", order.ID, "error", err)
			continue
		}
		if ok {
			delivered++
		}
	}

	s.Logger.InfoContext(ctx, "pre-execution reminders sent",
		"due_on", domain.FormatDate(tomorrow),
		"delivered", delivered,
	)
	return delivered, nil
}

func (s *ScheduleService) remindFirstOccurrence(ctx context.Context, order *domain.StandingOrder) {
	if s.Notifier == nil {
		return
	}

	first, ok, err := recurrence.FirstOccurrence(order, s.Today())
	if err != nil || !ok {
		return
	}
	if _, err := s.Notifier.OnReminderDue(ctx, order, first); err != nil {
		s.Logger.ErrorContext(ctx, "failed to emit first reminder", "order_id", order.ID, "error", err)
	}
}
