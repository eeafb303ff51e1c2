package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/recurrence"
)

// displayDateLayout is the day/month/year format used in messages
const displayDateLayout = "02/01/2006"

// Recorder receives notification counters
type Recorder interface {
	NotificationEmitted(kind domain.NotificationKind, delivered bool)
}

// NotificationService decides reminder and confirmation content and hands it to the sink
type NotificationService struct {
	Sink      domain.NotificationSink
	Directory *AccountDirectory
	Metrics   Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(
	sink domain.NotificationSink,
	directory *AccountDirectory,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		Sink:      sink,
		Directory: directory,
		Logger:    logger,
		Now:       time.Now,
	}
}

// OnExecuted emits the confirmation of the occurrence executed on runDate.
// Returns false when it was already emitted.
func (s *NotificationService) OnExecuted(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (bool, error) {
	executedAt := recurrence.At(runDate)
	message := fmt.Sprintf("Transfer executed: %s to account %s on %s",
		order.Amount.StringFixed(2),
		counterparty(order),
		executedAt.Format(displayDateLayout),
	)
	return s.emit(ctx, order, domain.NotificationKindConfirmation, executedAt, message)
}

// OnReminderDue emits the reminder for the occurrence scheduled at executionTime.
// Returns false when it was already emitted.
func (s *NotificationService) OnReminderDue(ctx context.Context, order *domain.StandingOrder, executionTime time.Time) (bool, error) {
	scheduledFor := recurrence.At(executionTime)
	message := fmt.Sprintf("Reminder: a transfer of %s to account %s is scheduled for %s",
		order.Amount.StringFixed(2),
		counterparty(order),
		scheduledFor.Format(displayDateLayout),
	)
	return s.emit(ctx, order, domain.NotificationKindReminder, scheduledFor, message)
}

// ListUnread retrieves the unread notifications of a recipient
func (s *NotificationService) ListUnread(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error) {
	return s.Sink.ListUnread(ctx, recipientID)
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.Sink.MarkRead(ctx, id)
}

// MarkAllRead marks every notification of a recipient as read
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return s.Sink.MarkAllRead(ctx, recipientID)
}

func (s *NotificationService) emit(
	ctx context.Context,
	order *domain.StandingOrder,
	kind domain.NotificationKind,
	scheduledFor time.Time,
	message string,
) (bool, error) {
	// The source account owner receives both kinds
	owner, err := s.Directory.Lookup(ctx, order.SourceAccountID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve notification recipient: %w", err)
	}

	n := &domain.Notification{
		ID:           uuid.New(),
		OrderID:      order.ID,
		RecipientID:  owner.OwnerID,
		Kind:         kind,
		Message:      message,
		Amount:       order.Amount,
		ScheduledFor: scheduledFor,
		CreatedAt:    s.Now().UTC(),
	}

	delivered, err := s.Sink.Deliver(ctx, n)
	if err != nil {
		return false, fmt.Errorf("failed to deliver %s notification: %w", kind, err)
	}

	if s.Metrics != nil {
		s.Metrics.NotificationEmitted(kind, delivered)
	}

	s.Logger.DebugContext(ctx, "notification emitted",
		"order_id", order.ID,
		"kind", kind,
		"scheduled_for", scheduledFor,
		"delivered", delivered,
	)
	return delivered, nil
}

func counterparty(order *domain.StandingOrder) string {
	if order.TargetAccountNumber != "" {
		return order.TargetAccountNumber
	}
	if order.TargetAccountID != nil {
		return order.TargetAccountID.String()
	}
	return "unknown"
}
