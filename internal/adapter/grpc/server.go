package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/scheduler"
)

// DefaultLedgerLimit caps ListLedger when the request sets no limit
const DefaultLedgerLimit = 50

// Scheduler is the part of scheduler.ScheduleService the server exposes
type Scheduler interface {
	ExecuteDueNow(ctx context.Context) (*scheduler.ExecutionReport, error)
	RunOnce(ctx context.Context, asOf time.Time) (*scheduler.ExecutionReport, error)
	Create(ctx context.Context, input scheduler.CreateOrderInput) (*domain.StandingOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.StandingOrder, error)
	Update(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) (*domain.StandingOrder, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	ListBySource(ctx context.Context, accountID uuid.UUID) ([]*domain.StandingOrder, error)
	Today() time.Time
}

// Notifications is the read-state API of the notifier
type Notifications interface {
	ListUnread(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// Server implements the StandingOrderService gRPC server
type Server struct {
	Schedule      Scheduler
	Notifications Notifications
	Ledger        domain.LedgerAppender
}

var _ StandingOrderServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(schedule Scheduler, notifications Notifications, ledger domain.LedgerAppender) *Server {
	return &Server{
		Schedule:      schedule,
		Notifications: notifications,
		Ledger:        ledger,
	}
}

// ExecuteDueNow handles the ExecuteDueNow RPC
func (s *Server) ExecuteDueNow(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	var (
		report *scheduler.ExecutionReport
		err    error
	)

	if asOf := req.GetValue(); asOf != "" {
		day, parseErr := domain.ParseDate(asOf)
		if parseErr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid as_of format, expected YYYY-MM-DD: %v", parseErr)
		}
		report, err = s.Schedule.RunOnce(ctx, day)
	} else {
		report, err = s.Schedule.ExecuteDueNow(ctx)
	}
	if err != nil {
		return nil, mapError(err)
	}

	return reportToStruct(report)
}

// CreateOrder handles the CreateOrder RPC
func (s *Server) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := createInputFromStruct(req)
	if err != nil {
		return nil, err
	}

	order, err := s.Schedule.Create(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	return orderToStruct(order, s.Schedule.Today())
}

// GetOrder handles the GetOrder RPC
func (s *Server) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID("order_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	order, err := s.Schedule.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	return orderToStruct(order, s.Schedule.Today())
}

// UpdateOrder handles the UpdateOrder RPC
func (s *Server) UpdateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, update, err := updateFromStruct(req)
	if err != nil {
		return nil, err
	}

	order, err := s.Schedule.Update(ctx, id, update)
	if err != nil {
		return nil, mapError(err)
	}

	return orderToStruct(order, s.Schedule.Today())
}

// CancelOrder handles the CancelOrder RPC
func (s *Server) CancelOrder(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	id, err := parseID("order_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	canceled, err := s.Schedule.Cancel(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Bool(canceled), nil
}

// ListOrders handles the ListOrders RPC
func (s *Server) ListOrders(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	accountID, err := parseID("source_account_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	orders, err := s.Schedule.ListBySource(ctx, accountID)
	if err != nil {
		return nil, mapError(err)
	}

	return ordersToStruct(orders, s.Schedule.Today())
}

// ListLedger handles the ListLedger RPC
func (s *Server) ListLedger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields{req}
	accountID, err := f.id("account_id")
	if err != nil {
		return nil, err
	}

	limit := f.integer("limit", DefaultLedgerLimit)
	if limit <= 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be positive")
	}

	entries, err := s.Ledger.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, mapError(err)
	}

	return ledgerToStruct(entries)
}

// ListNotifications handles the ListNotifications RPC
func (s *Server) ListNotifications(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	recipientID, err := parseID("recipient_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	notifications, err := s.Notifications.ListUnread(ctx, recipientID)
	if err != nil {
		return nil, mapError(err)
	}

	return notificationsToStruct(notifications)
}

// MarkNotificationRead handles the MarkNotificationRead RPC
func (s *Server) MarkNotificationRead(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	id, err := parseID("notification_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	if err := s.Notifications.MarkRead(ctx, id); err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Bool(true), nil
}

// MarkAllNotificationsRead handles the MarkAllNotificationsRead RPC
func (s *Server) MarkAllNotificationsRead(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	recipientID, err := parseID("recipient_id", req.GetValue())
	if err != nil {
		return nil, err
	}

	updated, err := s.Notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return nil, mapError(err)
	}

	return wrapperspb.Int64(int64(updated)), nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)

	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidFrequency):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)

	case errors.Is(err, domain.ErrAlreadyCanceled),
		errors.Is(err, domain.ErrOrderInactive),
		errors.Is(err, domain.ErrInsufficientFunds):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)

	case errors.Is(err, domain.ErrAlreadyExecuted):
		return status.Errorf(codes.AlreadyExists, "%s", errorMsg)

	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)

	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	}

	// Persistence and unknown failures
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
