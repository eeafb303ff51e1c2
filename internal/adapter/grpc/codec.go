package grpc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/scheduler"
)

// fields wraps a request struct with typed, validating getters
type fields struct {
	s *structpb.Struct
}

func (f fields) value(key string) (*structpb.Value, bool) {
	if f.s == nil {
		return nil, false
	}
	v, ok := f.s.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func (f fields) has(key string) bool {
	_, ok := f.value(key)
	return ok
}

func (f fields) str(key string) string {
	v, ok := f.value(key)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func (f fields) id(key string) (uuid.UUID, error) {
	return parseID(key, f.str(key))
}

func (f fields) amount(key string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(f.str(key))
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return amount, nil
}

func (f fields) date(key string) (time.Time, error) {
	d, err := domain.ParseDate(f.str(key))
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s format, expected YYYY-MM-DD: %v", key, err)
	}
	return d, nil
}

func (f fields) integer(key string, fallback int) int {
	v, ok := f.value(key)
	if !ok {
		return fallback
	}
	return int(v.GetNumberValue())
}

func parseID(key, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return id, nil
}

// createInputFromStruct parses a CreateOrder request
func createInputFromStruct(req *structpb.Struct) (scheduler.CreateOrderInput, error) {
	f := fields{req}

	sourceID, err := f.id("source_account_id")
	if err != nil {
		return scheduler.CreateOrderInput{}, err
	}
	amount, err := f.amount("amount")
	if err != nil {
		return scheduler.CreateOrderInput{}, err
	}
	start, err := f.date("start_date")
	if err != nil {
		return scheduler.CreateOrderInput{}, err
	}
	end, err := f.date("end_date")
	if err != nil {
		return scheduler.CreateOrderInput{}, err
	}

	return scheduler.CreateOrderInput{
		SourceAccountID:     sourceID,
		TargetAccountNumber: f.str("target_account_number"),
		Amount:              amount,
		StartDate:           start,
		EndDate:             end,
		Frequency:           domain.Frequency(f.str("frequency")),
		Description:         f.str("description"),
	}, nil
}

// updateFromStruct parses an UpdateOrder request; absent fields are left untouched
func updateFromStruct(req *structpb.Struct) (uuid.UUID, domain.OrderUpdate, error) {
	f := fields{req}
	var update domain.OrderUpdate

	id, err := f.id("order_id")
	if err != nil {
		return uuid.Nil, update, err
	}

	if f.has("amount") {
		amount, err := f.amount("amount")
		if err != nil {
			return uuid.Nil, update, err
		}
		update.Amount = &amount
	}
	if f.has("start_date") {
		start, err := f.date("start_date")
		if err != nil {
			return uuid.Nil, update, err
		}
		update.StartDate = &start
	}
	if f.has("end_date") {
		end, err := f.date("end_date")
		if err != nil {
			return uuid.Nil, update, err
		}
		update.EndDate = &end
	}
	if f.has("frequency") {
		freq := domain.Frequency(f.str("frequency"))
		update.Frequency = &freq
	}
	if f.has("description") {
		desc := f.str("description")
		update.Description = &desc
	}
	if v, ok := f.value("active"); ok {
		active := v.GetBoolValue()
		update.Active = &active
	}

	return id, update, nil
}

func orderToMap(o *domain.StandingOrder, asOf time.Time) map[string]interface{} {
	m := map[string]interface{}{
		"id":                    o.ID.String(),
		"amount":                o.Amount.StringFixed(2),
		"start_date":            domain.FormatDate(o.StartDate),
		"end_date":              domain.FormatDate(o.EndDate),
		"frequency":             string(o.Frequency),
		"description":           o.Description,
		"active":                o.Active,
		"status":                string(o.Status(asOf)),
		"source_account_id":     o.SourceAccountID.String(),
		"target_account_number": o.TargetAccountNumber,
		"external":              o.IsExternal(),
	}
	if o.TargetAccountID != nil {
		m["target_account_id"] = o.TargetAccountID.String()
	}
	if !o.CreatedAt.IsZero() {
		m["created_at"] = o.CreatedAt.UTC().Format(time.RFC3339)
	}
	return m
}

func orderToStruct(o *domain.StandingOrder, asOf time.Time) (*structpb.Struct, error) {
	return newStruct(orderToMap(o, asOf))
}

func ordersToStruct(orders []*domain.StandingOrder, asOf time.Time) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(orders))
	for _, o := range orders {
		list = append(list, orderToMap(o, asOf))
	}
	return newStruct(map[string]interface{}{"orders": list})
}

func reportToStruct(r *scheduler.ExecutionReport) (*structpb.Struct, error) {
	failures := make([]interface{}, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, map[string]interface{}{
			"order_id": f.OrderID.String(),
			"reason":   string(f.Reason),
			"message":  f.Message,
		})
	}

	return newStruct(map[string]interface{}{
		"as_of":       domain.FormatDate(r.AsOf),
		"candidates":  r.Candidates,
		"executed":    r.Executed,
		"skipped":     r.Skipped,
		"failures":    failures,
		"duration_ms": r.Duration.Milliseconds(),
	})
}

func ledgerToStruct(entries []*domain.LedgerEntry) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		m := map[string]interface{}{
			"id":            e.ID.String(),
			"account_id":    e.AccountID.String(),
			"kind":          string(e.Kind),
			"direction":     string(e.Direction),
			"amount":        e.Amount.StringFixed(2),
			"balance_after": e.BalanceAfter.StringFixed(2),
			"description":   e.Description,
			"created_at":    e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.OrderID != nil {
			m["order_id"] = e.OrderID.String()
		}
		list = append(list, m)
	}
	return newStruct(map[string]interface{}{"entries": list})
}

func notificationsToStruct(notifications []*domain.Notification) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(notifications))
	for _, n := range notifications {
		list = append(list, map[string]interface{}{
			"id":            n.ID.String(),
			"order_id":      n.OrderID.String(),
			"kind":          string(n.Kind),
			"message":       n.Message,
			"amount":        n.Amount.StringFixed(2),
			"scheduled_for": n.ScheduledFor.UTC().Format(time.RFC3339),
			"read":          n.Read,
		})
	}
	return newStruct(map[string]interface{}{"notifications": list})
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

// reportFromStruct decodes an ExecuteDueNow response on the client side
func reportFromStruct(s *structpb.Struct) (*scheduler.ExecutionReport, error) {
	f := fields{s}
	asOf, err := domain.ParseDate(f.str("as_of"))
	if err != nil {
		return nil, fmt.Errorf("invalid as_of in report: %w", err)
	}

	report := &scheduler.ExecutionReport{
		AsOf:       asOf,
		Candidates: f.integer("candidates", 0),
		Executed:   f.integer("executed", 0),
		Skipped:    f.integer("skipped", 0),
		Duration:   time.Duration(f.integer("duration_ms", 0)) * time.Millisecond,
		Failures:   make([]scheduler.Failure, 0),
	}

	if v, ok := f.value("failures"); ok {
		for _, item := range v.GetListValue().GetValues() {
			ff := fields{item.GetStructValue()}
			id, err := uuid.Parse(ff.str("order_id"))
			if err != nil {
				return nil, fmt.Errorf("invalid order_id in report: %w", err)
			}
			report.Failures = append(report.Failures, scheduler.Failure{
				OrderID: id,
				Reason:  scheduler.FailureReason(ff.str("reason")),
				Message: ff.str("message"),
			})
		}
	}

	return report, nil
}
