package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency represents the recurrence pattern of a standing order
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Valid reports whether f is one of the supported frequencies
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// OrderStatus is derived from the active flag and the date window, never stored
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusActive   OrderStatus = "ACTIVE"
	OrderStatusExpired  OrderStatus = "EXPIRED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// StandingOrder represents a recurring transfer instruction between two accounts
type StandingOrder struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	StartDate   time.Time // calendar date, inclusive
	EndDate     time.Time // calendar date, inclusive
	Frequency   Frequency
	Description string
	Active      bool

	SourceAccountID uuid.UUID
	// TargetAccountID is nil when the target number is not a local account.
	// Such orders credit the external clearing account.
	TargetAccountID     *uuid.UUID
	TargetAccountNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AmountScale is the number of decimal places stored for amounts and balances
const AmountScale = 4

// Validate ensures the standing order adheres to domain rules
func (o *StandingOrder) Validate() error {
	if o.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}

	if !o.Amount.Equal(o.Amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidOrder, AmountScale)
	}

	if o.StartDate.IsZero() || o.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidOrder)
	}

	if DateOf(o.StartDate).After(DateOf(o.EndDate)) {
		return fmt.Errorf("%w: start date must not be after end date", ErrInvalidOrder)
	}

	if !o.Frequency.Valid() {
		return fmt.Errorf("%w: %q is not DAILY, WEEKLY or MONTHLY", ErrInvalidFrequency, o.Frequency)
	}

	if o.SourceAccountID == uuid.Nil {
		return fmt.Errorf("%w: source account is required", ErrInvalidOrder)
	}

	if o.TargetAccountID == nil && o.TargetAccountNumber == "" {
		return fmt.Errorf("%w: target account is required", ErrInvalidOrder)
	}

	if o.TargetAccountID != nil && *o.TargetAccountID == o.SourceAccountID {
		return fmt.Errorf("%w: source and target accounts must differ", ErrInvalidOrder)
	}

	return nil
}

// InWindow reports whether the calendar date of asOf lies in [StartDate, EndDate]
func (o *StandingOrder) InWindow(asOf time.Time) bool {
	day := DateOf(asOf)
	return !day.Before(DateOf(o.StartDate)) && !day.After(DateOf(o.EndDate))
}

// IsCurrent reports whether the order is active and asOf lies in its window.
// Only current orders are execution candidates.
func (o *StandingOrder) IsCurrent(asOf time.Time) bool {
	return o.Active && o.InWindow(asOf)
}

// IsExternal reports whether the target is outside the local account store
func (o *StandingOrder) IsExternal() bool {
	return o.TargetAccountID == nil
}

// Status derives the lifecycle state of the order as of the given date
func (o *StandingOrder) Status(asOf time.Time) OrderStatus {
	switch {
	case !o.Active:
		return OrderStatusCanceled
	case DateOf(asOf).After(DateOf(o.EndDate)):
		return OrderStatusExpired
	case DateOf(asOf).Before(DateOf(o.StartDate)):
		return OrderStatusPending
	default:
		return OrderStatusActive
	}
}

// OrderUpdate carries a partial replacement of a standing order.
// Nil fields are left untouched.
type OrderUpdate struct {
	Amount      *decimal.Decimal
	StartDate   *time.Time
	EndDate     *time.Time
	Frequency   *Frequency
	Description *string
	Active      *bool
}

// Apply copies the non-nil fields onto the order
func (u OrderUpdate) Apply(o *StandingOrder) {
	if u.Amount != nil {
		o.Amount = *u.Amount
	}
	if u.StartDate != nil {
		o.StartDate = DateOf(*u.StartDate)
	}
	if u.EndDate != nil {
		o.EndDate = DateOf(*u.EndDate)
	}
	if u.Frequency != nil {
		o.Frequency = *u.Frequency
	}
	if u.Description != nil {
		o.Description = *u.Description
	}
	if u.Active != nil {
		o.Active = *u.Active
	}
}
