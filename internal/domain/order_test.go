package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func validOrder(t *testing.T) StandingOrder {
	target := uuid.New()
	return StandingOrder{
		ID:                  uuid.New(),
		Amount:              decimal.NewFromInt(100),
		StartDate:           mustDate(t, "2024-01-15"),
		EndDate:             mustDate(t, "2024-12-15"),
		Frequency:           FrequencyMonthly,
		Description:         "Rent",
		Active:              true,
		SourceAccountID:     uuid.New(),
		TargetAccountID:     &target,
		TargetAccountNumber: "FR7630001007941234567890185",
	}
}

func TestStandingOrder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *StandingOrder)
		wantErr error
		errMsg  string
	}{
		{
			name:   "Valid order should pass",
			mutate: func(o *StandingOrder) {},
		},
		{
			name:    "Zero amount should fail",
			mutate:  func(o *StandingOrder) { o.Amount = decimal.Zero },
			wantErr: ErrInvalidOrder,
			errMsg:  "amount must be positive",
		},
		{
			name:    "Negative amount should fail",
			mutate:  func(o *StandingOrder) { o.Amount = decimal.NewFromInt(-5) },
			wantErr: ErrInvalidOrder,
			errMsg:  "amount must be positive",
		},
		{
			name:    "Amount beyond four decimals should fail",
			mutate:  func(o *StandingOrder) { o.Amount = decimal.RequireFromString("0.00001") },
			wantErr: ErrInvalidOrder,
			errMsg:  "more than 4 decimal places",
		},
		{
			name:   "Trailing zeros beyond four decimals should pass",
			mutate: func(o *StandingOrder) { o.Amount = decimal.RequireFromString("12.500000") },
		},
		{
			name:   "Single-day window should pass",
			mutate: func(o *StandingOrder) { o.EndDate = o.StartDate },
		},
		{
			name:    "Start after end should fail",
			mutate:  func(o *StandingOrder) { o.StartDate = mustDate(t, "2025-01-01") },
			wantErr: ErrInvalidOrder,
			errMsg:  "start date must not be after end date",
		},
		{
			name:    "Missing end date should fail",
			mutate:  func(o *StandingOrder) { o.EndDate = time.Time{} },
			wantErr: ErrInvalidOrder,
			errMsg:  "start and end dates are required",
		},
		{
			name:    "Unknown frequency should fail",
			mutate:  func(o *StandingOrder) { o.Frequency = "YEARLY" },
			wantErr: ErrInvalidFrequency,
		},
		{
			name:    "Missing source should fail",
			mutate:  func(o *StandingOrder) { o.SourceAccountID = uuid.Nil },
			wantErr: ErrInvalidOrder,
			errMsg:  "source account is required",
		},
		{
			name: "Missing target should fail",
			mutate: func(o *StandingOrder) {
				o.TargetAccountID = nil
				o.TargetAccountNumber = ""
			},
			wantErr: ErrInvalidOrder,
			errMsg:  "target account is required",
		},
		{
			name:   "External target number only should pass",
			mutate: func(o *StandingOrder) { o.TargetAccountID = nil },
		},
		{
			name: "Same source and target should fail",
			mutate: func(o *StandingOrder) {
				id := o.SourceAccountID
				o.TargetAccountID = &id
			},
			wantErr: ErrInvalidOrder,
			errMsg:  "source and target accounts must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder(t)
			tt.mutate(&order)

			err := order.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestStandingOrder_IsCurrent(t *testing.T) {
	order := validOrder(t)

	assert.False(t, order.IsCurrent(mustDate(t, "2024-01-14")))
	assert.True(t, order.IsCurrent(mustDate(t, "2024-01-15")))
	assert.True(t, order.IsCurrent(mustDate(t, "2024-06-30")))
	assert.True(t, order.IsCurrent(mustDate(t, "2024-12-15")))
	assert.False(t, order.IsCurrent(mustDate(t, "2024-12-16")))

	// Time of day does not move the calendar date
	assert.True(t, order.IsCurrent(time.Date(2024, 12, 15, 23, 59, 0, 0, time.UTC)))

	order.Active = false
	assert.False(t, order.IsCurrent(mustDate(t, "2024-06-30")))
}

func TestStandingOrder_Status(t *testing.T) {
	order := validOrder(t)

	assert.Equal(t, OrderStatusPending, order.Status(mustDate(t, "2024-01-01")))
	assert.Equal(t, OrderStatusActive, order.Status(mustDate(t, "2024-03-15")))
	assert.Equal(t, OrderStatusExpired, order.Status(mustDate(t, "2025-01-01")))

	order.Active = false
	assert.Equal(t, OrderStatusCanceled, order.Status(mustDate(t, "2024-03-15")))
}

func TestOrderUpdate_Apply(t *testing.T) {
	order := validOrder(t)
	original := order

	amount := decimal.NewFromInt(250)
	freq := FrequencyWeekly
	active := false
	end := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

	OrderUpdate{
		Amount:    &amount,
		Frequency: &freq,
		EndDate:   &end,
		Active:    &active,
	}.Apply(&order)

	assert.True(t, order.Amount.Equal(amount))
	assert.Equal(t, FrequencyWeekly, order.Frequency)
	assert.Equal(t, mustDate(t, "2024-06-30"), order.EndDate)
	assert.False(t, order.Active)

	// Untouched fields
	assert.Equal(t, original.StartDate, order.StartDate)
	assert.Equal(t, original.Description, order.Description)
	assert.Equal(t, original.SourceAccountID, order.SourceAccountID)
}

func TestFrequency_Valid(t *testing.T) {
	assert.True(t, FrequencyDaily.Valid())
	assert.True(t, FrequencyWeekly.Valid())
	assert.True(t, FrequencyMonthly.Valid())
	assert.False(t, Frequency("").Valid())
	assert.False(t, Frequency("daily").Valid())
}

func TestDateOf_KeepsCivilDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2024, 3, 15, 23, 30, 0, 0, loc)

	assert.Equal(t, "2024-03-15", FormatDate(late))
	assert.Equal(t, time.UTC, DateOf(late).Location())
}
