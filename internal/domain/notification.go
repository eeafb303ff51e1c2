package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationKind represents the type of transfer notification
type NotificationKind string

const (
	NotificationKindReminder     NotificationKind = "REMINDER"
	NotificationKindConfirmation NotificationKind = "CONFIRMATION"
)

// Notification is a reminder or execution confirmation handed to the notification sink.
// (OrderID, Kind, ScheduledFor) identifies it: the sink stores each at most once.
type Notification struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	RecipientID  uuid.UUID
	Kind         NotificationKind
	Message      string
	Amount       decimal.Decimal
	ScheduledFor time.Time // occurrence being reminded of, or the executed occurrence
	CreatedAt    time.Time
	Read         bool
}
