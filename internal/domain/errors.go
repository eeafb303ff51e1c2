package domain

import "errors"

// Sentinel errors shared by the use cases and the adapters.
// Adapters wrap them with context; callers classify with errors.Is.
var (
	ErrOrderNotFound     = errors.New("standing order not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidOrder      = errors.New("invalid standing order")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrOrderInactive     = errors.New("standing order is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyCanceled   = errors.New("standing order already canceled")
	ErrAlreadyExecuted   = errors.New("standing order already executed for this date")
	ErrPersistence       = errors.New("persistence failure")

	ErrNotificationNotFound = errors.New("notification not found")
)
