package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a balance-holding account owned by the account store
type Account struct {
	ID            uuid.UUID
	AccountNumber string
	OwnerID       uuid.UUID // recipient of transfer notifications
	Balance       decimal.Decimal
	IsSystem      bool // clearing accounts are system accounts
	CreatedAt     time.Time
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.AccountNumber == "" {
		return errors.New("account number cannot be empty")
	}

	// System accounts absorb external credits and never go through the funds check
	if !a.IsSystem && a.Balance.IsNegative() {
		return errors.New("account balance cannot be negative")
	}

	return nil
}
