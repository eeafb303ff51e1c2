package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind represents the business event behind a ledger entry
type EntryKind string

const (
	EntryKindTransfer EntryKind = "TRANSFER"
)

// EntryDirection tells whether the entry took money out of or into the account
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "DEBIT"
	EntryDirectionCredit EntryDirection = "CREDIT"
)

// LedgerEntry is an immutable audit record of one balance movement on one account
type LedgerEntry struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	OrderID      *uuid.UUID
	Kind         EntryKind
	Direction    EntryDirection
	Amount       decimal.Decimal // ABSOLUTE VALUE (Always Positive)
	BalanceAfter decimal.Decimal // balance of AccountID once this entry is applied
	Description  string
	CreatedAt    time.Time
}

// Validate ensures the entry adheres to domain rules
func (e *LedgerEntry) Validate() error {
	if e.AccountID == uuid.Nil {
		return errors.New("ledger entry must reference an account")
	}

	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("ledger entry amount must be positive (absolute value)")
	}

	if e.Direction != EntryDirectionDebit && e.Direction != EntryDirectionCredit {
		return errors.New("ledger entry direction must be DEBIT or CREDIT")
	}

	if e.Kind == "" {
		return errors.New("ledger entry kind is required")
	}

	return nil
}

// Delta returns the signed balance change of the entry
func (e *LedgerEntry) Delta() decimal.Decimal {
	if e.Direction == EntryDirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// VerifyBalanceChain checks that consecutive entries of one account agree with their deltas:
// BalanceAfter[i] == BalanceAfter[i-1] + Delta[i].
// Entries must belong to the same account and be in append order.
func VerifyBalanceChain(entries []*LedgerEntry) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.AccountID != prev.AccountID {
			return fmt.Errorf("entry %s belongs to account %s, expected %s", cur.ID, cur.AccountID, prev.AccountID)
		}

		expected := prev.BalanceAfter.Add(cur.Delta())
		if !cur.BalanceAfter.Equal(expected) {
			return fmt.Errorf("entry %s records balance %s, expected %s", cur.ID, cur.BalanceAfter, expected)
		}
	}
	return nil
}
