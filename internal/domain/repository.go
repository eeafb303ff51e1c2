package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStore defines the interface for account reads and balance mutations
type AccountStore interface {
	// GetByID retrieves an account by its ID
	// Returns ErrAccountNotFound if no such account exists
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByNumber retrieves an account by its account number
	// Returns ErrAccountNotFound if no such account exists
	GetByNumber(ctx context.Context, number string) (*Account, error)

	// Exists reports whether an account with the given ID exists
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// GetBalance returns the current balance of the account
	GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)

	// ApplyDelta adds delta to the account balance and returns the new balance
	// The change is all-or-nothing
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)

	// Lock takes exclusive row locks on the given accounts for the current unit of work
	// Callers pass IDs in ascending order
	Lock(ctx context.Context, ids ...uuid.UUID) error

	// Create creates a new account
	Create(ctx context.Context, account *Account) error
}

// LedgerAppender defines the interface for the append-only ledger
type LedgerAppender interface {
	// Append stores a new entry and returns its ID
	// Existing entries are never updated or deleted
	Append(ctx context.Context, entry *LedgerEntry) (uuid.UUID, error)

	// ListByAccount retrieves the entries of an account in append order
	// limit <= 0 returns all entries
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*LedgerEntry, error)
}

// OrderRepository defines the interface for standing order persistence operations
type OrderRepository interface {
	// FindDueCandidates retrieves active orders whose window contains asOf
	FindDueCandidates(ctx context.Context, asOf time.Time) ([]*StandingOrder, error)

	// FindByID retrieves an order by its ID
	// Returns ErrOrderNotFound if no such order exists
	FindByID(ctx context.Context, id uuid.UUID) (*StandingOrder, error)

	// ListBySource retrieves all orders debiting the given account, newest first
	ListBySource(ctx context.Context, sourceAccountID uuid.UUID) ([]*StandingOrder, error)

	// Save inserts the order or replaces the stored one with the same ID
	// Returns ErrAlreadyCanceled if the stored order is no longer active
	Save(ctx context.Context, order *StandingOrder) error

	// Deactivate clears the active flag of an active order
	// Returns false when the order was already inactive
	// Returns ErrOrderNotFound if no such order exists
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

// ExecutionLog defines the interface for the (order, date) idempotency record
type ExecutionLog interface {
	// Claim records the execution of an order on a date
	// Returns ErrAlreadyExecuted if the pair is already recorded
	Claim(ctx context.Context, exec *Execution) error

	// Exists reports whether the order has been executed on the given date
	Exists(ctx context.Context, orderID uuid.UUID, runDate time.Time) (bool, error)
}

// NotificationSink defines the interface for notification delivery and read state
type NotificationSink interface {
	// Deliver stores the notification for its recipient
	// Returns false when a notification with the same (order, kind, scheduled date) already exists
	Deliver(ctx context.Context, n *Notification) (bool, error)

	// ListUnread retrieves the unread notifications of a recipient, newest first
	ListUnread(ctx context.Context, recipientID uuid.UUID) ([]*Notification, error)

	// MarkRead marks one notification as read
	MarkRead(ctx context.Context, id uuid.UUID) error

	// MarkAllRead marks every notification of a recipient as read and returns how many changed
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// Stores groups the ports that take part in one unit of work
type Stores struct {
	Accounts   AccountStore
	Ledger     LedgerAppender
	Executions ExecutionLog
}

// Transactor runs fn inside a single unit of work
// If fn returns an error every write made through the Stores is discarded
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
