package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// ledgerRepository implements domain.LedgerAppender
// The table is append-only: no UPDATE or DELETE statement touches it.
type ledgerRepository struct {
	c conn
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerAppender {
	return &ledgerRepository{c: db.base()}
}

// Append stores a new entry and returns its ID
func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) (uuid.UUID, error) {
	if err := entry.Validate(); err != nil {
		return uuid.Nil, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var orderID any
	if entry.OrderID != nil {
		orderID = *entry.OrderID
	}

	_, err := r.c.exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, order_id, kind, direction, amount, balance_after, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.AccountID,
		orderID,
		string(entry.Kind),
		string(entry.Direction),
		entry.Amount.String(),
		entry.BalanceAfter.String(),
		entry.Description,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return entry.ID, nil
}

// ListByAccount retrieves the entries of an account in append order
func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, account_id, order_id, kind, direction, amount, balance_after, description, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY seq
	`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		var entry domain.LedgerEntry
		var orderID uuid.NullUUID
		var kind, direction, amountStr, balanceStr string

		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&orderID,
			&kind,
			&direction,
			&amountStr,
			&balanceStr,
			&entry.Description,
			scanTime(&entry.CreatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.Kind = domain.EntryKind(kind)
		entry.Direction = domain.EntryDirection(direction)
		if orderID.Valid {
			id := orderID.UUID
			entry.OrderID = &id
		}

		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if entry.BalanceAfter, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}
