package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/standing-orders/internal/domain"
)

// executionRepository implements domain.ExecutionLog
type executionRepository struct {
	c conn
}

// NewExecutionRepository creates a new execution log repository
func NewExecutionRepository(db *DB) domain.ExecutionLog {
	return &executionRepository{c: db.base()}
}

// Claim inserts the (order, date) key; a concurrent or earlier claim wins
func (r *executionRepository) Claim(ctx context.Context, exec *domain.Execution) error {
	res, err := r.c.exec(ctx, `
		INSERT INTO standing_order_executions (order_id, run_date, entry_id, executed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (order_id, run_date) DO NOTHING
	`,
		exec.OrderID,
		domain.FormatDate(exec.RunDate),
		exec.EntryID,
		formatTime(exec.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to claim execution: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("order %s on %s: %w", exec.OrderID, domain.FormatDate(exec.RunDate), domain.ErrAlreadyExecuted)
	}

	return nil
}

// Exists reports whether the order has been executed on the given date
func (r *executionRepository) Exists(ctx context.Context, orderID uuid.UUID, runDate time.Time) (bool, error) {
	var count int
	err := r.c.queryRow(ctx, `
		SELECT COUNT(*) FROM standing_order_executions WHERE order_id = ? AND run_date = ?
	`, orderID, domain.FormatDate(runDate)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check execution: %w", err)
	}
	return count > 0, nil
}
