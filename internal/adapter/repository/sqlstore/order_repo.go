package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// orderRepository implements domain.OrderRepository
type orderRepository struct {
	c conn
}

// NewOrderRepository creates a new standing order repository
func NewOrderRepository(db *DB) domain.OrderRepository {
	return &orderRepository{c: db.base()}
}

const orderColumns = `
	id, amount, start_date, end_date, frequency, description, active,
	source_account_id, target_account_id, target_account_number, created_at, updated_at`

// FindDueCandidates retrieves active orders whose window contains asOf
func (r *orderRepository) FindDueCandidates(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error) {
	day := domain.FormatDate(asOf)

	rows, err := r.c.query(ctx, `
		SELECT `+orderColumns+`
		FROM standing_orders
		WHERE active = ? AND start_date <= ? AND end_date >= ?
		ORDER BY created_at, id
	`, true, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query due candidates: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// FindByID retrieves an order by its ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.StandingOrder, error) {
	rows, err := r.c.query(ctx, `SELECT `+orderColumns+` FROM standing_orders WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get standing order by ID: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("standing order %s: %w", id, domain.ErrOrderNotFound)
	}
	return orders[0], nil
}

// ListBySource retrieves all orders debiting the given account, newest first
func (r *orderRepository) ListBySource(ctx context.Context, sourceAccountID uuid.UUID) ([]*domain.StandingOrder, error) {
	rows, err := r.c.query(ctx, `
		SELECT `+orderColumns+`
		FROM standing_orders
		WHERE source_account_id = ?
		ORDER BY created_at DESC, id
	`, sourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standing orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// Save inserts the order or replaces the stored one with the same ID.
// A stored order that is no longer active is left untouched and ErrAlreadyCanceled is returned.
func (r *orderRepository) Save(ctx context.Context, order *domain.StandingOrder) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	var targetID any
	if order.TargetAccountID != nil {
		targetID = *order.TargetAccountID
	}

	res, err := r.c.exec(ctx, `
		INSERT INTO standing_orders (
			id, amount, start_date, end_date, frequency, description, active,
			source_account_id, target_account_id, target_account_number, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			amount = excluded.amount,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			frequency = excluded.frequency,
			description = excluded.description,
			active = excluded.active,
			target_account_id = excluded.target_account_id,
			target_account_number = excluded.target_account_number,
			updated_at = excluded.updated_at
		WHERE standing_orders.active = ?
	`,
		order.ID,
		order.Amount.String(),
		domain.FormatDate(order.StartDate),
		domain.FormatDate(order.EndDate),
		string(order.Frequency),
		order.Description,
		order.Active,
		order.SourceAccountID,
		targetID,
		order.TargetAccountNumber,
		formatTime(order.CreatedAt),
		formatTime(order.UpdatedAt),
		true,
	)
	if err != nil {
		return fmt.Errorf("failed to save standing order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("standing order %s: %w", order.ID, domain.ErrAlreadyCanceled)
	}

	return nil
}

// Deactivate clears the active flag of an active order
func (r *orderRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.c.exec(ctx, `
		UPDATE standing_orders SET active = ?, updated_at = ?
		WHERE id = ? AND active = ?
	`, false, formatTime(time.Now()), id, true)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate standing order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing changed: either missing or already inactive
	var count int
	if err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM standing_orders WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check standing order existence: %w", err)
	}
	if count == 0 {
		return false, fmt.Errorf("standing order %s: %w", id, domain.ErrOrderNotFound)
	}
	return false, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.StandingOrder, error) {
	orders := make([]*domain.StandingOrder, 0)

	for rows.Next() {
		var order domain.StandingOrder
		var amountStr, frequency string
		var targetID uuid.NullUUID

		err := rows.Scan(
			&order.ID,
			&amountStr,
			scanDate(&order.StartDate),
			scanDate(&order.EndDate),
			&frequency,
			&order.Description,
			&order.Active,
			&order.SourceAccountID,
			&targetID,
			&order.TargetAccountNumber,
			scanTime(&order.CreatedAt),
			scanTime(&order.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standing order: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		order.Amount = amount
		// Stored verbatim; an unknown value surfaces as ErrInvalidFrequency at execution time
		order.Frequency = domain.Frequency(frequency)

		if targetID.Valid {
			id := targetID.UUID
			order.TargetAccountID = &id
		}

		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate standing orders: %w", err)
	}

	return orders, nil
}
