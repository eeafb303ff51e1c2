package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// notificationRepository implements domain.NotificationSink by storing notifications
// for in-app delivery with per-recipient read state
type notificationRepository struct {
	c conn
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB) domain.NotificationSink {
	return &notificationRepository{c: db.base()}
}

// Deliver stores the notification unless one with the same (order, kind, scheduled date) exists
func (r *notificationRepository) Deliver(ctx context.Context, n *domain.Notification) (bool, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	res, err := r.c.exec(ctx, `
		INSERT INTO transfer_notifications (id, order_id, recipient_id, kind, message, amount, scheduled_for, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id, kind, scheduled_for) DO NOTHING
	`,
		n.ID,
		n.OrderID,
		n.RecipientID,
		string(n.Kind),
		n.Message,
		n.Amount.String(),
		formatTime(n.ScheduledFor),
		formatTime(n.CreatedAt),
		false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to store notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListUnread retrieves the unread notifications of a recipient, newest first
func (r *notificationRepository) ListUnread(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, order_id, recipient_id, kind, message, amount, scheduled_for, created_at, is_read
		FROM transfer_notifications
		WHERE recipient_id = ? AND is_read = ?
		ORDER BY created_at DESC, id
	`, recipientID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		var kind, amountStr string

		err := rows.Scan(
			&n.ID,
			&n.OrderID,
			&n.RecipientID,
			&kind,
			&n.Message,
			&amountStr,
			scanTime(&n.ScheduledFor),
			scanTime(&n.CreatedAt),
			&n.Read,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.Kind = domain.NotificationKind(kind)
		if n.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}

		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead marks one notification as read
func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	res, err := r.c.exec(ctx, `UPDATE transfer_notifications SET is_read = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotificationNotFound)
	}
	return nil
}

// MarkAllRead marks every unread notification of a recipient as read
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int, error) {
	res, err := r.c.exec(ctx, `
		UPDATE transfer_notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?
	`, true, recipientID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}
