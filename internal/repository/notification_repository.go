package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// NotificationRepository persists durable user-facing notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores one notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, type, title, message, timestamp, read) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		n.ID, n.Type, n.Title, n.Message, n.Timestamp, n.Read); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns notifications, newest first, optionally unread only.
func (r *NotificationRepository) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, type, title, message, timestamp, read FROM notifications`
	args := []interface{}{}
	if unreadOnly {
		query += ` WHERE read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY timestamp DESC`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET read = ? WHERE id = ?`), true, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// DeleteReadOlderThan prunes read notifications before the cutoff (epoch ms).
func (r *NotificationRepository) DeleteReadOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM notifications WHERE read = ? AND timestamp < ?`), true, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return deleted, nil
}
