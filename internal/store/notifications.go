package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/model"
)

const notificationColumns = `id, recipient_id, sender_id, type, title, message, related_item_id, is_read, created_at`

// CreateNotification writes a notification record. It is unread on creation.
func CreateNotification(ctx context.Context, db *sqlx.DB, n model.Notification) (*model.Notification, error) {
	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(
		`INSERT INTO notifications (recipient_id, sender_id, type, title, message, related_item_id)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		n.RecipientID, n.SenderID, n.Type, n.Title, n.Message, n.RelatedItemID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	return GetNotification(ctx, db, id)
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, db *sqlx.DB, id int64) (*model.Notification, error) {
	n := &model.Notification{}
	err := db.GetContext(ctx, n, db.Rebind(
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a recipient's notifications, newest first.
func ListNotifications(ctx context.Context, db *sqlx.DB, recipientID int64) ([]model.Notification, error) {
	var ns []model.Notification
	err := db.SelectContext(ctx, &ns, db.Rebind(
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_id = ? ORDER BY created_at DESC, id DESC`), recipientID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return ns, nil
}

// CountUnreadNotifications returns how many of a recipient's
// notifications are unread.
func CountUnreadNotifications(ctx context.Context, db *sqlx.DB, recipientID int64) (int64, error) {
	var count int64
	err := db.GetContext(ctx, &count, db.Rebind(
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = FALSE`), recipientID)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one notification read. Marking an already
// read notification is not an error.
func MarkNotificationRead(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE notifications SET is_read = TRUE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return requireRow(res, "marking notification read")
}

// MarkAllNotificationsRead marks every unread notification of a
// recipient read and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, db *sqlx.DB, recipientID int64) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = ? AND is_read = FALSE`), recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return n, nil
}

// DeleteNotification removes a notification.
func DeleteNotification(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM notifications WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	return requireRow(res, "deleting notification")
}
