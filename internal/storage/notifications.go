package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shindakun/diuportal/internal/models"
)

// CreateNotification stores a notification for a user. ID and CreatedAt are
// filled in when empty
func CreateNotification(db *sql.DB, n *models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification user id is required")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO notifications (id, user_id, kind, message, link, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)
	`, n.ID, n.UserID, string(n.Kind), n.Message, nullString(n.Link), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListUnreadNotifications returns the newest unread notifications for a user
func ListUnreadNotifications(db *sql.DB, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, user_id, kind, message, link, created_at
		FROM notifications
		WHERE user_id = ? AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var kind string
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message, &link, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Kind = models.NotificationKind(kind)
		n.Link = link.String
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkNotificationRead marks one of the user's notifications read.
// Returns ErrNotFound if the notification is not the user's or already read
func MarkNotificationRead(db *sql.DB, userID, id string, at time.Time) error {
	result, err := db.Exec(`
		UPDATE notifications SET read_at = ?
		WHERE id = ? AND user_id = ? AND read_at IS NULL
	`, at.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user read
func MarkAllNotificationsRead(db *sql.DB, userID string, at time.Time) (int64, error) {
	result, err := db.Exec(`
		UPDATE notifications SET read_at = ?
		WHERE user_id = ? AND read_at IS NULL
	`, at.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}
