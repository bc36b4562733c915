package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shindakun/diuportal/internal/models"
)

// SaveSession inserts a session row
func SaveSession(db *sql.DB, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO sessions (id, user_id, role, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		string(session.Role),
		session.ExpiresAt.UTC(),
		session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session to database: %w", err)
	}
	return nil
}

// GetSession retrieves a session together with its user
func GetSession(db *sql.DB, id string) (*models.Session, error) {
	var s models.Session
	var role string

	err := db.QueryRow(`
		SELECT id, user_id, role, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&s.ID, &s.UserID, &role, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session from database: %w", err)
	}
	s.Role = models.Role(role)

	user, err := GetUser(db, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	s.User = user

	return &s, nil
}

// DeleteSession removes a session row. Deleting a missing row is not an error
func DeleteSession(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session from database: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes every session that expired before now
func PurgeExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
