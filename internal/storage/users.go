package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shindakun/diuportal/internal/models"
)

const userColumns = `id, name, email, role, student_id, employee_id, password_hash, created_at`

// CreateUser inserts a new user. A unique violation (email, student_id,
// employee_id) is reported as *DuplicateError
func CreateUser(db *sql.DB, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		user.ID,
		user.Name,
		user.Email,
		string(user.Role),
		nullString(user.StudentID),
		nullString(user.EmployeeID),
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if dup := asDuplicate(err); errors.Is(dup, ErrDuplicate) {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by id
func GetUser(db *sql.DB, id string) (*models.User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email, case-insensitively
func GetUserByEmail(db *sql.DB, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// CountUsers returns the number of registered users with the given role.
// An empty role counts everyone
func CountUsers(db *sql.DB, role models.Role) (int, error) {
	var n int
	var err error
	if role == "" {
		err = db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	} else {
		err = db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	var studentID, employeeID sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&role,
		&studentID,
		&employeeID,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = models.Role(role)
	u.StudentID = studentID.String
	u.EmployeeID = employeeID.String
	return &u, nil
}
