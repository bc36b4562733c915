package auth

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrRoleMismatch is returned when the account exists but has another role
	ErrRoleMismatch = errors.New("account role does not match")
)

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Authenticate looks up the account for email and verifies password. The
// role is the one the user picked on the login page; it must match the
// account
func Authenticate(db *sql.DB, email, password string, role models.Role) (*models.User, error) {
	user, err := storage.GetUserByEmail(db, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Role != role {
		return user, ErrRoleMismatch
	}
	return user, nil
}
