package models

import (
	"fmt"
	"time"
)

// Session represents a signed-in browser, stored server side and referenced
// from the session cookie
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"` // Role the user signed in as
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	// User is loaded alongside the session row
	User *User `json:"-"`
}

// SessionState represents the current state of a session
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
)

// Validate checks if the session fields are valid
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !s.Role.Valid() {
		return fmt.Errorf("role %q is not valid", s.Role)
	}
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}
	return nil
}

// State returns the current state of the session
func (s *Session) State() SessionState {
	if !time.Now().Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	return SessionStateActive
}

// IsActive returns true if the session is currently active
func (s *Session) IsActive() bool {
	return s.State() == SessionStateActive
}

// IsExpired returns true if the session has expired
func (s *Session) IsExpired() bool {
	return s.State() == SessionStateExpired
}
