// Package authform holds the field rules shared by the browser page
// controllers and the HTTP handlers, so both sides reject the same input
package authform

import (
	"strings"
	"unicode/utf8"
)

const (
	// InstitutionDomain must appear in every account email
	InstitutionDomain = "@diu.edu.bd"

	// MinPasswordLength applies to login and registration passwords
	MinPasswordLength = 6
)

// Login validation messages
const (
	MsgEmailRequired    = "Please enter your email"
	MsgEmailDomain      = "Please use your @diu.edu.bd email address"
	MsgPasswordRequired = "Please enter your password"
	MsgPasswordShort    = "Password must be at least 6 characters long"
)

// FieldError names the form field that failed and the message to show
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateLogin checks the login fields and returns the first failing rule.
// Order: email presence, email domain, password presence, password length
func ValidateLogin(email, password string) *FieldError {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if email == "" {
		return &FieldError{Field: "email", Message: MsgEmailRequired}
	}
	if !HasInstitutionDomain(email) {
		return &FieldError{Field: "email", Message: MsgEmailDomain}
	}
	if msg := PasswordProblem(password); msg != "" {
		return &FieldError{Field: "password", Message: msg}
	}
	return nil
}

// PasswordProblem returns the message for a password that fails the presence
// or length rule, or "" when it passes. Surrounding whitespace is ignored and
// length is counted in characters
func PasswordProblem(password string) string {
	password = strings.TrimSpace(password)
	switch {
	case password == "":
		return MsgPasswordRequired
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return MsgPasswordShort
	}
	return ""
}

// HasInstitutionDomain reports whether email contains the institutional
// domain exactly as written, lowercase
func HasInstitutionDomain(email string) bool {
	return strings.Contains(email, InstitutionDomain)
}
