package models

import (
	"fmt"
	"strings"
)

// Role is the account category chosen at login or registration
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Roles lists every role the portal knows about, in tab order
var Roles = []Role{RoleStudent, RoleInstructor, RoleAdmin}

// ParseRole converts a submitted form value into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Registrable reports whether accounts with this role may self-register.
// Admin accounts are provisioned out of band
func (r Role) Registrable() bool {
	return r == RoleStudent || r == RoleInstructor
}

// Title returns the label shown on role tabs and cards
func (r Role) Title() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleInstructor:
		return "Instructor"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}

func (r Role) String() string {
	return string(r)
}
