package models

import (
	"fmt"
	"strings"
	"time"
)

// User is a registered portal account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	StudentID    string    `json:"student_id,omitempty"`  // Set only for students
	EmployeeID   string    `json:"employee_id,omitempty"` // Set only for instructors
	PasswordHash string    `json:"-"`                     // Never serialize to JSON
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks that the identifier fields match the role
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("role %q is not valid", u.Role)
	}

	switch u.Role {
	case RoleStudent:
		if u.StudentID == "" || u.EmployeeID != "" {
			return fmt.Errorf("students must have a student id and no employee id")
		}
	case RoleInstructor:
		if u.EmployeeID == "" || u.StudentID != "" {
			return fmt.Errorf("instructors must have an employee id and no student id")
		}
	}
	return nil
}

// Identifier returns the role-specific identifier
func (u *User) Identifier() string {
	if u.Role == RoleInstructor {
		return u.EmployeeID
	}
	return u.StudentID
}

// FirstName returns the first word of Name, for greetings
func (u *User) FirstName() string {
	name := strings.TrimSpace(u.Name)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// CanManageMaterials reports whether the user may upload course materials
func (u *User) CanManageMaterials() bool {
	return u.Role == RoleInstructor || u.Role == RoleAdmin
}
