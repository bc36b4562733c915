package authform

import (
	"sort"
	"strings"

	"github.com/shindakun/diuportal/internal/models"
)

// Registration validation messages
const (
	MsgNameRequired       = "Please enter your full name"
	MsgRoleRequired       = "Please select your role"
	MsgStudentIDRequired  = "Please enter your Student ID"
	MsgEmployeeIDRequired = "Please enter your Employee ID"
	MsgPasswordMismatch   = "Password confirmation does not match"
)

// RegistrationInput is the registration form as posted by the browser
type RegistrationInput struct {
	Name                 string
	Email                string
	Role                 string
	UserID               string
	StudentID            string
	EmployeeID           string
	Password             string
	PasswordConfirmation string
}

// FieldErrors maps field names to the message shown beside that field
type FieldErrors map[string]string

// Fields returns the failing field names in a stable order
func (fe FieldErrors) Fields() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MirrorIdentifier fans the single visible identifier out into the two
// role-specific fields. Exactly the field matching role is non-empty
func MirrorIdentifier(role models.Role, value string) (studentID, employeeID string) {
	switch role {
	case models.RoleStudent:
		return value, ""
	case models.RoleInstructor:
		return "", value
	}
	return "", ""
}

// IdentifierLabel is the label shown above the identifier input
func IdentifierLabel(role models.Role) string {
	switch role {
	case models.RoleStudent:
		return "Student ID"
	case models.RoleInstructor:
		return "Employee ID"
	}
	return ""
}

// IdentifierPlaceholder is the example identifier shown in the empty input
func IdentifierPlaceholder(role models.Role) string {
	switch role {
	case models.RoleStudent:
		return "221-15-4716"
	case models.RoleInstructor:
		return "EMP001"
	}
	return ""
}

// Normalize trims the text fields and mirrors the identifier the same way the
// page does on submit, so a request from a browser without scripts ends up
// with the same shape
func (in RegistrationInput) Normalize() RegistrationInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.UserID = strings.TrimSpace(in.UserID)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)

	id := in.UserID
	if id == "" {
		// user_id missing means the hidden fields are all we have
		id = in.StudentID + in.EmployeeID
		if in.StudentID != "" && in.EmployeeID != "" {
			id = ""
		}
	}
	in.StudentID, in.EmployeeID = MirrorIdentifier(models.Role(in.Role), id)
	return in
}

// ValidateRegistration checks every field of a normalized registration and
// returns all failures at once. A nil result means the input is acceptable
func ValidateRegistration(in RegistrationInput) FieldErrors {
	errs := FieldErrors{}

	if in.Name == "" {
		errs["name"] = MsgNameRequired
	}
	switch {
	case in.Email == "":
		errs["email"] = MsgEmailRequired
	case !HasInstitutionDomain(in.Email):
		errs["email"] = MsgEmailDomain
	}

	role := models.Role(in.Role)
	switch {
	case !role.Registrable():
		errs["selected_role"] = MsgRoleRequired
	case role == models.RoleStudent && in.StudentID == "":
		errs["student_id"] = MsgStudentIDRequired
	case role == models.RoleInstructor && in.EmployeeID == "":
		errs["employee_id"] = MsgEmployeeIDRequired
	}

	switch msg := PasswordProblem(in.Password); {
	case msg != "":
		errs["password"] = msg
	case in.Password != in.PasswordConfirmation:
		errs["password_confirmation"] = MsgPasswordMismatch
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
