package page

import (
	"fmt"

	"github.com/shindakun/diuportal/internal/authform"
	"github.com/shindakun/diuportal/internal/models"
)

// Registration page element ids and selectors
const (
	RegistrationFormID     = "registrationForm"
	roleCardSelector       = ".role-card"
	selectedRoleID         = "selectedRole"
	idFieldID              = "idField"
	idLabelID              = "idLabel"
	userIDInputID          = "userId"
	studentIDInputID       = "student_id"
	employeeIDInputID      = "employee_id"
	passwordInputID        = "password"
	passwordConfirmInputID = "password_confirmation"
	togglePasswordID       = "togglePassword"
	toggleConfirmID        = "togglePasswordConfirmation"
	submitButtonID         = "submitBtn"
	submitTextID           = "submitText"
	submitLoaderID         = "submitLoader"
	roleErrorID            = "roleError"

	creatingAccountText = "Creating Account..."
)

// passwordToggles maps each password input to its visibility button
var passwordToggles = map[string]string{
	passwordInputID:        togglePasswordID,
	passwordConfirmInputID: toggleConfirmID,
}

// RegistrationController drives the account creation page
type RegistrationController struct {
	doc      Document
	messages Messenger

	form         Element
	selectedRole Element
	idField      Element
	idLabel      Element
	userID       Element
	studentID    Element
	employeeID   Element
	submitBtn    Element
	submitText   Element
	submitLoader Element
	roleError    Element

	state FormState
}

// NewRegistrationController binds to #registrationForm
func NewRegistrationController(doc Document, messages Messenger) (*RegistrationController, error) {
	form := doc.ByID(RegistrationFormID)
	if form == nil {
		return nil, ErrFormMissing
	}
	return &RegistrationController{
		doc:          doc,
		messages:     messages,
		form:         form,
		selectedRole: doc.ByID(selectedRoleID),
		idField:      doc.ByID(idFieldID),
		idLabel:      doc.ByID(idLabelID),
		userID:       doc.ByID(userIDInputID),
		studentID:    doc.ByID(studentIDInputID),
		employeeID:   doc.ByID(employeeIDInputID),
		submitBtn:    doc.ByID(submitButtonID),
		submitText:   doc.ByID(submitTextID),
		submitLoader: doc.ByID(submitLoaderID),
		roleError:    doc.ByID(roleErrorID),
	}, nil
}

// Bind attaches the page's event listeners
func (c *RegistrationController) Bind() {
	for _, card := range c.doc.QueryAll(roleCardSelector) {
		card.On("click", func(Event) {
			v, _ := card.Attr("data-role")
			if r, err := models.ParseRole(v); err == nil {
				c.SelectRole(r)
			}
		})
	}

	for inputID, toggleID := range passwordToggles {
		if btn := c.doc.ByID(toggleID); btn != nil {
			btn.On("click", func(ev Event) {
				ev.PreventDefault()
				c.TogglePasswordVisibility(inputID)
			})
		}
	}

	if c.userID != nil {
		c.userID.On("input", func(Event) { c.OnIdentifierInput() })
	}

	c.form.On("submit", c.Submit)
}

// Init re-selects the role card of a pre-populated #selectedRole, so a page
// re-rendered after a failed submit shows the previous choice
func (c *RegistrationController) Init() {
	r, err := models.ParseRole(value(c.selectedRole))
	if err != nil || !r.Registrable() {
		return
	}
	if card := c.doc.Query(fmt.Sprintf(`%s[data-role="%s"]`, roleCardSelector, r)); card != nil {
		card.Click()
	}
}

// State returns the submission state
func (c *RegistrationController) State() FormState {
	return c.state
}

// Role returns the selected role, or "" before one is chosen
func (c *RegistrationController) Role() models.Role {
	r, err := models.ParseRole(value(c.selectedRole))
	if err != nil || !r.Registrable() {
		return ""
	}
	return r
}

// SelectRole marks exactly one card selected, records the role and reveals
// the identifier field labelled for it
func (c *RegistrationController) SelectRole(role models.Role) {
	if !role.Registrable() {
		return
	}

	for _, card := range c.doc.QueryAll(roleCardSelector) {
		if v, _ := card.Attr("data-role"); v == string(role) {
			card.AddClass("selected")
		} else {
			card.RemoveClass("selected")
		}
	}
	if c.selectedRole != nil {
		c.selectedRole.SetValue(string(role))
	}

	if c.idField != nil {
		c.idField.RemoveClass("hidden")
	}
	if c.idLabel != nil {
		c.idLabel.SetText(authform.IdentifierLabel(role))
	}
	if c.userID != nil {
		c.userID.SetAttr("placeholder", authform.IdentifierPlaceholder(role))
		c.userID.SetAttr("required", "required")
	}
	if c.roleError != nil {
		c.roleError.AddClass("hidden")
	}

	// A value typed before switching role moves to the other hidden field
	c.syncIdentifier()
}

// OnIdentifierInput mirrors the visible identifier into the hidden field of
// the selected role
func (c *RegistrationController) OnIdentifierInput() {
	c.syncIdentifier()
}

func (c *RegistrationController) syncIdentifier() {
	role := c.Role()
	if role == "" {
		return
	}
	studentID, employeeID := authform.MirrorIdentifier(role, value(c.userID))
	if c.studentID != nil {
		c.studentID.SetValue(studentID)
	}
	if c.employeeID != nil {
		c.employeeID.SetValue(employeeID)
	}
}

// TogglePasswordVisibility flips one password input between hidden and
// shown text; inputID is "password" or "password_confirmation"
func (c *RegistrationController) TogglePasswordVisibility(inputID string) {
	toggleID, ok := passwordToggles[inputID]
	if !ok {
		return
	}
	input := c.doc.ByID(inputID)
	if input == nil {
		return
	}

	shown := false
	if t, _ := input.Attr("type"); t == "password" {
		input.SetAttr("type", "text")
		shown = true
	} else {
		input.SetAttr("type", "password")
	}

	btn := c.doc.ByID(toggleID)
	if btn == nil {
		return
	}
	if icon := btn.Query("i"); icon != nil {
		if shown {
			icon.RemoveClass("fa-eye")
			icon.AddClass("fa-eye-slash")
		} else {
			icon.RemoveClass("fa-eye-slash")
			icon.AddClass("fa-eye")
		}
	}
}

// Submit handles the form's submit event. Without a role the submission is
// cancelled and the role error shown; otherwise the native submission
// proceeds with the hidden identifier fields in sync
func (c *RegistrationController) Submit(ev Event) {
	if c.state == StateSubmitting {
		ev.PreventDefault()
		return
	}

	c.state = StateValidating
	if c.Role() == "" {
		ev.PreventDefault()
		c.state = StateBlocked
		if c.roleError != nil {
			c.roleError.RemoveClass("hidden")
			c.roleError.ScrollIntoView()
		} else {
			c.messages.Show(authform.MsgRoleRequired, MessageError)
		}
		return
	}

	c.syncIdentifier()

	if c.submitBtn != nil {
		c.submitBtn.SetDisabled(true)
	}
	if c.submitText != nil {
		c.submitText.SetText(creatingAccountText)
	}
	if c.submitLoader != nil {
		c.submitLoader.RemoveClass("hidden")
	}
	c.state = StateSubmitting
}
