package page

import (
	"errors"
	"net/url"

	"github.com/shindakun/diuportal/internal/authform"
	"github.com/shindakun/diuportal/internal/models"
)

// Login page element ids and selectors
const (
	LoginFormID        = "loginForm"
	loginRoleInputID   = "roleInput"
	loginEmailID       = "emailInput"
	loginPasswordID    = "passwordInput"
	loginButtonID      = "loginButton"
	googleLoginID      = "googleLogin"
	githubLoginID      = "githubLogin"
	forgotPasswordID   = "forgotPasswordLink"
	registerLinkID     = "registerLink"
	roleTabSelector    = ".role-tab"
	googleRoleSelector = "[data-google-role]"

	focusRing = "ring-2"
	focusTint = "ring-white/30"

	signingInHTML   = `<i class="fas fa-spinner fa-spin mr-2"></i>Signing In...`
	redirectingHTML = `<i class="fas fa-spinner fa-spin mr-2"></i>Redirecting...`

	// ForgotPasswordNotice is shown instead of a reset flow
	ForgotPasswordNotice = "Forgot password functionality will be implemented soon!"
)

// ErrFormMissing is returned when a controller is created on a page
// without its form
var ErrFormMissing = errors.New("form not found on page")

// LoginController drives the sign-in page
type LoginController struct {
	doc      Document
	nav      Navigator
	messages Messenger

	form      Element
	email     Element
	password  Element
	roleInput Element
	button    Element

	role  models.Role
	state FormState
}

// NewLoginController binds to #loginForm. The initial role is taken from
// #roleInput when it holds a valid role, so a re-rendered page keeps the
// user's tab; otherwise it is student
func NewLoginController(doc Document, nav Navigator, messages Messenger) (*LoginController, error) {
	form := doc.ByID(LoginFormID)
	if form == nil {
		return nil, ErrFormMissing
	}

	c := &LoginController{
		doc:       doc,
		nav:       nav,
		messages:  messages,
		form:      form,
		email:     doc.ByID(loginEmailID),
		password:  doc.ByID(loginPasswordID),
		roleInput: doc.ByID(loginRoleInputID),
		button:    doc.ByID(loginButtonID),
		role:      models.RoleStudent,
	}

	if c.roleInput != nil {
		if r, err := models.ParseRole(c.roleInput.Value()); err == nil {
			c.role = r
		}
	}
	return c, nil
}

// Bind attaches the page's event listeners and syncs the tabs with the
// initial role
func (c *LoginController) Bind() {
	for _, tab := range c.doc.QueryAll(roleTabSelector) {
		tab.On("click", func(Event) {
			v, _ := tab.Attr("data-role")
			if r, err := models.ParseRole(v); err == nil {
				c.SelectRole(r)
			}
		})
	}
	c.SelectRole(c.role)

	c.form.On("submit", c.Submit)

	for _, input := range []Element{c.email, c.password} {
		if input == nil {
			continue
		}
		input.On("focus", func(Event) {
			if p := input.Parent(); p != nil {
				p.AddClass(focusRing, focusTint)
			}
		})
		input.On("blur", func(Event) {
			if p := input.Parent(); p != nil {
				p.RemoveClass(focusRing, focusTint)
			}
		})
	}

	for id, provider := range map[string]string{googleLoginID: "google", githubLoginID: "github"} {
		if el := c.doc.ByID(id); el != nil {
			el.On("click", func(ev Event) {
				ev.PreventDefault()
				c.OAuthRedirect(provider)
			})
		}
	}

	for _, btn := range c.doc.QueryAll(googleRoleSelector) {
		btn.On("click", func(ev Event) {
			ev.PreventDefault()
			v, _ := btn.Attr("data-google-role")
			r, err := models.ParseRole(v)
			if err != nil {
				r = c.role
			}
			c.LoginWithGoogle(r)
		})
	}

	if el := c.doc.ByID(forgotPasswordID); el != nil {
		el.On("click", func(ev Event) {
			ev.PreventDefault()
			c.messages.Show(ForgotPasswordNotice, MessageInfo)
		})
	}

	if el := c.doc.ByID(registerLinkID); el != nil {
		el.On("click", func(ev Event) {
			ev.PreventDefault()
			c.nav.Navigate("/register")
		})
	}
}

// Role returns the selected role
func (c *LoginController) Role() models.Role {
	return c.role
}

// State returns the submission state
func (c *LoginController) State() FormState {
	return c.state
}

// SelectRole marks exactly one tab active and mirrors role into #roleInput
func (c *LoginController) SelectRole(role models.Role) {
	c.role = role
	for _, tab := range c.doc.QueryAll(roleTabSelector) {
		if v, _ := tab.Attr("data-role"); v == string(role) {
			tab.AddClass("active")
		} else {
			tab.RemoveClass("active")
		}
	}
	if c.roleInput != nil {
		c.roleInput.SetValue(string(role))
	}
}

// Validate checks the email and password fields, showing the first problem
func (c *LoginController) Validate() bool {
	if fe := authform.ValidateLogin(value(c.email), value(c.password)); fe != nil {
		c.messages.Show(fe.Message, MessageError)
		return false
	}
	return true
}

// Submit handles the form's submit event. The native submission is always
// cancelled; a valid form is then submitted programmatically with exactly
// one role field
func (c *LoginController) Submit(ev Event) {
	ev.PreventDefault()
	if c.state == StateSubmitting {
		return
	}

	c.state = StateValidating
	if !c.Validate() {
		c.state = StateBlocked
		return
	}

	if c.button != nil {
		c.button.SetDisabled(true)
		c.button.SetHTML(signingInHTML)
	}

	for _, el := range c.form.QueryAll(`input[name="role"]`) {
		if !el.Same(c.roleInput) {
			el.Remove()
		}
	}
	if c.roleInput == nil {
		hidden := c.doc.Create("input")
		hidden.SetAttr("type", "hidden")
		hidden.SetAttr("name", "role")
		c.form.AppendChild(hidden)
		c.roleInput = hidden
	}
	c.roleInput.SetValue(string(c.role))

	c.state = StateSubmitting
	c.form.Submit()
}

// OAuthRedirect starts the provider's sign-in for the selected role
func (c *LoginController) OAuthRedirect(provider string) {
	c.nav.Navigate("/auth/" + url.PathEscape(provider) + "?role=" + url.QueryEscape(string(c.role)))
}

// LoginWithGoogle disables every Google button and starts the Google
// sign-in for role
func (c *LoginController) LoginWithGoogle(role models.Role) {
	for _, btn := range c.doc.QueryAll(googleRoleSelector) {
		btn.SetDisabled(true)
		btn.AddClass("opacity-50", "cursor-not-allowed")
		if span := btn.Query("span"); span != nil {
			span.SetHTML(redirectingHTML)
		}
	}
	c.nav.Navigate("/auth/google/" + url.PathEscape(string(role)))
}

func value(el Element) string {
	if el == nil {
		return ""
	}
	return el.Value()
}
