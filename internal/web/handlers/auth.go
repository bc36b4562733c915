package handlers

import (
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/authform"
	"github.com/shindakun/diuportal/internal/metrics"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/page"
	"github.com/shindakun/diuportal/internal/storage"
	"github.com/shindakun/diuportal/internal/web/middleware"
	"go.uber.org/zap"
)

// User-facing messages of the sign-in flows
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgTooManyAttempts    = "Too many attempts. Please wait a minute and try again."
	MsgOAuthExpired       = "Your sign-in link expired. Please try again."
	MsgSignedOut          = "You have been signed out."
	MsgFixFields          = "Please correct the highlighted fields and try again."
)

// LoginPage renders the sign-in form
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	role, err := models.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		role = models.RoleStudent
	}
	h.renderLogin(w, r, http.StatusOK, models.LoginPageData{Role: role}, nil)
}

func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, data models.LoginPageData, flash *models.FlashMessage) {
	data.Providers = h.oauthManager.Providers()
	h.render(w, r, status, pageLogin, TemplateData{
		Title: "Sign In",
		Login: data,
		Flash: flash,
	})
}

// Login checks the posted credentials. The role tab the user signed in
// from must match the account's role
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.RenderError(w, r, http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	role, err := models.ParseRole(r.PostFormValue("role"))
	if err != nil {
		role = models.RoleStudent
	}
	data := models.LoginPageData{Email: email, Role: role}

	if fe := authform.ValidateLogin(email, password); fe != nil {
		h.loginAttempt(role, metrics.OutcomeInvalid)
		h.renderLogin(w, r, http.StatusUnprocessableEntity, data, errorFlash(fe.Message))
		return
	}

	user, err := auth.Authenticate(h.db, email, password, role)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.loginAttempt(role, metrics.OutcomeBadPassword)
		h.logger.Info("login failed", zap.String("role", string(role)))
		h.renderLogin(w, r, http.StatusUnauthorized, data, errorFlash(MsgInvalidCredentials))
		return
	case errors.Is(err, auth.ErrRoleMismatch):
		h.loginAttempt(role, metrics.OutcomeRoleMismatch)
		h.renderLogin(w, r, http.StatusUnauthorized, data, errorFlash(roleMismatchMessage(user.Role)))
		return
	case err != nil:
		h.logger.Error("failed to authenticate", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	if !h.signIn(w, r, user, role) {
		return
	}
	h.loginAttempt(role, metrics.OutcomeSuccess)
	h.flash(w, r, auth.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.FirstName()))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func roleMismatchMessage(actual models.Role) string {
	return fmt.Sprintf("This account is registered as %s. Select the %s tab to sign in.", actual.Title(), actual.Title())
}

// RegisterPage renders the registration form. An OAuth callback that found
// no account redirects here with email, role and provider prefilled
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	old := map[string]string{"email": strings.TrimSpace(q.Get("email"))}
	if role, err := models.ParseRole(q.Get("role")); err == nil && role.Registrable() {
		old["selected_role"] = string(role)
	}

	data := models.RegisterPageData{Old: old}
	if _, err := h.oauthManager.Provider(q.Get("provider")); err == nil {
		data.OAuthProvider = q.Get("provider")
	}
	h.renderRegister(w, r, http.StatusOK, data, nil)
}

func (h *Handlers) renderRegister(w http.ResponseWriter, r *http.Request, status int, data models.RegisterPageData, flash *models.FlashMessage) {
	h.render(w, r, status, pageRegister, TemplateData{
		Title:    "Create Account",
		Register: data,
		Flash:    flash,
	})
}

// Register creates an account, greets it with a welcome notification and
// signs it in
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.RenderError(w, r, http.StatusBadRequest)
		return
	}

	in := authform.RegistrationInput{
		Name:                 r.PostFormValue("name"),
		Email:                r.PostFormValue("email"),
		Role:                 r.PostFormValue("selected_role"),
		UserID:               r.PostFormValue("user_id"),
		StudentID:            r.PostFormValue("student_id"),
		EmployeeID:           r.PostFormValue("employee_id"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}.Normalize()

	// Passwords are never echoed back into the form
	data := models.RegisterPageData{
		Old: map[string]string{
			"name":          in.Name,
			"email":         in.Email,
			"selected_role": in.Role,
			"user_id":       cmp.Or(in.UserID, in.StudentID+in.EmployeeID),
		},
		OAuthProvider: r.PostFormValue("oauth_provider"),
	}

	if errs := authform.ValidateRegistration(in); errs != nil {
		data.FieldErrors = errs
		h.renderRegister(w, r, http.StatusUnprocessableEntity, data, errorFlash(MsgFixFields))
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         models.Role(in.Role),
		StudentID:    in.StudentID,
		EmployeeID:   in.EmployeeID,
		PasswordHash: hash,
	}

	var dup *storage.DuplicateError
	err = storage.CreateUser(h.db, user)
	if errors.As(err, &dup) {
		field, msg := duplicateField(dup.Column, user.Role)
		data.FieldErrors = map[string]string{field: msg}
		h.renderRegister(w, r, http.StatusConflict, data, errorFlash(msg))
		return
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.Registrations.WithLabelValues(string(user.Role)).Inc()
	}
	h.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	// A missing welcome note never blocks the account
	welcome := fmt.Sprintf("Welcome to %s, %s! Your %s account is ready.", h.cfg.App.Name, user.FirstName(), strings.ToLower(user.Role.Title()))
	if err := h.notifications.Notify(user.ID, models.NotificationWelcome, welcome, "/dashboard"); err != nil {
		h.logger.Warn("failed to create welcome notification",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	if !h.signIn(w, r, user, user.Role) {
		return
	}
	h.flash(w, r, auth.FlashSuccess, "Account created successfully!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// duplicateField maps a violated unique column to the form field and message
func duplicateField(column string, role models.Role) (string, string) {
	switch column {
	case "email":
		return "email", "An account with this email already exists"
	case "student_id", "employee_id":
		return column, fmt.Sprintf("This %s is already registered", authform.IdentifierLabel(role))
	}
	return "email", "An account with these details already exists"
}

// ForgotPassword explains that password resets are not available yet
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.flash(w, r, auth.FlashInfo, page.ForgotPasswordNotice)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// OAuthBegin redirects to the provider's consent page for the role in ?role=
func (h *Handlers) OAuthBegin(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		role = models.RoleStudent
	}
	h.beginOAuth(w, r, chi.URLParam(r, "provider"), role)
}

// GoogleRoleLogin is the /auth/google/{role} entry point of the
// role-specific Google buttons
func (h *Handlers) GoogleRoleLogin(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.NotFound(w, r)
		return
	}
	h.beginOAuth(w, r, "google", role)
}

func (h *Handlers) beginOAuth(w http.ResponseWriter, r *http.Request, provider string, role models.Role) {
	target, err := h.oauthManager.Begin(w, r, provider, role)
	if errors.Is(err, auth.ErrUnknownProvider) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to begin oauth",
			zap.String("provider", provider),
			zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.OAuthRedirects.WithLabelValues(provider).Inc()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// OAuthCallback completes the flow started by OAuthBegin
func (h *Handlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	h.completeOAuth(w, r, chi.URLParam(r, "provider"))
}

// completeOAuth signs in the account with the provider's email, or sends
// the user on to registration with the email and role prefilled
func (h *Handlers) completeOAuth(w http.ResponseWriter, r *http.Request, provider string) {
	info, role, err := h.oauthManager.Complete(w, r, provider)
	switch {
	case errors.Is(err, auth.ErrUnknownProvider):
		h.NotFound(w, r)
		return
	case errors.Is(err, auth.ErrInvalidState):
		h.flash(w, r, auth.FlashError, MsgOAuthExpired)
		http.Redirect(w, r, loginURL(role), http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Warn("oauth callback failed",
			zap.String("provider", provider),
			zap.Error(err))
		h.flash(w, r, auth.FlashError, "We could not sign you in with "+providerTitle(provider)+". Please try again.")
		http.Redirect(w, r, loginURL(role), http.StatusSeeOther)
		return
	}

	user, err := storage.GetUserByEmail(h.db, info.Email)
	if errors.Is(err, storage.ErrNotFound) {
		h.flash(w, r, auth.FlashInfo, "No account uses "+info.Email+" yet. Complete your registration to continue.")
		q := url.Values{"email": {info.Email}, "provider": {provider}}
		if role.Registrable() {
			q.Set("role", string(role))
		}
		http.Redirect(w, r, "/register?"+q.Encode(), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("failed to look up oauth user", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	if user.Role != role {
		h.flash(w, r, auth.FlashError, roleMismatchMessage(user.Role))
		http.Redirect(w, r, loginURL(role), http.StatusSeeOther)
		return
	}

	if !h.signIn(w, r, user, role) {
		return
	}
	h.logger.Info("oauth login",
		zap.String("provider", provider),
		zap.String("user_id", user.ID))
	h.flash(w, r, auth.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.FirstName()))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func providerTitle(provider string) string {
	switch provider {
	case "google":
		return "Google"
	case "github":
		return "GitHub"
	}
	return provider
}

func loginURL(role models.Role) string {
	if !role.Valid() || role == models.RoleStudent {
		return middleware.LoginPath
	}
	return middleware.LoginPath + "?role=" + url.QueryEscape(string(role))
}

// Logout clears the session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.ClearSession(w, r); err != nil {
		h.logger.Error("failed to clear session", zap.Error(err))
	}
	h.flash(w, r, auth.FlashInfo, MsgSignedOut)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// TooManyRequests answers a rate limited login or registration by
// re-rendering its form with status 429
func (h *Handlers) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("rate limit exceeded",
		zap.String("path", r.URL.Path),
		zap.String("client", middleware.ClientIP(r)))

	if r.URL.Path == "/register" {
		h.renderRegister(w, r, http.StatusTooManyRequests, models.RegisterPageData{}, errorFlash(MsgTooManyAttempts))
		return
	}

	role, err := models.ParseRole(r.PostFormValue("role"))
	if err != nil {
		role = models.RoleStudent
	}
	h.loginAttempt(role, metrics.OutcomeRateLimited)
	h.renderLogin(w, r, http.StatusTooManyRequests, models.LoginPageData{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		Role:  role,
	}, errorFlash(MsgTooManyAttempts))
}

// signIn starts a session, rendering the error page on failure
func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request, user *models.User, role models.Role) bool {
	if _, err := h.sessionManager.SaveSession(w, r, user, role); err != nil {
		h.logger.Error("failed to save session",
			zap.String("user_id", user.ID),
			zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *Handlers) flash(w http.ResponseWriter, r *http.Request, kind, text string) {
	if err := h.sessionManager.AddFlash(w, r, kind, text); err != nil {
		h.logger.Warn("failed to add flash", zap.Error(err))
	}
}

func (h *Handlers) loginAttempt(role models.Role, outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttempts.WithLabelValues(string(role), outcome).Inc()
	}
}
