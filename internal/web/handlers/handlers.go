package handlers

import (
	"database/sql"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shindakun/diuportal/internal/app"
	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/metrics"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/notifications"
	"github.com/shindakun/diuportal/internal/storage"
	"github.com/shindakun/diuportal/internal/web"
	"github.com/shindakun/diuportal/internal/web/middleware"
	"go.uber.org/zap"
)

// DriveSource hands out the optional Drive integration; *app.Container
// implements it
type DriveSource interface {
	Drive() app.Materials
}

// Deps are the collaborators of the HTTP handlers
type Deps struct {
	Config        *config.Config
	DB            *sql.DB
	Sessions      *auth.SessionManager
	OAuth         *auth.OAuthManager
	Drive         DriveSource
	Composer      *app.Composer
	Notifications *notifications.Service
	Metrics       *metrics.Metrics
	Limiter       *middleware.RateLimiter // nil disables form rate limiting
	Logger        *zap.Logger
}

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	cfg            *config.Config
	db             *sql.DB
	sessionManager *auth.SessionManager
	oauthManager   *auth.OAuthManager
	drive          DriveSource
	composer       *app.Composer
	notifications  *notifications.Service
	metrics        *metrics.Metrics
	limiter        *middleware.RateLimiter
	logger         *zap.Logger

	templates map[string]*template.Template
	static    http.Handler
}

// New creates a new Handlers instance and parses the page templates
func New(d Deps) (*Handlers, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handlers{
		cfg:            d.Config,
		db:             d.DB,
		sessionManager: d.Sessions,
		oauthManager:   d.OAuth,
		drive:          d.Drive,
		composer:       d.Composer,
		notifications:  d.Notifications,
		metrics:        d.Metrics,
		limiter:        d.Limiter,
		logger:         logger,
		templates:      templates,
		static:         http.StripPrefix("/static/", http.FileServerFS(web.Static)),
	}, nil
}

// Routes registers every route on r. Global middleware (request ids,
// logging, recovery, sessions, CSRF) is applied by the caller
func (h *Handlers) Routes(r chi.Router) {
	// Public routes
	r.Get("/", h.Landing)
	r.Get("/login", h.LoginPage)
	r.Get("/register", h.RegisterPage)
	r.Get("/forgot-password", h.ForgotPassword)
	r.Post("/logout", h.Logout)

	// Credential forms are rate limited per client
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware(h.TooManyRequests))
		}
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
	})

	// OAuth. The static google segment outranks {provider}, so Google's
	// callback needs its own route next to the role entry point
	r.Get("/auth/{provider}", h.OAuthBegin)
	r.Get("/auth/{provider}/callback", h.OAuthCallback)
	r.Get("/auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		h.completeOAuth(w, r, "google")
	})
	r.Get("/auth/google/{role}", h.GoogleRoleLogin)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.sessionManager))
		r.Get("/dashboard", h.Dashboard)
		r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		r.Get("/materials", h.Materials)
		r.With(middleware.RequireRole(models.RoleInstructor, models.RoleAdmin)).
			Post("/materials", h.UploadMaterial)
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Method(http.MethodGet, "/static/*", h.static)

	r.NotFound(h.NotFound)
}

// Landing redirects to the dashboard when signed in, otherwise to login
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// Dashboard renders the user dashboard (protected route)
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageDashboard, TemplateData{Title: "Dashboard"})
}

// MarkNotificationRead marks one of the user's notifications read
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.GetSessionFromContext(r.Context())

	err := h.notifications.MarkRead(session.UserID, chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to mark notification read",
			zap.String("user_id", session.UserID),
			zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, back(r, "/dashboard"), http.StatusSeeOther)
}

// MarkAllNotificationsRead clears the user's unread list
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.GetSessionFromContext(r.Context())

	n, err := h.notifications.MarkAllRead(session.UserID)
	if err != nil {
		h.logger.Error("failed to mark notifications read",
			zap.String("user_id", session.UserID),
			zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	h.logger.Debug("notifications marked read",
		zap.String("user_id", session.UserID),
		zap.Int64("count", n))
	http.Redirect(w, r, back(r, "/dashboard"), http.StatusSeeOther)
}

// NotFound renders the 404 error page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.RenderError(w, r, http.StatusNotFound)
}

var errorMessages = map[int]ErrorPage{
	http.StatusNotFound: {
		Heading: "Page not found",
		Message: "The page you are looking for does not exist or has moved.",
	},
	http.StatusForbidden: {
		Heading: "Access denied",
		Message: "Your account does not have permission to view this page.",
	},
	http.StatusInternalServerError: {
		Heading: "Something went wrong",
		Message: "An unexpected error occurred. Please try again in a moment.",
	},
}

// RenderError renders the error page for status. It matches
// middleware.ErrorRenderer so panics render the same page
func (h *Handlers) RenderError(w http.ResponseWriter, r *http.Request, status int) {
	page, ok := errorMessages[status]
	if !ok {
		page = ErrorPage{Heading: http.StatusText(status)}
	}
	page.Status = status

	h.render(w, r, status, pageError, TemplateData{Title: page.Heading, Error: page})
}

// back returns the same-site page the form was posted from, or fallback
func back(r *http.Request, fallback string) string {
	if to := r.FormValue("redirect"); len(to) > 1 && to[0] == '/' && to[1] != '/' && to[1] != '\\' {
		return to
	}
	return fallback
}
