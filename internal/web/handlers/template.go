package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/authform"
	"github.com/shindakun/diuportal/internal/drive"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/version"
	"github.com/shindakun/diuportal/internal/web"
	"go.uber.org/zap"
)

// Page template names, one file each under templates/pages
const (
	pageLogin     = "login"
	pageRegister  = "register"
	pageDashboard = "dashboard"
	pageMaterials = "materials"
	pageError     = "error"
)

var pageNames = []string{pageLogin, pageRegister, pageDashboard, pageMaterials, pageError}

// TemplateData holds common data passed to templates
type TemplateData struct {
	Title   string
	AppName string
	Version string

	CSRFToken string        // CSRF token for HTMX requests
	CSRFField template.HTML // hidden CSRF input for forms

	Session       *models.Session
	User          *models.User
	Notifications []models.Notification

	// Flash is rendered into #serverMessage and shown by the page script
	Flash *models.FlashMessage

	Roles    []models.Role
	Login    models.LoginPageData
	Register models.RegisterPageData

	DriveEnabled bool
	CanUpload    bool
	Files        []drive.File

	Error ErrorPage
}

// ErrorPage is the content of the error template
type ErrorPage struct {
	Status  int
	Heading string
	Message string
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"identifierLabel": func(role string) string {
			return authform.IdentifierLabel(models.Role(role))
		},
		"identifierPlaceholder": func(role string) string {
			return authform.IdentifierPlaceholder(models.Role(role))
		},
		"providerTitle": providerTitle,
		"registrable": func(r models.Role) bool {
			return r.Registrable()
		},
		"bytes": func(n int64) string {
			if n <= 0 {
				return "-"
			}
			return humanize.Bytes(uint64(n))
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		},
		"plural": func(n int, singular, plural string) string {
			if n == 1 {
				return singular
			}
			return plural
		},
	}
}

// parseTemplates builds one template set per page: the base layout, every
// partial, and the page's own file
func parseTemplates() (map[string]*template.Template, error) {
	sets := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(web.Templates,
			"layouts/base.html",
			"partials/*.html",
			"pages/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		sets[name] = tmpl
	}
	return sets, nil
}

// renderTemplate renders a page with the base layout. The page is executed
// into a buffer first so a template error still yields a clean 500
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := h.templates[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	data.AppName = h.cfg.App.Name
	data.Version = version.GetVersion()
	data.Roles = models.Roles
	data.CSRFToken = csrf.Token(r)
	data.CSRFField = csrf.TemplateField(r)

	if session, ok := auth.GetSessionFromContext(r.Context()); ok {
		data.Session = session
		data.User = session.User
		data.Notifications = h.composer.Compose(r).Notifications
	}

	// The page shows one message, the most recent
	if data.Flash == nil {
		if flashes := h.sessionManager.Flashes(w, r); len(flashes) > 0 {
			data.Flash = &flashes[len(flashes)-1]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// render is renderTemplate with the error handling every page shares
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, data TemplateData) {
	if err := h.renderTemplate(w, r, status, name, data); err != nil {
		h.logger.Error("failed to render template",
			zap.String("template", name),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func errorFlash(text string) *models.FlashMessage {
	return &models.FlashMessage{Kind: auth.FlashError, Text: text}
}
