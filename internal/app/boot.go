package app

import (
	"net/http"

	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/notifications"
	"go.uber.org/zap"
)

// ViewData is shared with every rendered view
type ViewData struct {
	Notifications []models.Notification
}

// Composer builds the ViewData for a request
type Composer struct {
	notifications *notifications.Service
	logger        *zap.Logger
}

// Boot applies environment-wide settings and returns the view composer. In
// production every generated URL uses https
func (c *Container) Boot(ns *notifications.Service) *Composer {
	if c.cfg.IsProduction() {
		c.cfg.Server.BaseURL = c.cfg.GetBaseURL()
		c.logger.Info("forcing https urls", zap.String("base_url", c.cfg.Server.BaseURL))
	}
	return &Composer{notifications: ns, logger: c.logger}
}

// Compose returns the unread notifications of the signed-in user, or an
// empty ViewData for anonymous requests
func (vc *Composer) Compose(r *http.Request) ViewData {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		return ViewData{}
	}

	list, err := vc.notifications.Unread(session.UserID)
	if err != nil {
		// A page still renders without its notification list
		vc.logger.Warn("failed to load notifications",
			zap.String("user_id", session.UserID),
			zap.Error(err))
		return ViewData{}
	}
	return ViewData{Notifications: list}
}
