package middleware

import (
	"errors"
	"net/http"

	"github.com/shindakun/diuportal/internal/auth"
	"go.uber.org/zap"
)

// LoadSession puts the signed-in session, if any, into the request context.
// Anonymous requests pass through unchanged, so every page can tell whether
// the visitor is signed in
func LoadSession(sessionManager *auth.SessionManager, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessionManager.GetSession(r)
			switch {
			case err == nil:
				r = r.WithContext(auth.SetSessionInContext(r.Context(), session))
			case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrSessionExpired):
			default:
				logger.Warn("failed to load session", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}
