package middleware

import (
	"net/http"
	"slices"

	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/models"
)

// LoginPath is where unauthenticated requests are sent
const LoginPath = "/login"

// RequireAuth is a middleware that requires authentication.
// Redirects to /login if no valid session is found
func RequireAuth(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// LoadSession may already have resolved it
			if _, ok := auth.GetSessionFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessionManager.GetSession(r)
			if err != nil || session == nil {
				redirectToLogin(w, r)
				return
			}

			ctx := auth.SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects signed-in users whose session role is not one of
// roles. It must run after RequireAuth
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := auth.GetSessionFromContext(r.Context())
			if !ok {
				redirectToLogin(w, r)
				return
			}
			if !slices.Contains(roles, session.Role) {
				http.Error(w, "You do not have permission to do that.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	// HTMX requests get a client-side redirect
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", LoginPath)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
