package middleware

import (
	"net/http"

	"github.com/shindakun/diuportal/internal/config"
)

// SecurityHeaders creates middleware that adds HTTP security headers to all responses
func SecurityHeaders(cfg *config.Config) func(http.Handler) http.Handler {
	headers := cfg.Server.Security.Headers
	hsts := cfg.IsHTTPS() && headers.StrictTransportSecurity != ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			setIf(h, "X-Frame-Options", headers.XFrameOptions)
			setIf(h, "X-Content-Type-Options", headers.XContentTypeOptions)
			setIf(h, "Referrer-Policy", headers.ReferrerPolicy)
			setIf(h, "Content-Security-Policy", headers.ContentSecurityPolicy)

			// Only when the public URL is https
			if hsts {
				h.Set("Strict-Transport-Security", headers.StrictTransportSecurity)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
