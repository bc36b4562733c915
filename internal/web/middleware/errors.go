package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorRenderer writes an error page with the given status
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int)

// Recover recovers from panics in later handlers, logs the stack and renders
// the 500 page
func Recover(logger *zap.Logger, render ErrorRenderer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))

				if render == nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				render(w, r, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
