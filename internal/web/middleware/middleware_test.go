package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/storage"
	webmiddleware "github.com/shindakun/diuportal/internal/web/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// TestCSRFTokenGeneration verifies that CSRF middleware generates distinct tokens
func TestCSRFTokenGeneration(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!!")
	var tokens []string
	handler := webmiddleware.CSRFProtection(secret, false, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, csrf.Token(r))
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	}

	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		t.Fatalf("expected two tokens, got %q", tokens)
	}
	if len(tokens[0]) < 20 {
		t.Errorf("CSRF token too short: got %d bytes, expected at least 20", len(tokens[0]))
	}
	if tokens[0] == tokens[1] {
		t.Error("Expected different tokens for different sessions, got same token")
	}
}

func TestCSRFPlaintextPost(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!!")

	var token string
	handler := webmiddleware.CSRFProtection(secret, false, "csrf_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = csrf.Token(r)
		w.WriteHeader(http.StatusOK)
	}))

	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/login", nil))

	post := func(withToken bool) int {
		form := url.Values{"email": {"a@diu.edu.bd"}}
		if withToken {
			form.Set("csrf_token", token)
		}
		req := httptest.NewRequest(http.MethodPost, "http://localhost:8080/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range getRec.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(false); code != http.StatusForbidden {
		t.Errorf("POST without token: status %d, want 403", code)
	}
	if code := post(true); code != http.StatusOK {
		t.Errorf("POST with token: status %d, want 200", code)
	}
}

func TestCSRFFailureHandler(t *testing.T) {
	t.Run("HTMX request gets HTML fragment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()

		webmiddleware.CSRFFailureHandler(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
		if body := w.Body.String(); !strings.Contains(body, "<div") || !strings.Contains(body, "Security Error") {
			t.Errorf("Expected HTML security error, got: %s", body)
		}
	})

	t.Run("Regular request gets plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		webmiddleware.CSRFFailureHandler(w, httptest.NewRequest(http.MethodPost, "/register", nil))

		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "refresh the page") {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		wantHSTS bool
	}{
		{"https sets HSTS", "https://portal.diu.edu.bd", true},
		{"http omits HSTS", "http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.BaseURL = tt.baseURL

			w := httptest.NewRecorder()
			webmiddleware.SecurityHeaders(cfg)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("X-Frame-Options = %q", got)
			}
			if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("X-Content-Type-Options = %q", got)
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestMaxBytes(t *testing.T) {
	handler := webmiddleware.MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("name=a-very-long-value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := webmiddleware.NewRateLimiter(config.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Hour,
		Burst:             2,
		MaxClients:        10,
	})
	handler := rl.Middleware(nil)(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}

	w := send("10.0.0.1:5001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if w := send("10.0.0.2:5000"); w.Code != http.StatusOK {
		t.Errorf("other client limited: status %d", w.Code)
	}
}

func TestRateLimiterCustomRejection(t *testing.T) {
	rl := webmiddleware.NewRateLimiter(config.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour, Burst: 1})
	var called bool
	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})(okHandler)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))
	}
	if !called {
		t.Error("rejection handler not called")
	}
}

func newSessionManager(t *testing.T) (*auth.SessionManager, *models.User) {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         "Test Student",
		Email:        "student@diu.edu.bd",
		Role:         models.RoleStudent,
		StudentID:    "221-15-4716",
		PasswordHash: "hash",
	}
	if err := storage.CreateUser(db, user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return auth.InitSessions("test-secret-key-32-bytes-long!!!", time.Hour, false, http.SameSiteLaxMode, db), user
}

func signIn(t *testing.T, sm *auth.SessionManager, user *models.User) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := sm.SaveSession(rec, httptest.NewRequest(http.MethodPost, "/login", nil), user, user.Role); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}
	return rec.Result().Cookies()
}

func TestRequireAuth(t *testing.T) {
	sm, user := newSessionManager(t)
	handler := webmiddleware.RequireAuth(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetSessionFromContext(r.Context()); !ok {
			t.Error("session missing from context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous is redirected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
			t.Errorf("got %d to %q", w.Code, w.Header().Get("Location"))
		}
	})

	t.Run("HTMX gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized || w.Header().Get("HX-Redirect") != "/login" {
			t.Errorf("got %d, HX-Redirect %q", w.Code, w.Header().Get("HX-Redirect"))
		}
	})

	t.Run("signed in passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		for _, c := range signIn(t, sm, user) {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestRequireRole(t *testing.T) {
	handler := webmiddleware.RequireRole(models.RoleInstructor, models.RoleAdmin)(okHandler)

	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleStudent, http.StatusForbidden},
		{models.RoleInstructor, http.StatusOK},
		{models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/materials", nil)
			req = req.WithContext(auth.SetSessionInContext(req.Context(), &models.Session{UserID: "u", Role: tt.role}))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLoadSessionAndLogging(t *testing.T) {
	sm, user := newSessionManager(t)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := webmiddleware.LoadSession(sm, logger)(webmiddleware.LoggingMiddleware(logger)(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range signIn(t, sm, user) {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 request logs, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "-" {
		t.Errorf("anonymous user_id = %v", got)
	}
	if got := entries[1].ContextMap()["user_id"]; got != user.ID {
		t.Errorf("signed-in user_id = %v, want %s", got, user.ID)
	}
	if got := entries[1].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v (%T)", got, got)
	}
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var rendered int
	handler := webmiddleware.Recover(zap.New(core), func(w http.ResponseWriter, r *http.Request, status int) {
		rendered = status
		w.WriteHeader(status)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusInternalServerError || rendered != http.StatusInternalServerError {
		t.Errorf("status = %d, rendered = %d", w.Code, rendered)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic not logged")
	}
}

// BenchmarkSecurityHeaders measures the overhead of SecurityHeaders middleware
func BenchmarkSecurityHeaders(b *testing.B) {
	cfg := config.Default()
	cfg.Server.BaseURL = "https://example.com"
	cfg.Server.Security.Headers.ContentSecurityPolicy = "default-src 'self'"

	handler := webmiddleware.SecurityHeaders(cfg)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
