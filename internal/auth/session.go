package auth

import (
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/storage"
)

const (
	sessionName         = "diuportal-session"
	sessionKeySessionID = "session_id"
	sessionKeyOAuth     = "oauth_state"
	sessionKeyOAuthRole = "oauth_role"
	sessionKeyOAuthProv = "oauth_provider"
	sessionKeyOAuthExp  = "oauth_expires"

	oauthStateTTL = 10 * time.Minute
)

var (
	// ErrNoSession is returned when the request carries no signed-in session
	ErrNoSession = errors.New("no session found in cookie")

	// ErrSessionExpired is returned for a session past its expiry
	ErrSessionExpired = errors.New("session has expired")

	// ErrInvalidState is returned when an OAuth callback state does not match
	ErrInvalidState = errors.New("invalid oauth state")
)

// Flash kinds understood by the page message display
const (
	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

func init() {
	// Flashes are stored as typed values so their order survives
	gob.Register(models.FlashMessage{})
}

// SessionManager handles session operations
type SessionManager struct {
	store    *sessions.CookieStore
	db       *sql.DB
	lifetime time.Duration
	now      func() time.Time
}

// InitSessions creates a new session manager with HTTP-only cookies
func InitSessions(secret string, lifetime time.Duration, secure bool, sameSite http.SameSite, db *sql.DB) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	return &SessionManager{
		store:    store,
		db:       db,
		lifetime: lifetime,
		now:      time.Now,
	}
}

func (sm *SessionManager) cookie(r *http.Request) (*sessions.Session, error) {
	s, err := sm.store.Get(r, sessionName)
	if err != nil {
		// A cookie signed with an old secret decodes to an error but still
		// yields a fresh session we can overwrite
		if s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("failed to get cookie session: %w", err)
	}
	return s, nil
}

// SaveSession starts a signed-in session for user acting as role
func (sm *SessionManager) SaveSession(w http.ResponseWriter, r *http.Request, user *models.User, role models.Role) (*models.Session, error) {
	now := sm.now().UTC()
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Role:      role,
		ExpiresAt: now.Add(sm.lifetime),
		CreatedAt: now,
		User:      user,
	}

	cookieSession, err := sm.cookie(r)
	if err != nil {
		return nil, err
	}

	// Replace any previous session so an old id can't be reused
	if previous, ok := cookieSession.Values[sessionKeySessionID].(string); ok && previous != "" {
		if err := storage.DeleteSession(sm.db, previous); err != nil {
			return nil, err
		}
	}

	if err := storage.SaveSession(sm.db, session); err != nil {
		return nil, err
	}

	cookieSession.Values[sessionKeySessionID] = session.ID
	if err := cookieSession.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save cookie session: %w", err)
	}

	return session, nil
}

// GetSession retrieves session data from cookie and database
func (sm *SessionManager) GetSession(r *http.Request) (*models.Session, error) {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return nil, err
	}

	id, ok := cookieSession.Values[sessionKeySessionID].(string)
	if !ok || id == "" {
		return nil, ErrNoSession
	}

	session, err := storage.GetSession(sm.db, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if !sm.now().Before(session.ExpiresAt) {
		// Clean up expired session
		if err := storage.DeleteSession(sm.db, session.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	return session, nil
}

// ClearSession removes session from cookie and database (logout)
func (sm *SessionManager) ClearSession(w http.ResponseWriter, r *http.Request) error {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		// If we can't get the session, it might already be cleared
		return nil
	}

	if id, ok := cookieSession.Values[sessionKeySessionID].(string); ok && id != "" {
		if err := storage.DeleteSession(sm.db, id); err != nil {
			return err
		}
	}
	delete(cookieSession.Values, sessionKeySessionID)

	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear cookie session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next rendered page
func (sm *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, text string) error {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return err
	}
	cookieSession.AddFlash(models.FlashMessage{Kind: kind, Text: text})
	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes pops every queued message, oldest first. Only the most recent one
// is shown by the page, so callers usually take the last element
func (sm *SessionManager) Flashes(w http.ResponseWriter, r *http.Request) []models.FlashMessage {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return nil
	}

	var out []models.FlashMessage
	for _, v := range cookieSession.Flashes() {
		if fm, ok := v.(models.FlashMessage); ok {
			out = append(out, fm)
		}
	}
	if len(out) > 0 {
		// Flashes were removed from the session values, persist that
		_ = cookieSession.Save(r, w)
	}
	return out
}

// SetOAuthState remembers the state and role of an OAuth flow in progress
func (sm *SessionManager) SetOAuthState(w http.ResponseWriter, r *http.Request, provider, state string, role models.Role) error {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return err
	}
	cookieSession.Values[sessionKeyOAuth] = state
	cookieSession.Values[sessionKeyOAuthProv] = provider
	cookieSession.Values[sessionKeyOAuthRole] = string(role)
	cookieSession.Values[sessionKeyOAuthExp] = sm.now().Add(oauthStateTTL).Unix()
	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState checks a callback state and returns the role chosen when
// the flow began. The stored state is removed whether or not it matches, so
// each state is usable once
func (sm *SessionManager) ConsumeOAuthState(w http.ResponseWriter, r *http.Request, provider, state string) (models.Role, error) {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return "", err
	}

	stored, _ := cookieSession.Values[sessionKeyOAuth].(string)
	storedProvider, _ := cookieSession.Values[sessionKeyOAuthProv].(string)
	role, _ := cookieSession.Values[sessionKeyOAuthRole].(string)
	expires, _ := cookieSession.Values[sessionKeyOAuthExp].(int64)

	delete(cookieSession.Values, sessionKeyOAuth)
	delete(cookieSession.Values, sessionKeyOAuthProv)
	delete(cookieSession.Values, sessionKeyOAuthRole)
	delete(cookieSession.Values, sessionKeyOAuthExp)
	if err := cookieSession.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to clear oauth state: %w", err)
	}

	if stored == "" || state == "" || stored != state || storedProvider != provider {
		return "", ErrInvalidState
	}
	if sm.now().Unix() > expires {
		return "", ErrInvalidState
	}

	parsed, err := models.ParseRole(role)
	if err != nil {
		return models.RoleStudent, nil
	}
	return parsed, nil
}

type contextKey struct{}

// GetSessionFromContext retrieves session from request context
func GetSessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(contextKey{}).(*models.Session)
	return session, ok && session != nil
}

// SetSessionInContext stores session in request context
func SetSessionInContext(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}
