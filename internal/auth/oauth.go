package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// ErrUnknownProvider is returned for a provider name that is not configured
var ErrUnknownProvider = errors.New("oauth provider not configured")

// UserInfo is the identity returned by a provider after code exchange
type UserInfo struct {
	ID    string
	Email string
	Name  string
}

// Provider is one external sign-in service
type Provider struct {
	Name        string
	Title       string
	Config      *oauth2.Config
	UserInfoURL string
	// EmailsURL is queried when the profile has no public email (GitHub)
	EmailsURL string
}

// AuthCodeURL returns the consent page URL carrying state
func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a token
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.Config.Exchange(ctx, code)
}

// FetchUserInfo reads the signed-in user's profile
func (p *Provider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (UserInfo, error) {
	client := p.Config.Client(ctx, token)

	var profile map[string]any
	if err := getJSON(client, p.UserInfoURL, &profile); err != nil {
		return UserInfo{}, fmt.Errorf("failed to fetch %s profile: %w", p.Name, err)
	}

	info := UserInfo{
		ID:    stringField(profile, "sub", "id"),
		Email: stringField(profile, "email"),
		Name:  stringField(profile, "name", "login"),
	}

	if info.Email == "" && p.EmailsURL != "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(client, p.EmailsURL, &emails); err != nil {
			return UserInfo{}, fmt.Errorf("failed to fetch %s emails: %w", p.Name, err)
		}
		for _, e := range emails {
			if e.Verified && (e.Primary || strings.HasSuffix(strings.ToLower(e.Email), "diu.edu.bd")) {
				info.Email = e.Email
				if e.Primary {
					break
				}
			}
		}
	}

	if info.Email == "" {
		return UserInfo{}, fmt.Errorf("%s account has no verified email", p.Name)
	}
	info.Email = strings.ToLower(info.Email)
	return info, nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stringField returns the first present key as a string; JSON numbers
// (GitHub ids) are formatted without a fraction
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// OAuthManager handles OAuth operations
type OAuthManager struct {
	providers      map[string]*Provider
	sessionManager *SessionManager
}

// InitOAuth creates a new OAuth manager with the providers that have
// credentials in cfg. Redirect URIs are derived from the base URL
func InitOAuth(cfg *config.Config, sessionManager *SessionManager) *OAuthManager {
	om := &OAuthManager{
		providers:      make(map[string]*Provider),
		sessionManager: sessionManager,
	}

	if g := cfg.OAuth.Google; g.Enabled() {
		om.Register(&Provider{
			Name:  "google",
			Title: "Google",
			Config: &oauth2.Config{
				ClientID:     g.ClientID,
				ClientSecret: g.ClientSecret,
				RedirectURL:  cfg.URL("/auth/google/callback"),
				Scopes:       g.Scopes,
				Endpoint:     google.Endpoint,
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		})
	}

	if gh := cfg.OAuth.GitHub; gh.Enabled() {
		om.Register(&Provider{
			Name:  "github",
			Title: "GitHub",
			Config: &oauth2.Config{
				ClientID:     gh.ClientID,
				ClientSecret: gh.ClientSecret,
				RedirectURL:  cfg.URL("/auth/github/callback"),
				Scopes:       gh.Scopes,
				Endpoint:     github.Endpoint,
			},
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
		})
	}

	return om
}

// Register adds or replaces a provider
func (om *OAuthManager) Register(p *Provider) {
	om.providers[p.Name] = p
}

// Providers returns the configured provider names, sorted
func (om *OAuthManager) Providers() []string {
	names := make([]string, 0, len(om.providers))
	for name := range om.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the named provider
func (om *OAuthManager) Provider(name string) (*Provider, error) {
	p, ok := om.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Begin stores a fresh state bound to provider and role and returns the
// provider's consent URL
func (om *OAuthManager) Begin(w http.ResponseWriter, r *http.Request, providerName string, role models.Role) (string, error) {
	p, err := om.Provider(providerName)
	if err != nil {
		return "", err
	}

	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("failed to create oauth state: %w", err)
	}

	if err := om.sessionManager.SetOAuthState(w, r, p.Name, state, role); err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// Complete validates the callback and returns the provider identity and the
// role chosen when the flow began
func (om *OAuthManager) Complete(w http.ResponseWriter, r *http.Request, providerName string) (UserInfo, models.Role, error) {
	p, err := om.Provider(providerName)
	if err != nil {
		return UserInfo{}, "", err
	}

	q := r.URL.Query()
	role, err := om.sessionManager.ConsumeOAuthState(w, r, p.Name, q.Get("state"))
	if err != nil {
		return UserInfo{}, "", err
	}

	if e := q.Get("error"); e != "" {
		return UserInfo{}, role, fmt.Errorf("%s denied authorization: %s", p.Name, e)
	}

	token, err := p.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		return UserInfo{}, role, fmt.Errorf("failed to exchange code: %w", err)
	}

	info, err := p.FetchUserInfo(r.Context(), token)
	if err != nil {
		return UserInfo{}, role, err
	}
	return info, role, nil
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
