package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvProduction is the App.Env value that turns on HTTPS-only URLs and
// production logging
const EnvProduction = "production"

// Config represents the application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Drive     DriveConfig     `yaml:"drive"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// AppConfig contains deployment-wide settings
type AppConfig struct {
	Name string `yaml:"name" env:"APP_NAME"`
	Env  string `yaml:"env" env:"APP_ENV"` // "production", "local", ...
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int            `yaml:"port" env:"PORT"`
	Host            string         `yaml:"host" env:"SERVER_HOST"`
	BaseURL         string         `yaml:"base_url" env:"BASE_URL"` // Optional: public URL used for OAuth redirects
	ReadTimeout     time.Duration  `yaml:"read_timeout"`
	WriteTimeout    time.Duration  `yaml:"write_timeout"`
	IdleTimeout     time.Duration  `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Security        SecurityConfig `yaml:"security"`
}

// SecurityConfig contains security-related settings
type SecurityConfig struct {
	CSRFEnabled     bool                  `yaml:"csrf_enabled" env:"CSRF_ENABLED"`
	CSRFFieldName   string                `yaml:"csrf_field_name"`
	MaxRequestBytes int64                 `yaml:"max_request_bytes"`
	Headers         SecurityHeadersConfig `yaml:"headers"`
}

// SecurityHeadersConfig contains HTTP security header settings
type SecurityHeadersConfig struct {
	XFrameOptions           string `yaml:"x_frame_options"`
	XContentTypeOptions     string `yaml:"x_content_type_options"`
	ReferrerPolicy          string `yaml:"referrer_policy"`
	ContentSecurityPolicy   string `yaml:"content_security_policy"`
	StrictTransportSecurity string `yaml:"strict_transport_security"`
}

// DatabaseConfig contains storage settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DB_PATH"`
}

// SessionConfig contains cookie session settings
type SessionConfig struct {
	Secret         string        `yaml:"secret" env:"SESSION_SECRET"`
	Lifetime       time.Duration `yaml:"lifetime" env:"SESSION_LIFETIME"`
	CookieSecure   string        `yaml:"cookie_secure"`   // "auto", "true", "false"
	CookieSameSite string        `yaml:"cookie_samesite"` // "strict", "lax", "none"
}

// OAuthConfig contains the external sign-in providers
type OAuthConfig struct {
	Google ProviderConfig `yaml:"google" envPrefix:"GOOGLE_"`
	GitHub ProviderConfig `yaml:"github" envPrefix:"GITHUB_"`
}

// ProviderConfig contains one OAuth client registration
type ProviderConfig struct {
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
}

// Enabled reports whether the provider has credentials
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// DriveConfig contains the Google Drive integration settings. The
// integration is only constructed when RefreshToken is set
type DriveConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_DRIVE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_DRIVE_CLIENT_SECRET"`
	RefreshToken string `yaml:"refresh_token" env:"GOOGLE_REFRESH_TOKEN"`
	FolderID     string `yaml:"folder_id" env:"GOOGLE_DRIVE_FOLDER_ID"`
}

// Configured reports whether a refresh token is present
func (d DriveConfig) Configured() bool {
	return d.RefreshToken != ""
}

// RateLimitConfig contains per-client limits for the login and register forms
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	WindowDuration    time.Duration `yaml:"window_duration"`
	Burst             int           `yaml:"burst"`
	MaxClients        int           `yaml:"max_clients"`
}

// TracingConfig controls OTLP trace export. Tracing stays off while
// Endpoint is empty
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "DIU Portal", Env: "local"},
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Security: SecurityConfig{
				CSRFEnabled:     true,
				CSRFFieldName:   "csrf_token",
				MaxRequestBytes: 10 << 20,
				Headers: SecurityHeadersConfig{
					XFrameOptions:           "DENY",
					XContentTypeOptions:     "nosniff",
					ReferrerPolicy:          "strict-origin-when-cross-origin",
					StrictTransportSecurity: "max-age=31536000; includeSubDomains",
				},
			},
		},
		Database: DatabaseConfig{Path: "./data/portal.db"},
		Session: SessionConfig{
			Lifetime:       7 * 24 * time.Hour,
			CookieSecure:   "auto",
			CookieSameSite: "lax",
		},
		OAuth: OAuthConfig{
			Google: ProviderConfig{Scopes: []string{"openid", "email", "profile"}},
			GitHub: ProviderConfig{Scopes: []string{"read:user", "user:email"}},
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			WindowDuration:    time.Minute,
			Burst:             5,
			MaxClients:        10000,
		},
		Tracing: TracingConfig{Enabled: true},
	}
}

// Load reads configuration from the specified file path on top of the
// defaults, then applies environment overrides. A missing file is not an error
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults plus environment only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Expand environment variables in the config
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if c.Session.Secret == "" || strings.Contains(c.Session.Secret, "${") {
		return fmt.Errorf("session.secret is required (set SESSION_SECRET environment variable)")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters")
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("session.lifetime must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.BaseURL != "" {
		if _, err := url.Parse(c.Server.BaseURL); err != nil {
			return fmt.Errorf("server.base_url is not a valid URL: %w", err)
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.RateLimit.RequestsPerWindow < 1 {
		return fmt.Errorf("rate_limit.requests_per_window must be at least 1")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate_limit.window_duration must be positive")
	}

	return nil
}

// IsProduction reports whether the app runs in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// GetAddr returns the full server address (host:port)
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetBaseURL returns the public base URL without a trailing slash.
// Uses base_url if set, otherwise constructs from host:port. In production
// the scheme is always https
func (c *Config) GetBaseURL() string {
	base := c.Server.BaseURL
	if base == "" {
		base = fmt.Sprintf("http://%s", c.GetAddr())
	}
	base = strings.TrimRight(base, "/")

	if c.IsProduction() {
		if rest, ok := strings.CutPrefix(base, "http://"); ok {
			base = "https://" + rest
		}
	}
	return base
}

// URL returns the absolute URL for path
func (c *Config) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.GetBaseURL() + path
}

// IsHTTPS returns true if the base URL uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(strings.ToLower(c.GetBaseURL()), "https://")
}

// CookieSecure resolves the cookie_secure setting
func (c *Config) CookieSecure() bool {
	switch strings.ToLower(c.Session.CookieSecure) {
	case "true":
		return true
	case "false":
		return false
	default:
		return c.IsHTTPS()
	}
}

// CookieSameSite resolves the cookie_samesite setting
func (c *Config) CookieSameSite() http.SameSite {
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
