// Package metrics holds the portal's prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"       // failed form validation
	OutcomeBadPassword  = "bad_password"  // unknown email or wrong password
	OutcomeRoleMismatch = "role_mismatch" // right password, wrong role tab
	OutcomeRateLimited  = "rate_limited"
)

// Metrics is the set of collectors registered on an app-owned registry
type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts  *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	OAuthRedirects *prometheus.CounterVec
	DriveUploads   *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and
// process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diuportal",
			Name:      "login_attempts_total",
			Help:      "Password login attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diuportal",
			Name:      "registrations_total",
			Help:      "Accounts created by role.",
		}, []string{"role"}),
		OAuthRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diuportal",
			Name:      "oauth_redirects_total",
			Help:      "Redirects to an OAuth provider.",
		}, []string{"provider"}),
		DriveUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diuportal",
			Name:      "drive_uploads_total",
			Help:      "Course material uploads by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoginAttempts,
		m.Registrations,
		m.OAuthRedirects,
		m.DriveUploads,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
