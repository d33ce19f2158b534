// Package api exposes the admin authentication endpoints over HTTP and
// orchestrates the stores in the auth package.
package api

import (
	_ "embed"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/gatehouse/auth"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	credential *auth.AdminCredential
	sessions   *auth.SessionStore
	csrf       *auth.CSRFTokenStore
	limiter    *auth.RateLimiter
	audit      *auth.AuditLog

	production     bool
	failureDelay   time.Duration
	trustedProxies []netip.Prefix
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithProductionMode forces Secure cookies even when the request itself
// does not look TLS-terminated.
func WithProductionMode(on bool) Option {
	return func(a *API) { a.production = on }
}

// WithFailureDelay overrides the artificial pause after a failed login.
// Tests set it to zero.
func WithFailureDelay(d time.Duration) Option {
	return func(a *API) { a.failureDelay = d }
}

// WithTrustedProxies parses CIDR ranges (bare IPs count as a single-host
// range) whose forwarding headers may be trusted for client IP
// extraction. Without this option headers are never consulted.
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes, err := parseTrustedProxies(cidrs)
	if err != nil {
		return nil, err
	}
	return func(a *API) { a.trustedProxies = prefixes }, nil
}

// New creates a new API instance. credential may be nil when no valid
// admin hash is configured; every login then fails closed.
func New(credential *auth.AdminCredential, sessions *auth.SessionStore, csrf *auth.CSRFTokenStore, limiter *auth.RateLimiter, audit *auth.AuditLog, opts ...Option) *API {
	a := &API{
		credential:   credential,
		sessions:     sessions,
		csrf:         csrf,
		limiter:      limiter,
		audit:        audit,
		failureDelay: time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/auth/csrf", a.CSRFToken)
	r.Get("/auth/events", a.ListEvents)
	r.Get("/auth", a.AuthStatus)
	r.Post("/auth", a.Login)
	r.Delete("/auth", a.Logout)

	return r
}
