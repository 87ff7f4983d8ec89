// Package httpapi composes the module handlers behind the shared middleware
// chain. Handlers stay thin and delegate to their services.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"kyc/internal/platform/metrics"
	ratelimitmw "kyc/internal/ratelimit/middleware"
	ratelimitmodels "kyc/internal/ratelimit/models"
	"kyc/pkg/platform/httputil"
	adminmw "kyc/pkg/platform/middleware/admin"
	authmw "kyc/pkg/platform/middleware/auth"
	"kyc/pkg/platform/middleware/device"
	"kyc/pkg/platform/middleware/metadata"
	request "kyc/pkg/platform/middleware/request"
)

// Registrar mounts a module's routes on r.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Verifier       authmw.TokenVerifier
	AdminToken     string
	RequestTimeout time.Duration

	// User handlers are mounted behind bearer-token auth.
	User []Registrar
	// Admin handlers are mounted behind the shared admin token.
	Admin []Registrar

	HealthChecks map[string]HealthCheck

	// RateLimit is optional. Nil leaves every route unlimited.
	RateLimit *ratelimitmw.Middleware
}

// NewRouter wires all public endpoints.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(request.Clock(time.Now))
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(cfg.Metrics.LatencyMiddleware)

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(cfg.Verifier, logger))
			if cfg.RateLimit != nil {
				r.Use(cfg.RateLimit.RateLimitUser())
			}
			for _, h := range cfg.User {
				h.Register(r)
			}
		})

		r.Group(func(r chi.Router) {
			if cfg.RateLimit != nil {
				r.Use(cfg.RateLimit.RateLimitIP(ratelimitmodels.ClassAdmin))
			}
			r.Use(adminmw.RequireAdminToken(cfg.AdminToken, logger))
			for _, h := range cfg.Admin {
				h.Register(r)
			}
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "healthy"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":     overall,
			"components": components,
		})
	}
}
