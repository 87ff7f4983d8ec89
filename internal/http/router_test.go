package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc/internal/platform/metrics"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/httputil"
	"kyc/pkg/requestcontext"
	"kyc/pkg/testutil"
)

type stubVerifier struct {
	userID id.UserID
}

func (v stubVerifier) AuthenticateToken(token string) (id.UserID, error) {
	if token != "good" {
		return id.UserID{}, errors.New("bad token")
	}
	return v.userID, nil
}

type echoUser struct{}

func (echoUser) Register(r chi.Router) {
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":    requestcontext.UserID(r.Context()).String(),
			"request_id": requestcontext.RequestID(r.Context()),
		})
	})
}

type echoAdmin struct{}

func (echoAdmin) Register(r chi.Router) {
	r.Get("/admin/ping", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"admin": requestcontext.IsAdmin(r.Context())})
	})
}

func newTestRouter(t *testing.T, userID id.UserID, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Config{
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Verifier:     stubVerifier{userID: userID},
		AdminToken:   "s3cret",
		User:         []Registrar{echoUser{}},
		Admin:        []Registrar{echoAdmin{}},
		HealthChecks: checks,
	})
}

func TestRouterAuth(t *testing.T) {
	userID := id.NewUserID()
	router := newTestRouter(t, userID, nil)

	t.Run("bearer token resolves the user", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/me")
		req.Header.Set("Authorization", "Bearer good")
		req.Header.Set("X-Request-ID", "req-123")

		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "user_id", userID.String())
		testutil.AssertJSONContains(t, rr, "request_id", "req-123")
		assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/me"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/me")
		req.Header.Set("Authorization", "Bearer forged")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

func TestRouterAdmin(t *testing.T) {
	router := newTestRouter(t, id.NewUserID(), nil)

	t.Run("admin token grants access", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/admin/ping")
		req.Header.Set("X-Admin-Token", "s3cret")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "admin", true)
	})

	t.Run("user bearer token is not enough", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/admin/ping")
		req.Header.Set("Authorization", "Bearer good")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	t.Run("healthy components", func(t *testing.T) {
		router := newTestRouter(t, id.NewUserID(), map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "healthy")
	})

	t.Run("failing component degrades", func(t *testing.T) {
		router := newTestRouter(t, id.NewUserID(), map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})

	t.Run("metrics expose route latency", func(t *testing.T) {
		router := newTestRouter(t, id.NewUserID(), nil)
		testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `kyc_http_requests_total{method="GET",route="/health",status="200"} 1`)
	})
}
