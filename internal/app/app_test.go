package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountmodels "kyc/internal/account/models"
	jwttoken "kyc/internal/jwt_token"
	"kyc/internal/platform/config"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/testutil"
)

func memoryConfig() config.Server {
	return config.Server{
		Environment:    config.EnvDevelopment,
		Scoring:        scoring.DefaultConfig(),
		UploadMaxBytes: 5 << 20,
		JWTSigningKey:  "test-key",
		JWTIssuer:      "kyc",
		JWTAudience:    "kyc-api",
		AdminToken:     "admin-secret",
		RequestTimeout: 5 * time.Second,
		Audit: config.AuditConfig{
			OpsSampleRate:       decimal.NewFromInt(1),
			ScoreViewSampleRate: decimal.NewFromInt(1),
		},
	}
}

// TestReceiptToVerificationFlow drives the in-memory wiring through the HTTP
// surface: upload, score lookup, history, and the admin view.
func TestReceiptToVerificationFlow(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := OpenStores(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	assert.Nil(t, stores.DB)
	assert.Nil(t, stores.Outbox)

	services, err := NewServices(ctx, cfg, stores, prometheus.NewRegistry(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.Nil(t, services.Redis)

	userID := id.NewUserID()
	account, err := accountmodels.NewAccount(userID, "wanjiru@example.com", "Wanjiru K", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, stores.Accounts.Create(ctx, account))

	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
		GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)

	router, err := NewHandler(cfg, stores, services, prometheus.NewRegistry(), logger)
	require.NoError(t, err)

	userRequest := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}
	adminRequest := func(req *http.Request) *http.Request {
		req.Header.Set("X-Admin-Token", cfg.AdminToken)
		return req
	}

	testutil.Given(t, "an authenticated user with no receipts", func(t *testing.T) {
		testutil.When(t, "uploading a receipt image", func(t *testing.T) {
			req := testutil.NewMultipartRequest(t, http.MethodPost, "/receipts/upload", "file", "naivas.jpg", []byte("fake-jpeg-bytes"))
			rr := testutil.DoRequest(router, userRequest(req))

			testutil.Then(t, "the receipt is processed synchronously", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
				testutil.AssertJSONContains(t, rr, "status", "completed")
			})
		})

		testutil.When(t, "reading the current score", func(t *testing.T) {
			rr := testutil.DoRequest(router, userRequest(testutil.NewRequest(t, http.MethodGet, "/verification/score")))

			testutil.Then(t, "a score has been recorded", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONHasKey(t, rr, "final_score")
			})
		})

		testutil.When(t, "reading the score history", func(t *testing.T) {
			rr := testutil.DoRequest(router, userRequest(testutil.NewRequest(t, http.MethodGet, "/verification/history")))

			testutil.Then(t, "the upload produced a history point", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				points := testutil.UnmarshalResponse[[]map[string]any](t, rr)
				assert.NotEmpty(t, *points)
			})
		})
	})

	testutil.Given(t, "an operator holding the admin token", func(t *testing.T) {
		testutil.When(t, "reading platform statistics", func(t *testing.T) {
			rr := testutil.DoRequest(router, adminRequest(testutil.NewRequest(t, http.MethodGet, "/admin/statistics")))

			testutil.Then(t, "the uploaded receipt is counted", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "total_users", float64(1))
				testutil.AssertJSONContains(t, rr, "total_receipts", float64(1))
				testutil.AssertJSONContains(t, rr, "processed_receipts", float64(1))
			})
		})

		testutil.When(t, "manually verifying the user", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPatch, "/admin/users/"+userID.String()+"/verify")
			rr := testutil.DoRequest(router, adminRequest(req))

			testutil.Then(t, "the account is verified", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "kyc_status", "verified")
			})
		})

		testutil.When(t, "calling an admin route without the token", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/statistics"))

			testutil.Then(t, "the request is rejected", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rr.Code)
			})
		})
	})

	testutil.Given(t, "the recorded audit trail", func(t *testing.T) {
		events, err := stores.Trail.ListByUser(ctx, userID)
		require.NoError(t, err)

		actions := make(map[string]audit.EventCategory, len(events))
		for _, e := range events {
			actions[e.Action] = e.Category
		}

		testutil.Then(t, "every compliance step was written", func(t *testing.T) {
			assert.Equal(t, audit.CategoryCompliance, actions[string(audit.EventReceiptSubmitted)])
			assert.Equal(t, audit.CategoryCompliance, actions[string(audit.EventScoreCalculated)])
			assert.Equal(t, audit.CategoryCompliance, actions[string(audit.EventUserManuallyVerify)])
		})
	})

	testutil.Given(t, "the public health endpoint", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.Then(t, "memory mode reports healthy", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "status", "healthy")
		})
	})
}

func TestOpenStoresRequiresDatabaseInProduction(t *testing.T) {
	cfg := memoryConfig()
	cfg.Environment = config.EnvProduction

	_, err := OpenStores(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestUploadsAreRateLimitedPerUser(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Window: time.Minute, Write: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := OpenStores(ctx, cfg, logger)
	require.NoError(t, err)
	services, err := NewServices(ctx, cfg, stores, prometheus.NewRegistry(), logger)
	require.NoError(t, err)

	userID := id.NewUserID()
	account, err := accountmodels.NewAccount(userID, "otieno@example.com", "Otieno O", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, stores.Accounts.Create(ctx, account))
	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
		GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)

	router, err := NewHandler(cfg, stores, services, prometheus.NewRegistry(), logger)
	require.NoError(t, err)

	upload := func() int {
		req := testutil.NewMultipartRequest(t, http.MethodPost, "/receipts/upload", "file", "r.png", []byte("png-bytes"))
		req.Header.Set("Authorization", "Bearer "+token)
		return testutil.DoRequest(router, req).Code
	}

	assert.Equal(t, http.StatusCreated, upload())
	assert.Equal(t, http.StatusTooManyRequests, upload())

	// Reads draw on their own budget, which is unset here.
	req := testutil.NewRequest(t, http.MethodGet, "/verification/score")
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, testutil.DoRequest(router, req).Code)
}
