package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	adminhandler "kyc/internal/admin/handler"
	httpapi "kyc/internal/http"
	jwttoken "kyc/internal/jwt_token"
	"kyc/internal/platform/config"
	"kyc/internal/platform/metrics"
	ratelimitmetrics "kyc/internal/ratelimit/metrics"
	ratelimitmw "kyc/internal/ratelimit/middleware"
	ratelimitmodels "kyc/internal/ratelimit/models"
	ratelimitservice "kyc/internal/ratelimit/service"
	"kyc/internal/ratelimit/store/bucket"
	receipthandler "kyc/internal/receipt/handler"
	verificationhandler "kyc/internal/verification/handler"
)

// NewHandler mounts every module handler on the shared router.
func NewHandler(cfg config.Server, stores *Stores, services *Services, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	health := map[string]httpapi.HealthCheck{}
	if stores.DB != nil {
		health["database"] = stores.DB.PingContext
	}
	if services.Redis != nil {
		health["redis"] = services.Redis.Health
	}

	limiter, err := newRateLimiter(cfg.RateLimit, services, reg, logger)
	if err != nil {
		return nil, err
	}

	return httpapi.NewRouter(httpapi.Config{
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Verifier:       jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		User: []httpapi.Registrar{
			receipthandler.New(services.Receipts, logger, cfg.UploadMaxBytes),
			verificationhandler.New(services.Verification, logger),
		},
		Admin: []httpapi.Registrar{
			adminhandler.New(services.Admin, logger),
		},
		HealthChecks: health,
		RateLimit:    limiter,
	}), nil
}

// newRateLimiter shares buckets through Redis when it is configured.
func newRateLimiter(cfg config.RateLimitConfig, services *Services, reg prometheus.Registerer, logger *slog.Logger) (*ratelimitmw.Middleware, error) {
	var store ratelimitservice.BucketStore = bucket.NewInMemoryBucketStore()
	if services.Redis != nil {
		store = bucket.NewRedisBucketStore(services.Redis.Client)
	}

	svc, err := ratelimitservice.New(store, ratelimitservice.Limits{
		ratelimitmodels.ClassRead:  {Requests: cfg.Read, Window: cfg.Window},
		ratelimitmodels.ClassWrite: {Requests: cfg.Write, Window: cfg.Window},
		ratelimitmodels.ClassAdmin: {Requests: cfg.Admin, Window: cfg.Window},
	},
		ratelimitservice.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimitservice.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return ratelimitmw.New(svc, logger, ratelimitmw.WithDisabled(!cfg.Enabled)), nil
}
