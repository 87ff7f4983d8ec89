package middleware

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"kyc/internal/ratelimit/models"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/httputil"
	"kyc/pkg/requestcontext"
)

type RateLimiter interface {
	CheckUser(ctx context.Context, userID id.UserID, class models.EndpointClass) (*models.RateLimitResult, error)
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitUser limits authenticated routes per user. Safe methods draw on
// the read budget and everything else on the write budget. It must run after
// the auth middleware.
func (m *Middleware) RateLimitUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if m.disabled || userID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			class := classForMethod(r.Method)
			result, err := m.limiter.CheckUser(ctx, userID, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check user rate limit",
					"error", err,
					"user_id", userID.String(),
					"class", string(class),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result, "You have exceeded your request quota for this operation.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP limits routes by client IP for the given class.
func (m *Middleware) RateLimitIP(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result, err := m.limiter.CheckIP(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"class", string(class),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				writeRateLimitExceeded(w, result, "Too many requests from this IP address. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func classForMethod(method string) models.EndpointClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return models.ClassRead
	default:
		return models.ClassWrite
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: message,
		RetryAfter:       result.RetryAfter,
	})
}
