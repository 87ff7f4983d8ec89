// Package service applies per-class limits to users and client IPs.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"kyc/internal/ratelimit/metrics"
	"kyc/internal/ratelimit/models"
	id "kyc/pkg/domain"
)

// BucketStore counts requests per key within a window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Limits maps each endpoint class to its budget. Missing classes are unlimited.
type Limits map[models.EndpointClass]models.Limit

type Service struct {
	store   BucketStore
	limits  Limits
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(store BucketStore, limits Limits, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("bucket store is required")
	}
	for class := range limits {
		if !class.IsValid() {
			return nil, fmt.Errorf("unknown endpoint class %q", class)
		}
	}
	s := &Service{
		store:  store,
		limits: limits,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckUser charges one request to the user's bucket for class.
func (s *Service) CheckUser(ctx context.Context, userID id.UserID, class models.EndpointClass) (*models.RateLimitResult, error) {
	return s.check(ctx, fmt.Sprintf("user:%s:%s", userID.String(), class), class)
}

// CheckIP charges one request to the client IP's bucket for class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	return s.check(ctx, fmt.Sprintf("ip:%s:%s", models.SanitizeKeySegment(ip), class), class)
}

func (s *Service) check(ctx context.Context, key string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.limits[class]
	if !ok || limit.Unlimited() {
		return &models.RateLimitResult{Allowed: true}, nil
	}

	result, err := s.store.Allow(ctx, key, limit.Requests, limit.Window)
	if err != nil {
		s.metrics.IncStoreError()
		return nil, fmt.Errorf("check %s limit: %w", class, err)
	}
	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(result.ResetAt, s.now())
		s.metrics.IncRejected(string(class))
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"class", string(class),
			"limit", result.Limit,
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
