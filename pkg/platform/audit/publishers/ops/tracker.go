// Package ops provides a best-effort tracker for operational audit events.
//
// Events are sampled, then written through a circuit breaker so a struggling
// audit store never slows down reads. Failures are counted and dropped.
//
// Use for: kyc_score_viewed, receipt_processed, receipt_failed,
// receipt_reprocessed, scores_exported
package ops

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	audit "kyc/pkg/platform/audit"
)

const (
	defaultWriteTimeout     = time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = time.Minute
)

// Tracker emits ops events without ever failing the caller.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures the Tracker.
type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

// WithBreaker sets the consecutive-failure threshold and open-state cooldown.
func WithBreaker(threshold uint32, cooldown time.Duration) Option {
	return func(t *Tracker) { t.breaker = newBreaker(threshold, cooldown, t) }
}

// New creates a tracker that keeps every event unless a sampler is configured.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1),
		timeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.breaker == nil {
		t.breaker = newBreaker(defaultBreakerThreshold, defaultBreakerCooldown, t)
	}
	return t
}

func newBreaker(threshold uint32, cooldown time.Duration, t *Tracker) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "audit-ops",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			t.metrics.setBreakerOpen(to == gobreaker.StateOpen)
		},
	})
}

// Track records the event if sampled and the store is healthy.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		t.metrics.record(event.Action, outcomeSampledOut)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	_, err := t.breaker.Execute(func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		return nil, t.store.Append(wctx, event.ToEvent())
	})
	switch {
	case err == nil:
		t.metrics.record(event.Action, outcomeTracked)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.metrics.record(event.Action, outcomeBreakerOpen)
	default:
		t.metrics.record(event.Action, outcomeFailed)
		if t.logger != nil {
			t.logger.WarnContext(ctx, "ops audit dropped",
				"action", event.Action,
				"error", err,
			)
		}
	}
}
