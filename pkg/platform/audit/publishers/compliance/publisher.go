// Package compliance writes regulatory audit events synchronously.
//
// Receipt submission and deletion, score calculation, status changes and
// manual verification are recorded here. The write happens inside the
// caller's transaction where one exists; a failed write must abort the
// business operation.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "kyc/pkg/platform/audit"
	"kyc/pkg/requestcontext"
)

var (
	ErrMissingUser   = errors.New("compliance event requires a user")
	ErrMissingAction = errors.New("compliance event requires an action")
	ErrNotCompliance = errors.New("action is not a compliance event")
)

// Publisher is fail-closed: Emit returns every persistence error.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New expects an outbox-backed store in production so events reach Kafka.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates the event, fills request metadata the caller left empty,
// and appends it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	event = withRequestMetadata(ctx, event)

	start := time.Now()
	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit write failed",
				"action", event.Action,
				"user_id", event.UserID,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted(event.Action)
	return nil
}

// Close has nothing to flush.
func (p *Publisher) Close() error { return nil }

func validate(event audit.ComplianceEvent) error {
	switch {
	case event.UserID.IsNil():
		return ErrMissingUser
	case event.Action == "":
		return ErrMissingAction
	case audit.AuditEvent(event.Action).Category() != audit.CategoryCompliance:
		return fmt.Errorf("%w: %s", ErrNotCompliance, event.Action)
	}
	return nil
}

func withRequestMetadata(ctx context.Context, event audit.ComplianceEvent) audit.ComplianceEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.DeviceFingerprint == "" {
		event.DeviceFingerprint = requestcontext.DeviceFingerprint(ctx)
	}
	return event
}
