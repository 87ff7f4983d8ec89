package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	accountmodels "kyc/internal/account/models"
	"kyc/internal/admin/models"
	receiptmodels "kyc/internal/receipt/models"
	"kyc/internal/scoring"
	verificationmodels "kyc/internal/verification/models"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/requestcontext"
)

type AccountStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
	UpdateKYC(ctx context.Context, userID id.UserID, kyc scoring.AccountKYC, now time.Time) error
	List(ctx context.Context, filter accountmodels.ListFilter) ([]*accountmodels.Account, error)
	StatusCounts(ctx context.Context) (accountmodels.StatusCounts, error)
}

type ReceiptStats interface {
	PlatformStats(ctx context.Context) (receiptmodels.PlatformStats, error)
}

type ScoreStore interface {
	List(ctx context.Context) ([]*verificationmodels.Score, error)
	AverageFinalScore(ctx context.Context) (decimal.Decimal, error)
}

// Transactor serializes writes for one user. The verification module's
// transactor is shared so a manual verification cannot interleave with a
// recalculation.
type Transactor interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 100

	// adminActor identifies the shared-token administrator in audit events.
	adminActor = "admin"
)

// Service serves platform-wide administration.
type Service struct {
	accounts       AccountStore
	receipts       ReceiptStats
	scores         ScoreStore
	tx             Transactor
	auditPublisher AuditPublisher
	opsTracker     OpsTracker
	logger         *slog.Logger
}

type Option func(*Service)

func WithTransactor(tx Transactor) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithOpsTracker(tracker OpsTracker) Option {
	return func(s *Service) { s.opsTracker = tracker }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(accounts AccountStore, receipts ReceiptStats, scores ScoreStore, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if receipts == nil {
		return nil, errors.New("receipt stats source is required")
	}
	if scores == nil {
		return nil, errors.New("score store is required")
	}
	s := &Service{
		accounts: accounts,
		receipts: receipts,
		scores:   scores,
		tx:       directTx{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Statistics aggregates user, receipt and score figures across the platform.
func (s *Service) Statistics(ctx context.Context) (models.Statistics, error) {
	counts, err := s.accounts.StatusCounts(ctx)
	if err != nil {
		return models.Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}
	receipts, err := s.receipts.PlatformStats(ctx)
	if err != nil {
		return models.Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize receipts")
	}
	avg, err := s.scores.AverageFinalScore(ctx)
	if err != nil {
		return models.Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to average scores")
	}
	return models.Statistics{
		Users:           counts,
		Receipts:        receipts,
		AverageKYCScore: avg.Round(2),
	}, nil
}

// ListUsers returns accounts newest first, optionally narrowed to one status.
func (s *Service) ListUsers(ctx context.Context, filter accountmodels.ListFilter) ([]*accountmodels.Account, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid kyc_status")
	}
	if filter.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}

	accounts, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return accounts, nil
}

// ManualVerify marks the user verified as of now. The score is left as is.
func (s *Service) ManualVerify(ctx context.Context, userID id.UserID) (*accountmodels.Account, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}

	var account *accountmodels.Account
	err := s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		found, err := s.accounts.FindByID(ctx, userID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}

		now := requestcontext.Now(ctx).UTC()
		previous := found.KYCStatus
		kyc := found.KYC()
		kyc.Status = id.KYCStatusVerified
		kyc.VerificationDate = &now
		if err := s.accounts.UpdateKYC(ctx, userID, kyc, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify user")
		}
		found.ApplyKYC(kyc, now)
		account = found

		if s.auditPublisher == nil {
			return nil
		}
		if err := s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			UserID:    userID,
			Subject:   userID.String(),
			Action:    string(audit.EventUserManuallyVerify),
			Decision:  string(id.KYCStatusVerified),
			Reason:    string(previous),
			ActorID:   adminActor,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit manual verification")
		}
		return nil
	})
	if err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify user")
		}
		s.logger.WarnContext(ctx, "manual verification failed",
			"user_id", userID.String(),
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "user manually verified",
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return account, nil
}

// directTx runs fn without isolation. Used when no transactor is configured.
type directTx struct{}

func (directTx) RunInTx(ctx context.Context, _ id.UserID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
