package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	accountmodels "kyc/internal/account/models"
	"kyc/internal/scoring"
	"kyc/internal/verification/metrics"
	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/requestcontext"
)

// ReceiptSource lists the snapshots scoring runs over.
type ReceiptSource interface {
	ListForScoring(ctx context.Context, userID id.UserID) ([]scoring.Receipt, error)
}

type ScoreStore interface {
	Upsert(ctx context.Context, score *models.Score) error
	FindByUser(ctx context.Context, userID id.UserID) (*models.Score, error)
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	History(ctx context.Context, userID id.UserID) ([]models.HistoryEntry, error)
}

type AccountStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
	UpdateKYC(ctx context.Context, userID id.UserID, kyc scoring.AccountKYC, now time.Time) error
}

// ScoreCache returns sentinel.ErrNotFound from Get on a miss. Set must not
// replace a cached score with one calculated earlier.
type ScoreCache interface {
	Get(ctx context.Context, userID id.UserID) (*models.Score, error)
	Set(ctx context.Context, score *models.Score) error
	Invalidate(ctx context.Context, userID id.UserID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

const msgNoScore = "No verification score found. Upload receipts to get scored."

var tracer = otel.Tracer("kyc/verification/service")

// Service recalculates and serves KYC verification scores.
type Service struct {
	receipts       ReceiptSource
	scores         ScoreStore
	accounts       AccountStore
	engine         *scoring.Engine
	tx             Transactor
	cache          ScoreCache
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithCache(cache ScoreCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(receipts ReceiptSource, scores ScoreStore, accounts AccountStore, engine *scoring.Engine, opts ...Option) (*Service, error) {
	if receipts == nil {
		return nil, errors.New("receipt source is required")
	}
	if scores == nil {
		return nil, errors.New("score store is required")
	}
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if engine == nil {
		return nil, errors.New("scoring engine is required")
	}
	s := &Service{
		receipts: receipts,
		scores:   scores,
		accounts: accounts,
		engine:   engine,
		tx:       NewShardedTx(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecalculateUser satisfies the receipt module's recalculation port.
func (s *Service) RecalculateUser(ctx context.Context, userID id.UserID) error {
	_, err := s.Recalculate(ctx, userID)
	return err
}

// Recalculate rescores the user's current receipts. The snapshot read, score
// upsert, history append and account update commit together.
func (s *Service) Recalculate(ctx context.Context, userID id.UserID) (*models.Score, error) {
	ctx, span := tracer.Start(ctx, "verification.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID.String()))

	start := time.Now()
	outcome, result, err := s.recalculateInTx(ctx, userID)
	s.metrics.ObserveRecalculation(start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculation failed")
		s.logger.ErrorContext(ctx, "score recalculation failed",
			"user_id", userID.String(),
			"error", err,
		)
		return nil, err
	}

	final, _ := outcome.Score.FinalScore.Float64()
	span.SetAttributes(
		attribute.Float64("final_score", final),
		attribute.Int("receipts.trusted", len(result.Trusted)),
		attribute.Int("receipts.dropped", len(result.Dropped)),
	)
	s.metrics.ObserveScore(final, len(result.Dropped))
	s.refreshCache(ctx, outcome.Score)

	if err := s.emit(ctx, userID, audit.EventScoreCalculated, outcome.Score.FinalScore.StringFixed(2), string(outcome.Current)); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit score calculation",
			"user_id", userID.String(),
			"error", err,
		)
	}
	if outcome.StatusChanged() {
		s.metrics.IncStatusTransition(string(outcome.Previous), string(outcome.Current))
		if err := s.emit(ctx, userID, audit.EventStatusChanged, string(outcome.Previous), string(outcome.Current)); err != nil {
			s.logger.ErrorContext(ctx, "failed to audit status change",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "score recalculated",
		"user_id", userID.String(),
		"final_score", outcome.Score.FinalScore.StringFixed(2),
		"is_verified", outcome.Score.IsVerified,
		"kyc_status", string(outcome.Current),
		"trusted", len(result.Trusted),
		"dropped", len(result.Dropped),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return outcome.Score, nil
}

func (s *Service) recalculateInTx(ctx context.Context, userID id.UserID) (models.Outcome, scoring.Result, error) {
	var (
		outcome models.Outcome
		result  scoring.Result
	)
	err := s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		records, err := s.receipts.ListForScoring(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipts")
		}

		result, err = s.engine.Evaluate(ctx, userID, records)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "scoring aborted")
		}

		now := requestcontext.Now(ctx).UTC()
		score := models.NewScore(userID, result, now)
		if err := s.scores.Upsert(ctx, score); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save score")
		}
		if err := s.scores.AppendHistory(ctx, models.HistoryEntry{
			UserID:       userID,
			FinalScore:   score.FinalScore,
			ReceiptCount: score.Metrics.TotalReceipts,
			RecordedAt:   now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record score history")
		}
		outcome.Score = score

		account, err := s.accounts.FindByID(ctx, userID)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "no account for scored user",
				"user_id", userID.String(),
			)
			outcome.Current = scoring.DeriveStatus(scoring.AccountKYC{}, result, now).Status
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}

		prev := account.KYC()
		next := scoring.DeriveStatus(prev, result, now)
		if err := s.accounts.UpdateKYC(ctx, userID, next, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
		}
		outcome.Previous = prev.Status
		outcome.Current = next.Status
		return nil
	})
	if err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to recalculate score")
		}
		return models.Outcome{}, scoring.Result{}, err
	}
	return outcome, result, nil
}

// Score returns the stored score, reading through the cache when configured.
func (s *Service) Score(ctx context.Context, userID id.UserID) (*models.Score, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		switch {
		case err == nil:
			s.metrics.IncCacheLookup("hit")
			return cached, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.IncCacheLookup("miss")
		default:
			s.metrics.IncCacheLookup("error")
			s.logger.WarnContext(ctx, "score cache read failed",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}

	score, err := s.scores.FindByUser(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, msgNoScore)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, score); err != nil {
			s.logger.WarnContext(ctx, "score cache write failed",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}
	return score, nil
}

// Breakdown explains the stored score next to the current receipt partition.
func (s *Service) Breakdown(ctx context.Context, userID id.UserID) (*models.Breakdown, error) {
	score, err := s.scores.FindByUser(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "No verification score found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
	}

	records, err := s.receipts.ListForScoring(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipts")
	}
	trusted, dropped := s.engine.Partition(ctx, userID, records)

	return &models.Breakdown{
		Score: score,
		Breakdown: scoring.NewBreakdown(scoring.Result{
			Components: score.Components,
			Weights:    score.Weights,
			FinalScore: score.FinalScore,
			Threshold:  score.Threshold,
			IsVerified: score.IsVerified,
			Metrics:    score.Metrics,
			Trusted:    trusted,
			Dropped:    dropped,
		}),
	}, nil
}

// History returns the user's recalculations, oldest first.
func (s *Service) History(ctx context.Context, userID id.UserID) ([]models.HistoryEntry, error) {
	entries, err := s.scores.History(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score history")
	}
	return entries, nil
}

// Requirements reports what the user needs for verification and where they stand.
func (s *Service) Requirements(ctx context.Context, userID id.UserID) (models.Requirements, error) {
	req := models.Requirements{
		Threshold:    s.engine.Config().VerificationThreshold,
		CurrentScore: decimal.Zero,
		Status:       id.KYCStatusPending,
	}
	account, err := s.accounts.FindByID(ctx, userID)
	switch {
	case err == nil:
		req.CurrentScore = account.KYCScore
		req.Status = account.KYCStatus
	case errors.Is(err, sentinel.ErrNotFound):
		score, err := s.scores.FindByUser(ctx, userID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return models.Requirements{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
		}
		if score != nil {
			req.CurrentScore = score.FinalScore
		}
	default:
		return models.Requirements{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	req.IsVerified = req.Status == id.KYCStatusVerified
	return req, nil
}

// refreshCache writes the committed score through. If that fails the entry is
// dropped so readers fall back to the store.
func (s *Service) refreshCache(ctx context.Context, score *models.Score) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, score); err != nil {
		s.logger.WarnContext(ctx, "score cache write failed",
			"user_id", score.UserID.String(),
			"error", err,
		)
		s.invalidate(ctx, score.UserID)
	}
}

func (s *Service) invalidate(ctx context.Context, userID id.UserID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "score cache invalidation failed",
			"user_id", userID.String(),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, userID id.UserID, action audit.AuditEvent, reason, decision string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
		UserID:   userID,
		Subject:  userID.String(),
		Action:   string(action),
		Decision: decision,
		Reason:   reason,
	})
}
