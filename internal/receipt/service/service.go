package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kyc/internal/receipt/metrics"
	"kyc/internal/receipt/models"
	"kyc/internal/receipt/ports"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Receipt) error
	Update(ctx context.Context, r *models.Receipt) error
	FindByIDForUser(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error)
	ListByUser(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Receipt, error)
	Delete(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) error
	Stats(ctx context.Context, userID id.UserID) (models.Stats, error)
}

// Transactor runs fn as one unit of work for a user. It is shared with the
// verification module so receipt writes and rescoring never interleave.
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
	DefaultMaxUploadBytes = 5 << 20
	DefaultListLimit      = 50
	MaxListLimit          = 100
)

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"pdf":  true,
}

// Service handles receipt ingestion and ownership-scoped access.
type Service struct {
	store          Store
	extractor      ports.Extractor
	recalculator   ports.Recalculator
	tx             Transactor
	logger         *slog.Logger
	auditPublisher AuditPublisher
	opsTracker     OpsTracker
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(store Store, extractor ports.Extractor, recalculator ports.Recalculator, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("receipt store is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if recalculator == nil {
		return nil, errors.New("recalculator is required")
	}
	s := &Service{
		store:          store,
		extractor:      extractor,
		recalculator:   recalculator,
		tx:             directTx{},
		logger:         slog.New(slog.DiscardHandler),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit stores an upload, runs extraction and rescores the owner. An
// extraction failure is recorded on the receipt rather than returned.
func (s *Service) Submit(ctx context.Context, userID id.UserID, upload models.Upload) (*models.Receipt, error) {
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	receipt := models.NewReceipt(userID, upload, requestcontext.Now(ctx).UTC())
	// The audit event goes first: in-memory stores cannot roll back, so a
	// failed emit must leave nothing to undo.
	err := s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		if err := s.emitCompliance(ctx, userID, audit.EventReceiptSubmitted, receipt.ID.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit receipt submission")
		}
		if err := s.store.Create(ctx, receipt); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store receipt")
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to store receipt")
	}

	if err := s.process(ctx, receipt); err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, userID); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Reprocess re-runs extraction on a stored receipt. Completed receipts are
// returned unchanged.
func (s *Service) Reprocess(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error) {
	receipt, err := s.find(ctx, userID, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt.Status == scoring.ReceiptCompleted {
		return receipt, nil
	}

	s.trackOps(ctx, userID, audit.EventReceiptReprocessed, receiptID.String())
	if err := s.process(ctx, receipt); err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, userID); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error) {
	return s.find(ctx, userID, receiptID)
}

// List returns a page of the user's receipts, newest first.
func (s *Service) List(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Receipt, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status filter")
	}
	if filter.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "offset must be non-negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}

	receipts, err := s.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
	}
	return receipts, nil
}

// Delete removes a receipt and rescores the owner. The receipt survives a
// failed audit write, so the call can be retried.
func (s *Service) Delete(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) error {
	err := s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		if _, err := s.find(ctx, userID, receiptID); err != nil {
			return err
		}
		if err := s.emitCompliance(ctx, userID, audit.EventReceiptDeleted, receiptID.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit receipt deletion")
		}
		if err := s.store.Delete(ctx, userID, receiptID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "receipt not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete receipt")
		}
		return nil
	})
	if err != nil {
		return internalError(err, "failed to delete receipt")
	}
	s.metrics.IncDeleted()

	// Recalculation takes the same per-user lock, so it runs after commit.
	return s.recalculate(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID id.UserID) (models.Stats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt stats")
	}
	return stats, nil
}

func (s *Service) validateUpload(upload models.Upload) error {
	if strings.TrimSpace(upload.FileName) == "" {
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	ext := upload.Extension()
	if !allowedExtensions[ext] {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("file type not allowed, allowed types: %s", allowedList()))
	}
	if len(upload.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if int64(len(upload.Data)) > s.maxUploadBytes {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("file too large, maximum size is %d MB", s.maxUploadBytes>>20))
	}
	return nil
}

func allowedList() string {
	return "jpg, jpeg, png, pdf"
}

func (s *Service) find(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error) {
	receipt, err := s.store.FindByIDForUser(ctx, userID, receiptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "receipt not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return receipt, nil
}

// process runs the extractor and persists the outcome on the receipt.
func (s *Service) process(ctx context.Context, receipt *models.Receipt) error {
	receipt.MarkProcessing()
	if err := s.store.Update(ctx, receipt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update receipt")
	}

	start := time.Now()
	ext, err := s.extractor.Extract(ctx, ports.Image{
		FileName:    receipt.FileName,
		ContentType: receipt.ContentType,
		Data:        receipt.Image,
	})
	s.metrics.ObserveExtraction(start)

	now := requestcontext.Now(ctx).UTC()
	if err != nil {
		s.logger.WarnContext(ctx, "receipt extraction failed",
			"receipt_id", receipt.ID.String(),
			"user_id", receipt.UserID.String(),
			"error", err,
		)
		receipt.Fail(err.Error(), now)
		s.trackOps(ctx, receipt.UserID, audit.EventReceiptFailed, receipt.ID.String())
	} else {
		receipt.Complete(ext, now)
		s.trackOps(ctx, receipt.UserID, audit.EventReceiptProcessed, receipt.ID.String())
	}
	s.metrics.IncProcessed(string(receipt.Status))

	if err := s.store.Update(ctx, receipt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update receipt")
	}
	return nil
}

func (s *Service) recalculate(ctx context.Context, userID id.UserID) error {
	if err := s.recalculator.RecalculateUser(ctx, userID); err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to recalculate score")
	}
	return nil
}

// internalError keeps domain errors raised inside a transaction and wraps
// anything else, such as a failed commit.
func internalError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// directTx runs fn without isolation. Used when no transactor is configured.
type directTx struct{}

func (directTx) RunInTx(ctx context.Context, _ id.UserID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Service) emitCompliance(ctx context.Context, userID id.UserID, action audit.AuditEvent, subject string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
		UserID:  userID,
		Subject: subject,
		Action:  string(action),
	})
}

func (s *Service) trackOps(ctx context.Context, userID id.UserID, action audit.AuditEvent, subject string) {
	if s.opsTracker == nil {
		return
	}
	s.opsTracker.Track(ctx, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		UserID:    userID,
		Subject:   subject,
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	})
}
