package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kyc/internal/receipt/models"
	"kyc/internal/receipt/ports"
	"kyc/internal/receipt/service/mocks"
	"kyc/internal/receipt/store"
	"kyc/internal/scoring"
	"kyc/internal/scoring/scoringtest"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/requestcontext"
)

// =============================================================================
// Receipt Service Test Suite
// =============================================================================
// Justification for unit tests: the service owns upload validation, the
// extraction lifecycle and the rescoring trigger. Tests run it against the
// in-memory store with mocked audit sinks.

type fakeExtractor struct {
	ext   models.Extraction
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ ports.Image) (models.Extraction, error) {
	f.calls++
	return f.ext, f.err
}

type ReceiptServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	store     *store.InMemoryStore
	extractor *fakeExtractor
	audit     *mocks.MockAuditPublisher
	ops       *mocks.MockOpsTracker
	recalcs   []id.UserID
	recalcErr error
	service   *Service
	userID    id.UserID
	otherUser id.UserID
}

func TestReceiptServiceSuite(t *testing.T) {
	suite.Run(t, new(ReceiptServiceSuite))
}

func (s *ReceiptServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), scoringtest.Base)
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemoryStore()
	merchant := "Naivas Supermarket"
	s.extractor = &fakeExtractor{ext: models.Extraction{
		MerchantName:      &merchant,
		TotalAmount:       scoringtest.Null("2500.00"),
		OverallConfidence: scoringtest.Null("0.93"),
	}}
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.ops = mocks.NewMockOpsTracker(s.ctrl)
	s.ops.EXPECT().Track(gomock.Any(), gomock.Any()).AnyTimes()
	s.recalcs = nil
	s.recalcErr = nil
	s.userID = id.NewUserID()
	s.otherUser = id.NewUserID()

	recalc := ports.RecalculatorFunc(func(_ context.Context, userID id.UserID) error {
		s.recalcs = append(s.recalcs, userID)
		return s.recalcErr
	})
	var err error
	s.service, err = New(s.store, s.extractor, recalc,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit),
		WithOpsTracker(s.ops),
		WithMaxUploadBytes(1024),
	)
	s.Require().NoError(err)
}

func (s *ReceiptServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func upload(name string, size int) models.Upload {
	return models.Upload{FileName: name, ContentType: "image/jpeg", Data: make([]byte, size)}
}

func (s *ReceiptServiceSuite) expectAudit(action audit.AuditEvent) {
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(string(action), e.Action)
			s.Equal(s.userID, e.UserID)
			return nil
		})
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *ReceiptServiceSuite) TestNew() {
	recalc := ports.RecalculatorFunc(func(context.Context, id.UserID) error { return nil })

	s.Run("nil store returns error", func() {
		_, err := New(nil, s.extractor, recalc)
		s.ErrorContains(err, "receipt store is required")
	})
	s.Run("nil extractor returns error", func() {
		_, err := New(s.store, nil, recalc)
		s.ErrorContains(err, "extractor is required")
	})
	s.Run("nil recalculator returns error", func() {
		_, err := New(s.store, s.extractor, nil)
		s.ErrorContains(err, "recalculator is required")
	})
}

// =============================================================================
// Submit
// =============================================================================

func (s *ReceiptServiceSuite) TestSubmit() {
	s.Run("successful extraction completes receipt and rescores owner", func() {
		s.expectAudit(audit.EventReceiptSubmitted)

		r, err := s.service.Submit(s.ctx, s.userID, upload("till.JPG", 100))
		s.Require().NoError(err)
		s.Equal(scoring.ReceiptCompleted, r.Status)
		s.Equal("Naivas Supermarket", *r.MerchantName)
		s.Equal("KES", r.Currency)
		s.Equal(scoringtest.Base, r.UploadedAt)
		s.Require().NotNil(r.ProcessedAt)
		s.Equal([]id.UserID{s.userID}, s.recalcs)

		stored, err := s.store.FindByIDForUser(s.ctx, s.userID, r.ID)
		s.Require().NoError(err)
		s.Equal(scoring.ReceiptCompleted, stored.Status)
	})

	s.Run("extraction failure is recorded on the receipt", func() {
		s.recalcs = nil
		s.extractor.err = errors.New("model timeout")
		defer func() { s.extractor.err = nil }()
		s.expectAudit(audit.EventReceiptSubmitted)

		r, err := s.service.Submit(s.ctx, s.userID, upload("till.png", 100))
		s.Require().NoError(err)
		s.Equal(scoring.ReceiptFailed, r.Status)
		s.Equal("model timeout", r.ErrorMessage)
		s.Len(s.recalcs, 1)
	})

	s.Run("rejects unsupported extension", func() {
		_, err := s.service.Submit(s.ctx, s.userID, upload("notes.txt", 10))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "jpg, jpeg, png, pdf")
	})

	s.Run("rejects oversized file", func() {
		_, err := s.service.Submit(s.ctx, s.userID, upload("big.png", 2048))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects empty file", func() {
		_, err := s.service.Submit(s.ctx, s.userID, upload("empty.png", 0))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("audit failure stores nothing and skips extraction", func() {
		s.recalcs = nil
		s.extractor.calls = 0
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))
		before, _ := s.store.Stats(s.ctx, s.userID)

		_, err := s.service.Submit(s.ctx, s.userID, upload("till.png", 10))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorContains(err, "failed to audit receipt submission")

		after, _ := s.store.Stats(s.ctx, s.userID)
		s.Equal(before.Total, after.Total)
		s.Zero(s.extractor.calls)
		s.Empty(s.recalcs)
	})

	s.Run("recalculation failure propagates", func() {
		s.recalcErr = errors.New("db gone")
		defer func() { s.recalcErr = nil }()
		s.expectAudit(audit.EventReceiptSubmitted)

		_, err := s.service.Submit(s.ctx, s.userID, upload("till.png", 10))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ReceiptServiceSuite) TestSubmitStorePersistenceFailure() {
	mockStore := mocks.NewMockStore(s.ctrl)
	svc, err := New(mockStore, s.extractor, ports.RecalculatorFunc(func(context.Context, id.UserID) error { return nil }))
	s.Require().NoError(err)

	mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
	_, err = svc.Submit(s.ctx, s.userID, upload("till.png", 10))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.extractor.calls)
}

// =============================================================================
// Reprocess / Get / Delete
// =============================================================================

func (s *ReceiptServiceSuite) seedFailed() *models.Receipt {
	r := models.NewReceipt(s.userID, upload("till.png", 10), scoringtest.Base)
	r.Fail("blurry", scoringtest.Base)
	s.Require().NoError(s.store.Create(s.ctx, r))
	return r
}

func (s *ReceiptServiceSuite) TestReprocess() {
	s.Run("failed receipt is extracted again", func() {
		r := s.seedFailed()
		got, err := s.service.Reprocess(s.ctx, s.userID, r.ID)
		s.Require().NoError(err)
		s.Equal(scoring.ReceiptCompleted, got.Status)
		s.Empty(got.ErrorMessage)
		s.Equal(1, s.extractor.calls)
	})

	s.Run("completed receipt is returned untouched", func() {
		s.extractor.calls = 0
		s.recalcs = nil
		r := s.seedFailed()
		r.Complete(models.Extraction{}, scoringtest.Base)
		s.Require().NoError(s.store.Update(s.ctx, r))

		_, err := s.service.Reprocess(s.ctx, s.userID, r.ID)
		s.Require().NoError(err)
		s.Zero(s.extractor.calls)
		s.Empty(s.recalcs)
	})

	s.Run("another user's receipt is not found", func() {
		r := s.seedFailed()
		_, err := s.service.Reprocess(s.ctx, s.otherUser, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReceiptServiceSuite) TestGet() {
	r := s.seedFailed()

	got, err := s.service.Get(s.ctx, s.userID, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, got.ID)

	_, err = s.service.Get(s.ctx, s.otherUser, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ReceiptServiceSuite) TestDelete() {
	s.Run("removes receipt and rescores", func() {
		r := s.seedFailed()
		s.expectAudit(audit.EventReceiptDeleted)

		s.Require().NoError(s.service.Delete(s.ctx, s.userID, r.ID))
		s.Equal([]id.UserID{s.userID}, s.recalcs)

		_, err := s.store.FindByIDForUser(s.ctx, s.userID, r.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown receipt is not found and does not rescore", func() {
		s.recalcs = nil
		err := s.service.Delete(s.ctx, s.userID, id.NewReceiptID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.recalcs)
	})

	s.Run("audit failure keeps the receipt so the delete can be retried", func() {
		s.recalcs = nil
		r := s.seedFailed()
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

		err := s.service.Delete(s.ctx, s.userID, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorContains(err, "failed to audit receipt deletion")
		_, err = s.store.FindByIDForUser(s.ctx, s.userID, r.ID)
		s.Require().NoError(err)
		s.Empty(s.recalcs)

		s.expectAudit(audit.EventReceiptDeleted)
		s.Require().NoError(s.service.Delete(s.ctx, s.userID, r.ID))
		_, err = s.store.FindByIDForUser(s.ctx, s.userID, r.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Equal([]id.UserID{s.userID}, s.recalcs)
	})

	s.Run("another user's receipt is not found and not audited", func() {
		s.recalcs = nil
		r := s.seedFailed()

		err := s.service.Delete(s.ctx, s.otherUser, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.recalcs)
	})
}

// =============================================================================
// Transaction Boundaries
// =============================================================================

type inTx struct{}

// TestWritesRunInsideTransactor checks that the audit event and the store
// write share one unit of work and that rescoring happens after it.
func (s *ReceiptServiceSuite) TestWritesRunInsideTransactor() {
	tx := mocks.NewMockTransactor(s.ctrl)
	var open bool
	run := func(ctx context.Context, userID id.UserID, fn func(context.Context) error) error {
		s.Equal(s.userID, userID)
		open = true
		defer func() { open = false }()
		return fn(context.WithValue(ctx, inTx{}, true))
	}
	recalc := ports.RecalculatorFunc(func(ctx context.Context, _ id.UserID) error {
		s.False(open, "rescoring must not run inside the receipt transaction")
		s.Nil(ctx.Value(inTx{}))
		return nil
	})
	svc, err := New(s.store, s.extractor, recalc,
		WithTransactor(tx),
		WithAuditPublisher(s.audit),
		WithOpsTracker(s.ops),
	)
	s.Require().NoError(err)

	expectEmitInTx := func(action audit.AuditEvent) {
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, e audit.ComplianceEvent) error {
				s.Equal(string(action), e.Action)
				s.Equal(true, ctx.Value(inTx{}))
				return nil
			})
	}

	s.Run("submit", func() {
		tx.EXPECT().RunInTx(gomock.Any(), s.userID, gomock.Any()).DoAndReturn(run)
		expectEmitInTx(audit.EventReceiptSubmitted)

		r, err := svc.Submit(s.ctx, s.userID, upload("till.png", 10))
		s.Require().NoError(err)
		s.Equal(scoring.ReceiptCompleted, r.Status)
	})

	s.Run("delete", func() {
		r := s.seedFailed()
		tx.EXPECT().RunInTx(gomock.Any(), s.userID, gomock.Any()).DoAndReturn(run)
		expectEmitInTx(audit.EventReceiptDeleted)

		s.Require().NoError(svc.Delete(s.ctx, s.userID, r.ID))
	})

	s.Run("transactor failure surfaces as internal error", func() {
		tx.EXPECT().RunInTx(gomock.Any(), s.userID, gomock.Any()).Return(errors.New("commit failed"))

		_, err := svc.Submit(s.ctx, s.userID, upload("till.png", 10))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// List / Stats
// =============================================================================

func (s *ReceiptServiceSuite) TestList() {
	for i := range 3 {
		r := models.NewReceipt(s.userID, upload("till.png", 10), scoringtest.Base.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			r.Fail("blurry", scoringtest.Base)
		}
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	s.Run("newest first with default limit", func() {
		got, err := s.service.List(s.ctx, s.userID, models.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.True(got[0].UploadedAt.After(got[1].UploadedAt))
	})

	s.Run("status filter", func() {
		failed := scoring.ReceiptFailed
		got, err := s.service.List(s.ctx, s.userID, models.ListFilter{Status: &failed})
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("offset and limit", func() {
		got, err := s.service.List(s.ctx, s.userID, models.ListFilter{Offset: 1, Limit: 1})
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("invalid status rejected", func() {
		bogus := scoring.ReceiptStatus("archived")
		_, err := s.service.List(s.ctx, s.userID, models.ListFilter{Status: &bogus})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("other users see nothing", func() {
		got, err := s.service.List(s.ctx, s.otherUser, models.ListFilter{})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *ReceiptServiceSuite) TestStats() {
	completed := models.NewReceipt(s.userID, upload("a.png", 10), scoringtest.Base)
	completed.Complete(models.Extraction{TotalAmount: scoringtest.Null("1200.50")}, scoringtest.Base)
	s.Require().NoError(s.store.Create(s.ctx, completed))
	s.seedFailed()
	s.Require().NoError(s.store.Create(s.ctx, models.NewReceipt(s.userID, upload("b.png", 10), scoringtest.Base)))

	stats, err := s.service.Stats(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(1, stats.Completed)
	s.Equal(1, stats.Failed)
	s.Equal(1, stats.Pending)
	s.Equal("1200.5", stats.CompletedAmount.String())
}
