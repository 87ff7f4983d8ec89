//go:build integration

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"kyc/internal/receipt/models"
	"kyc/internal/receipt/ports"
	receiptstore "kyc/internal/receipt/store"
	"kyc/internal/scoring/scoringtest"
	verificationstore "kyc/internal/verification/store"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/audit/publishers/compliance"
	auditpostgres "kyc/pkg/platform/audit/store/postgres"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/requestcontext"
	"kyc/pkg/testutil/containers"
)

// lostAck writes the event and then reports failure, as when the outbox
// insert succeeds but a later step in the unit of work fails.
type lostAck struct {
	next AuditPublisher
	fail bool
}

func (p *lostAck) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := p.next.Emit(ctx, event); err != nil {
		return err
	}
	if p.fail {
		return errors.New("outbox ack lost")
	}
	return nil
}

type PostgresTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	receipts *receiptstore.PostgresStore
	trail    *auditpostgres.Store
	audit    *lostAck
	service  *Service
	userID   id.UserID
	ctx      context.Context
}

func TestPostgresTxSuite(t *testing.T) {
	suite.Run(t, new(PostgresTxSuite))
}

func (s *PostgresTxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.receipts = receiptstore.NewPostgres(s.postgres.DB)
	s.trail = auditpostgres.New(s.postgres.DB)
	s.audit = &lostAck{next: compliance.New(s.trail)}

	var err error
	s.service, err = New(s.receipts, &fakeExtractor{}, ports.RecalculatorFunc(func(context.Context, id.UserID) error { return nil }),
		WithTransactor(verificationstore.NewPostgresTx(s.postgres.DB)),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
}

func (s *PostgresTxSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), scoringtest.Base)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx))
	s.userID = id.NewUserID()
	s.audit.fail = false
}

func (s *PostgresTxSuite) trailActions() []string {
	events, err := s.trail.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func (s *PostgresTxSuite) TestFailedSubmitRollsBackOutboxAndReceipt() {
	s.audit.fail = true

	_, err := s.service.Submit(s.ctx, s.userID, models.Upload{FileName: "till.png", ContentType: "image/png", Data: []byte("x")})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	stats, err := s.receipts.Stats(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Zero(stats.Total)
	s.Empty(s.trailActions())
}

func (s *PostgresTxSuite) TestFailedDeleteRollsBackOutboxAndKeepsReceipt() {
	r, err := s.service.Submit(s.ctx, s.userID, models.Upload{FileName: "till.png", ContentType: "image/png", Data: []byte("x")})
	s.Require().NoError(err)

	s.audit.fail = true
	err = s.service.Delete(s.ctx, s.userID, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.receipts.FindByIDForUser(s.ctx, s.userID, r.ID)
	s.Require().NoError(err)
	s.Equal([]string{string(audit.EventReceiptSubmitted)}, s.trailActions())

	s.audit.fail = false
	s.Require().NoError(s.service.Delete(s.ctx, s.userID, r.ID))
	_, err = s.receipts.FindByIDForUser(s.ctx, s.userID, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ElementsMatch([]string{string(audit.EventReceiptSubmitted), string(audit.EventReceiptDeleted)}, s.trailActions())
}
