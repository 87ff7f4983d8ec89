//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc/internal/account/models"
	"kyc/internal/scoring"
	"kyc/internal/scoring/scoringtest"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
	"kyc/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background()))
}

func (s *PostgresStoreSuite) TestAccountLifecycle() {
	ctx := context.Background()
	a, err := models.NewAccount(id.NewUserID(), "mwangi@example.com", "Mwangi", scoringtest.Base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, a))
	s.ErrorIs(s.store.Create(ctx, a), sentinel.ErrConflict)

	verifiedAt := scoringtest.Base.Add(time.Hour)
	s.Require().NoError(s.store.UpdateKYC(ctx, a.ID, scoring.AccountKYC{
		Score:            scoringtest.Dec("77.5"),
		Status:           id.KYCStatusVerified,
		VerificationDate: &verifiedAt,
	}, verifiedAt))

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(id.KYCStatusVerified, found.KYCStatus)
	s.True(found.KYCScore.Equal(scoringtest.Dec("77.50")))
	s.Require().NotNil(found.VerificationDate)
	s.True(found.VerificationDate.Equal(verifiedAt))

	_, err = s.store.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.UpdateKYC(ctx, id.NewUserID(), scoring.AccountKYC{Status: id.KYCStatusPending}, verifiedAt), sentinel.ErrNotFound)

	verified := id.KYCStatusVerified
	list, err := s.store.List(ctx, models.ListFilter{Status: &verified, Limit: 10})
	s.Require().NoError(err)
	s.Len(list, 1)

	counts, err := s.store.StatusCounts(ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusCounts{Total: 1, Verified: 1}, counts)
}
