package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kyc/internal/scoring"
	"kyc/internal/scoring/scoringtest"
	"kyc/internal/verification/handler/mocks"
	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/testutil"
)

// =============================================================================
// Verification Handler Test Suite
// =============================================================================
// Justification for unit tests: the handler owns response shapes consumed by
// the dashboard (field names, decimal rendering, history order) and the
// not-found guidance message.

type VerificationHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.userID = id.NewUserID()
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *VerificationHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *VerificationHandlerSuite) get(method, path string) *http.Request {
	return testutil.WithUserID(testutil.NewRequest(s.T(), method, path), s.userID.String())
}

func (s *VerificationHandlerSuite) storedScore() *models.Score {
	res, err := scoring.NewEngine(scoring.DefaultConfig(), nil).Evaluate(s.T().Context(), s.userID, scoringtest.ScenarioB())
	s.Require().NoError(err)
	return models.NewScore(s.userID, res, scoringtest.Base)
}

func (s *VerificationHandlerSuite) TestScore() {
	s.Run("returns stored score", func() {
		s.service.EXPECT().Score(gomock.Any(), s.userID).Return(s.storedScore(), nil)

		rr := testutil.DoRequest(s.router, s.get(http.MethodGet, "/verification/score"))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "final_score", "83.18")
		testutil.AssertJSONContains(s.T(), rr, "is_verified", true)
		testutil.AssertJSONContains(s.T(), rr, "user_id", s.userID.String())
		testutil.AssertJSONContains(s.T(), rr, "unique_merchants", float64(4))
	})

	s.Run("missing score is 404 with guidance", func() {
		s.service.EXPECT().Score(gomock.Any(), s.userID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "No verification score found. Upload receipts to get scored."))

		rr := testutil.DoRequest(s.router, s.get(http.MethodGet, "/verification/score"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
		testutil.AssertJSONContains(s.T(), rr, "error_description", "No verification score found. Upload receipts to get scored.")
	})
}

func (s *VerificationHandlerSuite) TestCalculate() {
	s.service.EXPECT().Recalculate(gomock.Any(), s.userID).Return(s.storedScore(), nil)
	rr := testutil.DoRequest(s.router, s.get(http.MethodPost, "/verification/calculate"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "total_receipts", float64(10))

	s.service.EXPECT().Recalculate(gomock.Any(), s.userID).Return(nil, dErrors.New(dErrors.CodeInternal, "failed to save score"))
	rr = testutil.DoRequest(s.router, s.get(http.MethodPost, "/verification/calculate"))
	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	s.NotContains(rr.Body.String(), "failed to save score")
}

func (s *VerificationHandlerSuite) TestHistory() {
	s.service.EXPECT().History(gomock.Any(), s.userID).Return([]models.HistoryEntry{
		{UserID: s.userID, FinalScore: scoringtest.Dec("34.41"), ReceiptCount: 1, RecordedAt: scoringtest.Base},
		{UserID: s.userID, FinalScore: scoringtest.Dec("83.18"), ReceiptCount: 10, RecordedAt: scoringtest.Base.AddDate(0, 0, 70)},
	}, nil)

	rr := testutil.DoRequest(s.router, s.get(http.MethodGet, "/verification/history"))
	testutil.AssertStatusOK(s.T(), rr)
	points := testutil.UnmarshalResponse[[]map[string]any](s.T(), rr)
	s.Require().Len(*points, 2)
	s.Equal("34.41", (*points)[0]["score"])
	s.Equal(float64(10), (*points)[1]["receipts"])
}

func (s *VerificationHandlerSuite) TestBreakdown() {
	score := s.storedScore()
	records := scoringtest.ScenarioB()
	outlier := scoringtest.Receipt(scoringtest.WithAmount("250000"))
	s.service.EXPECT().Breakdown(gomock.Any(), s.userID).Return(&models.Breakdown{
		Score: score,
		Breakdown: scoring.NewBreakdown(scoring.Result{
			Components: score.Components,
			Weights:    score.Weights,
			FinalScore: score.FinalScore,
			Threshold:  score.Threshold,
			IsVerified: score.IsVerified,
			Metrics:    score.Metrics,
			Trusted:    records,
			Dropped:    []scoring.Dropped{{Receipt: outlier, Reason: "outlier_amount (250000 > 100000)"}},
		}),
	}, nil)

	rr := testutil.DoRequest(s.router, s.get(http.MethodGet, "/verification/breakdown"))
	testutil.AssertStatusOK(s.T(), rr)

	var body struct {
		Components []struct {
			Name         string `json:"name"`
			Contribution string `json:"contribution"`
		} `json:"components"`
		ReceiptsUsed    []map[string]any `json:"receipts_used"`
		ReceiptsDropped []struct {
			Reason string `json:"reason_if_dropped"`
		} `json:"receipts_dropped"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Require().Len(body.Components, 4)
	s.Equal("Document Quality", body.Components[0].Name)
	s.Equal("29.1", body.Components[0].Contribution)
	s.Len(body.ReceiptsUsed, 10)
	s.Require().Len(body.ReceiptsDropped, 1)
	s.Equal("outlier_amount (250000 > 100000)", body.ReceiptsDropped[0].Reason)
}

func (s *VerificationHandlerSuite) TestRequirements() {
	s.service.EXPECT().Requirements(gomock.Any(), s.userID).Return(models.Requirements{
		Threshold:    scoringtest.Dec("75"),
		CurrentScore: scoringtest.Dec("61.5"),
		Status:       id.KYCStatusUnderReview,
	}, nil)

	rr := testutil.DoRequest(s.router, s.get(http.MethodGet, "/verification/requirements"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "under_review")
	testutil.AssertJSONContains(s.T(), rr, "is_verified", false)
	testutil.AssertJSONHasKey(s.T(), rr, "tips")
}
