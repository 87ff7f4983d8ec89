package scoring_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"kyc/internal/scoring"
	st "kyc/internal/scoring/scoringtest"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
)

// =============================================================================
// Aggregator Test Suite
// =============================================================================
// The aggregator combines the component scorers; tests cover the reference
// scenarios, the empty-input law, idempotence and status derivation.

type AggregateSuite struct {
	suite.Suite
	ctx context.Context
	cfg scoring.Config
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateSuite))
}

func (s *AggregateSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = scoring.DefaultConfig()
}

func (s *AggregateSuite) equalDec(want string, got decimal.Decimal) {
	s.T().Helper()
	s.True(st.Dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func (s *AggregateSuite) evaluate(records []scoring.Receipt) scoring.Result {
	trusted, dropped := scoring.Partition(records, s.cfg.MinReceiptConfidence, s.cfg.MaxSingleReceiptAmount)
	res, err := scoring.Aggregate(s.ctx, trusted, dropped, s.cfg)
	s.Require().NoError(err)
	return res
}

// =============================================================================
// Reference Scenarios
// =============================================================================

func (s *AggregateSuite) TestScenarioA() {
	res := s.evaluate(st.ScenarioA())

	s.equalDec("95", res.Components.DocumentQuality)
	s.equalDec("5.335", res.Components.SpendingPattern) // (1.5 + 4) * 0.97
	s.equalDec("0", res.Components.Consistency)
	s.equalDec("22.875", res.Components.Diversity) // (15 + 10) * (0.95 + 0.88) / 2
	s.equalDec("34.41", res.FinalScore)
	s.False(res.IsVerified)
	s.Equal(1, res.Metrics.TotalReceipts)
	s.equalDec("2500", res.Metrics.TotalSpending)
	s.equalDec("2500", res.Metrics.AverageTransaction)
	s.Equal(0, res.Metrics.DateRangeDays)

	s.equalDec("5.34", res.Components.Rounded().SpendingPattern)
	s.equalDec("22.88", res.Components.Rounded().Diversity)
}

func (s *AggregateSuite) TestScenarioB() {
	res := s.evaluate(st.ScenarioB())

	s.equalDec("97", res.Components.DocumentQuality)
	s.equalDec("72.75", res.Components.SpendingPattern) // (45 + 30) * 0.97
	s.equalDec("77.6", res.Components.Consistency)      // (75 + 5) * 0.97
	s.equalDec("82.45", res.Components.Diversity)       // (45 + 40) * 0.97
	s.equalDec("83.18", res.FinalScore)                 // 83.1775
	s.True(res.IsVerified)

	s.Equal(scoring.Metrics{
		TotalReceipts:      10,
		TotalSpending:      res.Metrics.TotalSpending,
		UniqueMerchants:    4,
		UniqueLocations:    3,
		DateRangeDays:      70,
		AverageTransaction: res.Metrics.AverageTransaction,
	}, res.Metrics)
	s.equalDec("80000", res.Metrics.TotalSpending)
	s.equalDec("8000", res.Metrics.AverageTransaction)
}

func (s *AggregateSuite) TestDroppedReceiptsDoNotScore() {
	records := append(st.ScenarioB(), st.Receipt(st.WithAmount("250000")), st.Receipt(st.WithOverall("0.2")))
	res := s.evaluate(records)
	s.Len(res.Trusted, 10)
	s.Len(res.Dropped, 2)
	s.equalDec("83.18", res.FinalScore)
}

// =============================================================================
// Laws
// =============================================================================

func (s *AggregateSuite) TestEmptyInputLaw() {
	s.Run("no receipts", func() {
		res := s.evaluate(nil)
		s.equalDec("0", res.FinalScore)
		s.False(res.IsVerified)
		s.equalDec("0", res.Components.DocumentQuality)
		s.equalDec("0", res.Components.SpendingPattern)
		s.equalDec("0", res.Components.Consistency)
		s.equalDec("0", res.Components.Diversity)
		s.Equal(0, res.Metrics.TotalReceipts)
		s.equalDec("0", res.Metrics.TotalSpending)
		s.equalDec("0", res.Metrics.AverageTransaction)
	})

	s.Run("only dropped receipts", func() {
		res := s.evaluate([]scoring.Receipt{st.Receipt(st.WithoutMerchant())})
		s.equalDec("0", res.FinalScore)
		s.Len(res.Dropped, 1)
	})
}

func (s *AggregateSuite) TestIdempotent() {
	records := st.ScenarioB()
	first := s.evaluate(records)
	second := s.evaluate(records)
	s.True(first.FinalScore.Equal(second.FinalScore))
	s.Equal(first.Components.Rounded(), second.Components.Rounded())
	s.Equal(first.Metrics.DateRangeDays, second.Metrics.DateRangeDays)
}

func (s *AggregateSuite) TestWeightedSumIdentity() {
	for _, records := range [][]scoring.Receipt{st.ScenarioA(), st.ScenarioB()} {
		res := s.evaluate(records)
		s.True(res.FinalScore.Equal(scoring.WeightedSum(res.Components, res.Weights).Round(2)))
	}
}

func (s *AggregateSuite) TestCustomWeights() {
	s.cfg.Weights = scoring.Weights{
		DocumentQuality: st.Dec("1"),
		SpendingPattern: decimal.Zero,
		Consistency:     decimal.Zero,
		Diversity:       decimal.Zero,
	}
	res := s.evaluate(st.ScenarioB())
	s.equalDec("97", res.FinalScore)
}

func (s *AggregateSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scoring.Aggregate(ctx, st.ScenarioB(), nil, s.cfg)
	s.ErrorIs(err, context.Canceled)
}

// =============================================================================
// Status Derivation
// =============================================================================

func (s *AggregateSuite) TestDeriveStatus() {
	now := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.AddDate(0, -1, 0)
	result := func(final string) scoring.Result {
		f := st.Dec(final)
		return scoring.Result{FinalScore: f, IsVerified: f.GreaterThanOrEqual(s.cfg.VerificationThreshold)}
	}

	s.Run("first verification stamps the date", func() {
		next := scoring.DeriveStatus(scoring.AccountKYC{Status: id.KYCStatusPending}, result("75.00"), now)
		s.Equal(id.KYCStatusVerified, next.Status)
		s.Require().NotNil(next.VerificationDate)
		s.Equal(now, *next.VerificationDate)
	})

	s.Run("repeat verification keeps the original date", func() {
		next := scoring.DeriveStatus(scoring.AccountKYC{Status: id.KYCStatusVerified, VerificationDate: &earlier}, result("90"), now)
		s.Equal(earlier, *next.VerificationDate)
	})

	s.Run("sixty to threshold is under review", func() {
		s.Equal(id.KYCStatusUnderReview, scoring.DeriveStatus(scoring.AccountKYC{}, result("60.00"), now).Status)
		s.Equal(id.KYCStatusUnderReview, scoring.DeriveStatus(scoring.AccountKYC{}, result("74.99"), now).Status)
	})

	s.Run("below sixty is pending", func() {
		next := scoring.DeriveStatus(scoring.AccountKYC{}, result("59.99"), now)
		s.Equal(id.KYCStatusPending, next.Status)
		s.Nil(next.VerificationDate)
	})

	s.Run("verified account can regress but keeps its date", func() {
		next := scoring.DeriveStatus(scoring.AccountKYC{Status: id.KYCStatusVerified, VerificationDate: &earlier}, result("0"), now)
		s.Equal(id.KYCStatusPending, next.Status)
		s.Equal(&earlier, next.VerificationDate)
		s.equalDec("0", next.Score)
	})
}

// =============================================================================
// Breakdown & Engine
// =============================================================================

func (s *AggregateSuite) TestBreakdown() {
	b := scoring.NewBreakdown(s.evaluate(st.ScenarioB()))

	s.Require().Len(b.Components, 4)
	s.Equal(scoring.ComponentDocumentQuality, b.Components[0].Name)
	s.equalDec("29.1", b.Components[0].Contribution)
	s.equalDec("18.19", b.Components[1].Contribution)
	s.equalDec("19.4", b.Components[2].Contribution)
	s.equalDec("16.49", b.Components[3].Contribution)
	s.Contains(b.Components[3].Tip, "currently 4 unique")
	s.Len(b.ReceiptsUsed, 10)
	s.Empty(b.ReceiptsDropped)
	s.equalDec("83.18", b.FinalScore)
}

func (s *AggregateSuite) TestEngineLogsDrops() {
	var buf bytes.Buffer
	engine := scoring.NewEngine(s.cfg, slog.New(slog.NewTextHandler(&buf, nil)))
	s.Equal(s.cfg, engine.Config())

	records := append(st.ScenarioA(), st.Receipt(st.WithOverall("0.1")))
	res, err := engine.Evaluate(s.ctx, id.NewUserID(), records)
	s.Require().NoError(err)
	s.Len(res.Dropped, 1)
	s.Contains(buf.String(), "receipts partitioned")
	s.Contains(buf.String(), "trusted=1")
	s.Contains(buf.String(), "low_confidence (0.100 < 0.500)")
}

func (s *AggregateSuite) TestDefaultAdmissionLimits() {
	cfg := scoring.DefaultConfig()
	s.Equal("0.5", cfg.MinReceiptConfidence.String())
	s.Require().True(cfg.MaxSingleReceiptAmount.Valid)
	s.Equal("100000", cfg.MaxSingleReceiptAmount.Decimal.String())

	records := []scoring.Receipt{
		st.Receipt(st.WithMerchant("Toyota Kenya"), st.WithAmount("150000")),
		st.Receipt(st.WithAmount("2500"), st.WithUploadedAt(st.Base.Add(time.Hour))),
	}

	s.Run("default cap drops a single large receipt", func() {
		trusted, dropped := scoring.Partition(records, cfg.MinReceiptConfidence, cfg.MaxSingleReceiptAmount)
		s.Len(trusted, 1)
		s.Require().Len(dropped, 1)
		s.Equal("outlier_amount (150000 > 100000)", dropped[0].Reason)
	})

	s.Run("null cap accepts any amount", func() {
		trusted, dropped := scoring.Partition(records, cfg.MinReceiptConfidence, decimal.NullDecimal{})
		s.Len(trusted, 2)
		s.Empty(dropped)
	})
}

func (s *AggregateSuite) TestConfigValidate() {
	s.NoError(scoring.DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*scoring.Config)
	}{
		{"negative weight", func(c *scoring.Config) { c.Weights.Diversity = st.Dec("-0.1") }},
		{"threshold above 100", func(c *scoring.Config) { c.VerificationThreshold = st.Dec("101") }},
		{"confidence above 1", func(c *scoring.Config) { c.MinReceiptConfidence = st.Dec("1.5") }},
		{"non-positive maximum", func(c *scoring.Config) { c.MaxSingleReceiptAmount = st.Null("0") }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			cfg := scoring.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			s.Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
