package scoring_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"kyc/internal/scoring"
	st "kyc/internal/scoring/scoringtest"
)

// =============================================================================
// Component Scorer Test Suite
// =============================================================================
// Each scorer is pure; tests pin tier boundaries, multiplier fallbacks and caps.

type ComponentSuite struct {
	suite.Suite
}

func TestComponentSuite(t *testing.T) {
	suite.Run(t, new(ComponentSuite))
}

func (s *ComponentSuite) equalDec(want string, got decimal.Decimal) {
	s.T().Helper()
	s.True(st.Dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func (s *ComponentSuite) TestDocumentQuality() {
	s.Run("empty set scores zero", func() {
		s.equalDec("0", scoring.DocumentQuality(nil))
	})

	s.Run("no confidences scores zero", func() {
		s.equalDec("0", scoring.DocumentQuality([]scoring.Receipt{st.Receipt(st.WithoutOverall())}))
	})

	s.Run("mean of present confidences", func() {
		rs := []scoring.Receipt{
			st.Receipt(st.WithOverall("0.90")),
			st.Receipt(st.WithOverall("0.80")),
			st.Receipt(st.WithoutOverall()),
		}
		s.equalDec("85", scoring.DocumentQuality(rs))
	})

	s.Run("perfect confidence caps at 100", func() {
		s.equalDec("100", scoring.DocumentQuality([]scoring.Receipt{st.Receipt(st.WithOverall("1"))}))
	})
}

func (s *ComponentSuite) TestSpendingPattern() {
	s.Run("empty set scores zero", func() {
		s.equalDec("0", scoring.SpendingPattern(nil))
	})

	s.Run("below tiers is linear in amount and count", func() {
		// 10000/1000*0.6 = 6, 3*4 = 12, (6+12)*0.9
		rs := []scoring.Receipt{
			st.Receipt(st.WithAmount("5000"), st.WithConfidences("", "", "", "0.9")),
			st.Receipt(st.WithAmount("3000"), st.WithConfidences("", "", "", "0.9")),
			st.Receipt(st.WithAmount("2000"), st.WithConfidences("", "", "", "0.9")),
		}
		s.equalDec("16.2", scoring.SpendingPattern(rs))
	})

	s.Run("tier boundaries are inclusive", func() {
		tests := []struct {
			amount string
			want   string
		}{
			{"25000", "34"},  // 30 + 4
			{"50000", "49"},  // 45 + 4
			{"100000", "64"}, // 60 + 4
		}
		for _, tt := range tests {
			rs := []scoring.Receipt{st.Receipt(st.WithAmount(tt.amount), st.WithConfidences("", "", "", "1"))}
			s.equalDec(tt.want, scoring.SpendingPattern(rs))
		}
	})

	s.Run("frequency tiers", func() {
		tests := []struct {
			count int
			want  string
		}{
			{4, "16"},
			{5, "20"},
			{10, "30"},
			{19, "30"},
			{20, "40"},
		}
		for _, tt := range tests {
			var rs []scoring.Receipt
			for range tt.count {
				rs = append(rs, st.Receipt(st.WithAmount("0"), st.WithConfidences("", "", "", "1")))
			}
			// Zero amounts give zero weight, so the multiplier falls back to 0.5.
			s.equalDec(st.Dec(tt.want).Mul(st.Dec("0.5")).String(), scoring.SpendingPattern(rs))
		}
	})

	s.Run("multiplier is weighted by amount", func() {
		// total 4000 -> 2.4, count 2 -> 8; weight (3000*1.0 + 1000*0.6)/4000 = 0.9
		rs := []scoring.Receipt{
			st.Receipt(st.WithAmount("3000"), st.WithConfidences("", "", "", "1.0")),
			st.Receipt(st.WithAmount("1000"), st.WithConfidences("", "", "", "0.6")),
		}
		s.equalDec("9.36", scoring.SpendingPattern(rs))
	})

	s.Run("missing total confidence falls back to half", func() {
		rs := []scoring.Receipt{st.Receipt(st.WithAmount("2500"), st.WithConfidences("", "", "", ""))}
		s.equalDec("2.75", scoring.SpendingPattern(rs))
	})

	s.Run("caps at 100", func() {
		var rs []scoring.Receipt
		for range 20 {
			rs = append(rs, st.Receipt(st.WithAmount("10000"), st.WithConfidences("", "", "", "1")))
		}
		s.equalDec("100", scoring.SpendingPattern(rs))
	})
}

func (s *ComponentSuite) TestConsistency() {
	s.Run("fewer than two dated receipts scores zero", func() {
		s.equalDec("0", scoring.Consistency([]scoring.Receipt{st.Receipt()}))
		s.equalDec("0", scoring.Consistency([]scoring.Receipt{st.Receipt(st.WithDay(0)), st.Receipt(st.WithoutDate())}))
	})

	s.Run("zero day range scores zero", func() {
		s.equalDec("0", scoring.Consistency([]scoring.Receipt{st.Receipt(st.WithDay(3)), st.Receipt(st.WithDay(3))}))
	})

	s.Run("weekly cadence tiers", func() {
		tests := []struct {
			name string
			days []int
			want string
		}{
			// 2 receipts over 7 days -> 2/week -> 100
			{"twice weekly", []int{0, 7}, "100"},
			// 2 receipts over 14 days -> 1/week -> 75
			{"weekly", []int{0, 14}, "75"},
			// 2 receipts over 28 days -> 0.5/week -> 50
			{"fortnightly", []int{0, 28}, "50"},
		}
		for _, tt := range tests {
			var rs []scoring.Receipt
			for _, d := range tt.days {
				rs = append(rs, st.Receipt(st.WithDay(d), st.WithConfidences("", "1", "", "")))
			}
			s.equalDec(tt.want, scoring.Consistency(rs))
		}
	})

	s.Run("sparse cadence is linear and uses total trusted count", func() {
		// 3 receipts, one undated, over 100 days: 21/100 = 0.21/week -> 10.5, +10 span bonus
		rs := []scoring.Receipt{
			st.Receipt(st.WithDay(0), st.WithConfidences("", "0.8", "", "")),
			st.Receipt(st.WithDay(100), st.WithConfidences("", "0.8", "", "")),
			st.Receipt(st.WithoutDate(), st.WithConfidences("", "0.8", "", "")),
		}
		s.equalDec("16.4", scoring.Consistency(rs))
	})

	s.Run("sixty day span earns five points", func() {
		// 2 over 60 days: 14/60 -> 11.666..., +5, x1
		rs := []scoring.Receipt{
			st.Receipt(st.WithDay(0), st.WithConfidences("", "1", "", "")),
			st.Receipt(st.WithDay(60), st.WithConfidences("", "1", "", "")),
		}
		s.equalDec("16.67", scoring.Consistency(rs).Round(2))
	})

	s.Run("bonus is capped at 100", func() {
		var rs []scoring.Receipt
		for d := 0; d <= 91; d += 3 {
			rs = append(rs, st.Receipt(st.WithDay(d), st.WithConfidences("", "1", "", "")))
		}
		s.equalDec("100", scoring.Consistency(rs))
	})

	s.Run("date confidence below half is floored", func() {
		rs := []scoring.Receipt{
			st.Receipt(st.WithDay(0), st.WithConfidences("", "0.2", "", "")),
			st.Receipt(st.WithDay(7), st.WithConfidences("", "0.2", "", "")),
		}
		s.equalDec("50", scoring.Consistency(rs))
	})

	s.Run("missing date confidence defaults to half", func() {
		rs := []scoring.Receipt{
			st.Receipt(st.WithDay(0), st.WithConfidences("", "", "", "")),
			st.Receipt(st.WithDay(14), st.WithConfidences("", "", "", "")),
		}
		s.equalDec("37.5", scoring.Consistency(rs))
	})
}

func (s *ComponentSuite) TestDiversity() {
	s.Run("empty set scores zero", func() {
		s.equalDec("0", scoring.Diversity(nil))
	})

	s.Run("single merchant without address gets base points", func() {
		rs := []scoring.Receipt{st.Receipt(st.WithConfidences("1", "", "1", ""))}
		s.equalDec("25", scoring.Diversity(rs))
	})

	s.Run("merchant and location tiers", func() {
		names := []string{"A", "B", "C", "D", "E"}
		addrs := []string{"X", "Y", "Z"}
		tests := []struct {
			merchants int
			addresses int
			want      string
		}{
			{2, 2, "55"},
			{3, 1, "55"},
			{5, 3, "100"},
			{4, 2, "70"},
		}
		for _, tt := range tests {
			var rs []scoring.Receipt
			for i := range 5 {
				rs = append(rs, st.Receipt(
					st.WithMerchant(names[i%tt.merchants]),
					st.WithAddress(addrs[i%tt.addresses]),
					st.WithConfidences("1", "", "1", ""),
				))
			}
			s.equalDec(tt.want, scoring.Diversity(rs))
		}
	})

	s.Run("whitespace variants count once", func() {
		rs := []scoring.Receipt{
			st.Receipt(st.WithMerchant("Naivas"), st.WithConfidences("1", "", "1", "")),
			st.Receipt(st.WithMerchant(" Naivas "), st.WithConfidences("1", "", "1", "")),
		}
		s.equalDec("25", scoring.Diversity(rs))
	})

	s.Run("missing field confidences default to half", func() {
		rs := []scoring.Receipt{st.Receipt(st.WithConfidences("", "", "", ""))}
		s.equalDec("12.5", scoring.Diversity(rs))
	})

	s.Run("multiplier averages merchant and address confidence", func() {
		rs := []scoring.Receipt{st.Receipt(st.WithConfidences("0.9", "", "0.7", ""))}
		s.equalDec("20", scoring.Diversity(rs))
	})
}
