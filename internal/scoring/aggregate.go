package scoring

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	id "kyc/pkg/domain"
)

// underReviewFloor is the final score at which an unverified account moves to review.
var underReviewFloor = decimal.NewFromInt(60)

// Aggregate scores the trusted set. The component scorers run concurrently
// over the same snapshot; the only error is context cancellation.
func Aggregate(ctx context.Context, trusted []Receipt, dropped []Dropped, cfg Config) (Result, error) {
	result := Result{
		Weights:   cfg.Weights,
		Threshold: cfg.VerificationThreshold,
		Trusted:   trusted,
		Dropped:   dropped,
	}
	if len(trusted) == 0 {
		result.Components = zeroComponents()
		result.FinalScore = decimal.Zero
		result.Metrics = Metrics{TotalSpending: decimal.Zero, AverageTransaction: decimal.Zero}
		return result, nil
	}

	var c Components
	g, gctx := errgroup.WithContext(ctx)
	run := func(dst *decimal.Decimal, scorer func([]Receipt) decimal.Decimal) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			*dst = scorer(trusted)
			return nil
		})
	}
	run(&c.DocumentQuality, DocumentQuality)
	run(&c.SpendingPattern, SpendingPattern)
	run(&c.Consistency, Consistency)
	run(&c.Diversity, Diversity)
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result.Components = c
	result.FinalScore = WeightedSum(c, cfg.Weights).Round(2)
	result.IsVerified = result.FinalScore.GreaterThanOrEqual(cfg.VerificationThreshold)
	result.Metrics = summarize(trusted)
	return result, nil
}

// WeightedSum is the unrounded final score.
func WeightedSum(c Components, w Weights) decimal.Decimal {
	return c.DocumentQuality.Mul(w.DocumentQuality).
		Add(c.SpendingPattern.Mul(w.SpendingPattern)).
		Add(c.Consistency.Mul(w.Consistency)).
		Add(c.Diversity.Mul(w.Diversity))
}

func zeroComponents() Components {
	return Components{
		DocumentQuality: decimal.Zero,
		SpendingPattern: decimal.Zero,
		Consistency:     decimal.Zero,
		Diversity:       decimal.Zero,
	}
}

func summarize(trusted []Receipt) Metrics {
	total := totalSpending(trusted)
	days, _ := dateRange(trusted)
	return Metrics{
		TotalReceipts:      len(trusted),
		TotalSpending:      total,
		UniqueMerchants:    uniqueMerchants(trusted),
		UniqueLocations:    uniqueLocations(trusted),
		DateRangeDays:      days,
		AverageTransaction: total.Div(decimal.NewFromInt(int64(len(trusted)))),
	}
}

// AccountKYC is the KYC state kept on the user account.
type AccountKYC struct {
	Score            decimal.Decimal
	Status           id.KYCStatus
	VerificationDate *time.Time
}

// DeriveStatus computes the next account state from a scoring result.
// The verification date is set the first time the account verifies and is
// never cleared; the status itself follows the latest score.
func DeriveStatus(prev AccountKYC, result Result, now time.Time) AccountKYC {
	next := AccountKYC{
		Score:            result.FinalScore,
		VerificationDate: prev.VerificationDate,
	}
	switch {
	case result.IsVerified:
		next.Status = id.KYCStatusVerified
		if next.VerificationDate == nil {
			t := now
			next.VerificationDate = &t
		}
	case result.FinalScore.GreaterThanOrEqual(underReviewFloor):
		next.Status = id.KYCStatusUnderReview
	default:
		next.Status = id.KYCStatusPending
	}
	return next
}
