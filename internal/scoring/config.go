package scoring

import (
	"github.com/shopspring/decimal"

	dErrors "kyc/pkg/domain-errors"
)

// Weights are the per-component multipliers of the final score.
// They are not required to sum to one.
type Weights struct {
	DocumentQuality decimal.Decimal
	SpendingPattern decimal.Decimal
	Consistency     decimal.Decimal
	Diversity       decimal.Decimal
}

// Config carries every tunable of the scoring engine. Scoring functions read
// nothing else.
type Config struct {
	Weights                Weights
	VerificationThreshold  decimal.Decimal
	MinReceiptConfidence   decimal.Decimal
	MaxSingleReceiptAmount decimal.NullDecimal
}

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// DefaultConfig returns the production defaults. Receipts below 0.50
// overall confidence or above 100000 KES are not trusted; set
// MaxSingleReceiptAmount to null to accept any amount.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			DocumentQuality: decimal.RequireFromString("0.30"),
			SpendingPattern: decimal.RequireFromString("0.25"),
			Consistency:     decimal.RequireFromString("0.25"),
			Diversity:       decimal.RequireFromString("0.20"),
		},
		VerificationThreshold:  decimal.RequireFromString("75.00"),
		MinReceiptConfidence:   decimal.RequireFromString("0.50"),
		MaxSingleReceiptAmount: decimal.NewNullDecimal(decimal.NewFromInt(100000)),
	}
}

// Validate rejects configurations that cannot produce a meaningful score.
func (c Config) Validate() error {
	for name, w := range map[string]decimal.Decimal{
		"weight_document_quality": c.Weights.DocumentQuality,
		"weight_spending_pattern": c.Weights.SpendingPattern,
		"weight_consistency":      c.Weights.Consistency,
		"weight_diversity":        c.Weights.Diversity,
	} {
		if w.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, name+" must not be negative")
		}
	}
	if c.VerificationThreshold.IsNegative() || c.VerificationThreshold.GreaterThan(hundred) {
		return dErrors.New(dErrors.CodeValidation, "verification_threshold must be within [0,100]")
	}
	if c.MinReceiptConfidence.IsNegative() || c.MinReceiptConfidence.GreaterThan(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeValidation, "min_receipt_confidence must be within [0,1]")
	}
	if c.MaxSingleReceiptAmount.Valid && !c.MaxSingleReceiptAmount.Decimal.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "max_single_receipt_amount must be positive when set")
	}
	return nil
}
