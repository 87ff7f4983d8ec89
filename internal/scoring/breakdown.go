package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Component names as shown to users.
const (
	ComponentDocumentQuality = "Document Quality"
	ComponentSpendingPattern = "Spending Pattern"
	ComponentConsistency     = "Consistency"
	ComponentDiversity       = "Diversity"
)

// ComponentBreakdown explains one component of the final score.
type ComponentBreakdown struct {
	Name         string
	Score        decimal.Decimal
	Weight       decimal.Decimal
	Contribution decimal.Decimal
	Description  string
	Tip          string
}

// Breakdown is the explainability view of a scoring result.
type Breakdown struct {
	FinalScore      decimal.Decimal
	IsVerified      bool
	Threshold       decimal.Decimal
	Components      []ComponentBreakdown
	Metrics         Metrics
	ReceiptsUsed    []Receipt
	ReceiptsDropped []Dropped
}

// NewBreakdown derives the view from a result. Scores and contributions use
// the stored two-decimal values.
func NewBreakdown(r Result) Breakdown {
	rounded := r.Components.Rounded()
	component := func(name string, score, weight decimal.Decimal, desc, tip string) ComponentBreakdown {
		return ComponentBreakdown{
			Name:         name,
			Score:        score,
			Weight:       weight,
			Contribution: score.Mul(weight).Round(2),
			Description:  desc,
			Tip:          tip,
		}
	}

	return Breakdown{
		FinalScore: r.FinalScore,
		IsVerified: r.IsVerified,
		Threshold:  r.Threshold,
		Components: []ComponentBreakdown{
			component(ComponentDocumentQuality, rounded.DocumentQuality, r.Weights.DocumentQuality,
				"Based on extraction confidence across your receipts",
				"Upload clear, high-quality receipt images"),
			component(ComponentSpendingPattern, rounded.SpendingPattern, r.Weights.SpendingPattern,
				"Based on total spending and transaction frequency",
				"Upload more receipts from regular shopping"),
			component(ComponentConsistency, rounded.Consistency, r.Weights.Consistency,
				"Based on regular transactions over time",
				"Upload receipts regularly over several weeks"),
			component(ComponentDiversity, rounded.Diversity, r.Weights.Diversity,
				"Based on variety of businesses and locations",
				fmt.Sprintf("Shop at different stores (currently %d unique)", r.Metrics.UniqueMerchants)),
		},
		Metrics:         r.Metrics,
		ReceiptsUsed:    r.Trusted,
		ReceiptsDropped: r.Dropped,
	}
}
