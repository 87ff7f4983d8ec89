package extractor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/receipt/models"
	"kyc/internal/receipt/ports"
)

// StaticExtractor returns the same extraction for every image. It backs demo
// mode when no perception endpoint is configured.
type StaticExtractor struct {
	now func() time.Time
}

func NewStaticExtractor(now func() time.Time) *StaticExtractor {
	if now == nil {
		now = time.Now
	}
	return &StaticExtractor{now: now}
}

func (e *StaticExtractor) Extract(ctx context.Context, _ ports.Image) (models.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return models.Extraction{}, err
	}
	merchant := "Naivas Supermarket"
	today := e.now().UTC().Truncate(24 * time.Hour)
	conf := func(s string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	return models.Extraction{
		MerchantName:       &merchant,
		ReceiptDate:        &today,
		TotalAmount:        conf("2500.00"),
		Currency:           models.DefaultCurrency,
		OverallConfidence:  conf("0.93"),
		ConfidenceMerchant: conf("0.95"),
		ConfidenceDate:     conf("0.92"),
		ConfidenceAddress:  conf("0.88"),
		ConfidenceTotal:    conf("0.97"),
	}, nil
}
