package ports

import (
	"context"

	"kyc/internal/receipt/models"
	id "kyc/pkg/domain"
)

// Extractor turns a receipt image into typed fields with per-field
// confidences. Any error marks the receipt failed.
type Extractor interface {
	Extract(ctx context.Context, image Image) (models.Extraction, error)
}

// Image is the payload handed to an Extractor.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Recalculator rescores a user after their receipt set changed.
type Recalculator interface {
	RecalculateUser(ctx context.Context, userID id.UserID) error
}

// RecalculatorFunc adapts a function to Recalculator.
type RecalculatorFunc func(ctx context.Context, userID id.UserID) error

func (f RecalculatorFunc) RecalculateUser(ctx context.Context, userID id.UserID) error {
	return f(ctx, userID)
}
