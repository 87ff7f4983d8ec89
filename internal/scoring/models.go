package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	id "kyc/pkg/domain"
)

// ReceiptStatus is the extraction lifecycle of a receipt.
type ReceiptStatus string

const (
	ReceiptPending    ReceiptStatus = "pending"
	ReceiptProcessing ReceiptStatus = "processing"
	ReceiptCompleted  ReceiptStatus = "completed"
	ReceiptFailed     ReceiptStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptPending, ReceiptProcessing, ReceiptCompleted, ReceiptFailed:
		return true
	}
	return false
}

// Receipt is an immutable snapshot of one extracted receipt. Optional fields
// are nil or invalid when the extractor produced nothing for them.
type Receipt struct {
	ID                 id.ReceiptID
	FileName           string
	MerchantName       *string
	ReceiptDate        *time.Time
	Address            *string
	TotalAmount        decimal.NullDecimal
	Currency           string
	OverallConfidence  decimal.NullDecimal
	ConfidenceMerchant decimal.NullDecimal
	ConfidenceDate     decimal.NullDecimal
	ConfidenceAddress  decimal.NullDecimal
	ConfidenceTotal    decimal.NullDecimal
	Status             ReceiptStatus
	UploadedAt         time.Time
}

// Eligible reports whether the receipt may enter admission at all.
func (r Receipt) Eligible() bool {
	return r.Status == ReceiptCompleted && r.TotalAmount.Valid
}

// Dropped is an eligible receipt rejected by admission.
type Dropped struct {
	Receipt Receipt
	Reason  string
}

// Components holds the four component scores, each within [0,100].
type Components struct {
	DocumentQuality decimal.Decimal
	SpendingPattern decimal.Decimal
	Consistency     decimal.Decimal
	Diversity       decimal.Decimal
}

// Rounded returns the components rounded to storage precision.
func (c Components) Rounded() Components {
	return Components{
		DocumentQuality: c.DocumentQuality.Round(2),
		SpendingPattern: c.SpendingPattern.Round(2),
		Consistency:     c.Consistency.Round(2),
		Diversity:       c.Diversity.Round(2),
	}
}

// Metrics summarizes the trusted set.
type Metrics struct {
	TotalReceipts      int
	TotalSpending      decimal.Decimal
	UniqueMerchants    int
	UniqueLocations    int
	DateRangeDays      int
	AverageTransaction decimal.Decimal
}

// Result is the outcome of one scoring run. Components are kept at full
// precision; FinalScore is already rounded.
type Result struct {
	Components Components
	Weights    Weights
	FinalScore decimal.Decimal
	Threshold  decimal.Decimal
	IsVerified bool
	Metrics    Metrics
	Trusted    []Receipt
	Dropped    []Dropped
}
