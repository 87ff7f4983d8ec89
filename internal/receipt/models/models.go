package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// Receipt is the persisted receipt record including the uploaded image.
type Receipt struct {
	ID          id.ReceiptID
	UserID      id.UserID
	FileName    string
	ContentType string
	FileSize    int64
	Image       []byte

	Status       scoring.ReceiptStatus
	ErrorMessage string

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

	UploadedAt  time.Time
	ProcessedAt *time.Time
}

// DefaultCurrency applies when the extractor does not report one.
const DefaultCurrency = "KES"

// NewReceipt creates a pending receipt for an accepted upload.
func NewReceipt(userID id.UserID, upload Upload, now time.Time) *Receipt {
	return &Receipt{
		ID:          id.NewReceiptID(),
		UserID:      userID,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		FileSize:    int64(len(upload.Data)),
		Image:       upload.Data,
		Status:      scoring.ReceiptPending,
		Currency:    DefaultCurrency,
		UploadedAt:  now,
	}
}

// Snapshot returns the immutable scoring view of the record.
func (r *Receipt) Snapshot() scoring.Receipt {
	return scoring.Receipt{
		ID:                 r.ID,
		FileName:           r.FileName,
		MerchantName:       r.MerchantName,
		ReceiptDate:        r.ReceiptDate,
		Address:            r.Address,
		TotalAmount:        r.TotalAmount,
		Currency:           r.Currency,
		OverallConfidence:  r.OverallConfidence,
		ConfidenceMerchant: r.ConfidenceMerchant,
		ConfidenceDate:     r.ConfidenceDate,
		ConfidenceAddress:  r.ConfidenceAddress,
		ConfidenceTotal:    r.ConfidenceTotal,
		Status:             r.Status,
		UploadedAt:         r.UploadedAt,
	}
}

// MarkProcessing moves the receipt into extraction and clears a prior failure.
func (r *Receipt) MarkProcessing() {
	r.Status = scoring.ReceiptProcessing
	r.ErrorMessage = ""
}

// Complete stores extracted fields and marks the receipt completed.
func (r *Receipt) Complete(ext Extraction, now time.Time) {
	r.MerchantName = ext.MerchantName
	r.ReceiptDate = ext.ReceiptDate
	r.Address = ext.Address
	r.TotalAmount = ext.TotalAmount
	r.Currency = ext.Currency
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	r.OverallConfidence = ext.OverallConfidence
	r.ConfidenceMerchant = ext.ConfidenceMerchant
	r.ConfidenceDate = ext.ConfidenceDate
	r.ConfidenceAddress = ext.ConfidenceAddress
	r.ConfidenceTotal = ext.ConfidenceTotal
	r.Status = scoring.ReceiptCompleted
	r.ErrorMessage = ""
	r.ProcessedAt = &now
}

// Fail records an extraction failure.
func (r *Receipt) Fail(message string, now time.Time) {
	r.Status = scoring.ReceiptFailed
	r.ErrorMessage = message
	r.ProcessedAt = &now
}

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extension returns the lower-cased file extension without the dot.
func (u Upload) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.FileName)), ".")
}

// Extraction is the typed output of the perception collaborator.
type Extraction struct {
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
}

// ListFilter selects a page of a user's receipts.
type ListFilter struct {
	Status *scoring.ReceiptStatus
	Offset int
	Limit  int
}

// Stats summarizes one user's receipts.
type Stats struct {
	Total           int
	Completed       int
	Pending         int
	Processing      int
	Failed          int
	CompletedAmount decimal.Decimal
}

// PlatformStats summarizes receipts across all users.
type PlatformStats struct {
	Total         int
	Completed     int
	Failed        int
	TotalSpending decimal.Decimal
}
