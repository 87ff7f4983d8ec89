package models

import (
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// ReceiptResponse is the API view of a receipt. Image bytes are never returned.
type ReceiptResponse struct {
	ID                 id.ReceiptID          `json:"id"`
	FileName           string                `json:"file_name"`
	FileSize           int64                 `json:"file_size"`
	Status             scoring.ReceiptStatus `json:"status"`
	ErrorMessage       string                `json:"error_message,omitempty"`
	MerchantName       *string               `json:"merchant_name"`
	ReceiptDate        *string               `json:"receipt_date"`
	Address            *string               `json:"address"`
	TotalAmount        decimal.NullDecimal   `json:"total_amount"`
	Currency           string                `json:"currency"`
	OverallConfidence  decimal.NullDecimal   `json:"overall_confidence"`
	ConfidenceMerchant decimal.NullDecimal   `json:"confidence_merchant"`
	ConfidenceDate     decimal.NullDecimal   `json:"confidence_date"`
	ConfidenceAddress  decimal.NullDecimal   `json:"confidence_address"`
	ConfidenceTotal    decimal.NullDecimal   `json:"confidence_total"`
	UploadedAt         time.Time             `json:"uploaded_at"`
	ProcessedAt        *time.Time            `json:"processed_at"`
}

func ToResponse(r *Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:                 r.ID,
		FileName:           r.FileName,
		FileSize:           r.FileSize,
		Status:             r.Status,
		ErrorMessage:       r.ErrorMessage,
		MerchantName:       r.MerchantName,
		Address:            r.Address,
		TotalAmount:        r.TotalAmount,
		Currency:           r.Currency,
		OverallConfidence:  r.OverallConfidence,
		ConfidenceMerchant: r.ConfidenceMerchant,
		ConfidenceDate:     r.ConfidenceDate,
		ConfidenceAddress:  r.ConfidenceAddress,
		ConfidenceTotal:    r.ConfidenceTotal,
		UploadedAt:         r.UploadedAt,
		ProcessedAt:        r.ProcessedAt,
	}
	if r.ReceiptDate != nil {
		d := r.ReceiptDate.Format(time.DateOnly)
		resp.ReceiptDate = &d
	}
	return resp
}

// ListResponse is a page of receipts.
type ListResponse struct {
	Receipts []ReceiptResponse `json:"receipts"`
	Count    int               `json:"count"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

// StatsResponse mirrors Stats for the API.
type StatsResponse struct {
	TotalReceipts     int             `json:"total_receipts"`
	CompletedReceipts int             `json:"completed_receipts"`
	PendingReceipts   int             `json:"pending_receipts"`
	FailedReceipts    int             `json:"failed_receipts"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

func ToStatsResponse(s Stats) StatsResponse {
	return StatsResponse{
		TotalReceipts:     s.Total,
		CompletedReceipts: s.Completed,
		PendingReceipts:   s.Pending,
		FailedReceipts:    s.Failed,
		TotalAmount:       s.CompletedAmount.Round(2),
	}
}
