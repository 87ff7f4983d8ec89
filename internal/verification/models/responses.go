package models

import (
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// ScoreResponse is the API view of a stored score.
type ScoreResponse struct {
	UserID                   id.UserID       `json:"user_id"`
	DocumentQualityScore     decimal.Decimal `json:"document_quality_score"`
	SpendingPatternScore     decimal.Decimal `json:"spending_pattern_score"`
	ConsistencyScore         decimal.Decimal `json:"consistency_score"`
	DiversityScore           decimal.Decimal `json:"diversity_score"`
	FinalScore               decimal.Decimal `json:"final_score"`
	IsVerified               bool            `json:"is_verified"`
	VerificationThreshold    decimal.Decimal `json:"verification_threshold"`
	TotalReceipts            int             `json:"total_receipts"`
	TotalSpending            decimal.Decimal `json:"total_spending"`
	UniqueMerchants          int             `json:"unique_merchants"`
	UniqueLocations          int             `json:"unique_locations"`
	DateRangeDays            int             `json:"date_range_days"`
	AverageTransactionAmount decimal.Decimal `json:"average_transaction_amount"`
	CalculatedAt             time.Time       `json:"calculated_at"`
}

func ToScoreResponse(s *Score) ScoreResponse {
	return ScoreResponse{
		UserID:                   s.UserID,
		DocumentQualityScore:     s.Components.DocumentQuality,
		SpendingPatternScore:     s.Components.SpendingPattern,
		ConsistencyScore:         s.Components.Consistency,
		DiversityScore:           s.Components.Diversity,
		FinalScore:               s.FinalScore,
		IsVerified:               s.IsVerified,
		VerificationThreshold:    s.Threshold,
		TotalReceipts:            s.Metrics.TotalReceipts,
		TotalSpending:            s.Metrics.TotalSpending,
		UniqueMerchants:          s.Metrics.UniqueMerchants,
		UniqueLocations:          s.Metrics.UniqueLocations,
		DateRangeDays:            s.Metrics.DateRangeDays,
		AverageTransactionAmount: s.Metrics.AverageTransaction,
		CalculatedAt:             s.CalculatedAt,
	}
}

// HistoryPoint is one entry of the score history chart.
type HistoryPoint struct {
	Score    decimal.Decimal `json:"score"`
	Receipts int             `json:"receipts"`
	Date     time.Time       `json:"date"`
}

func ToHistoryResponse(entries []HistoryEntry) []HistoryPoint {
	out := make([]HistoryPoint, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryPoint{Score: e.FinalScore, Receipts: e.ReceiptCount, Date: e.RecordedAt})
	}
	return out
}

type ComponentResponse struct {
	Name         string          `json:"name"`
	Score        decimal.Decimal `json:"score"`
	Weight       decimal.Decimal `json:"weight"`
	Contribution decimal.Decimal `json:"contribution"`
	Description  string          `json:"description"`
	Tip          string          `json:"tip"`
}

type MetricsResponse struct {
	TotalReceipts            int             `json:"total_receipts"`
	TotalSpending            decimal.Decimal `json:"total_spending"`
	UniqueMerchants          int             `json:"unique_merchants"`
	UniqueLocations          int             `json:"unique_locations"`
	DateRangeDays            int             `json:"date_range_days"`
	AverageTransactionAmount decimal.Decimal `json:"average_transaction_amount"`
}

type UsedReceipt struct {
	ID                id.ReceiptID        `json:"id"`
	FileName          string              `json:"file_name"`
	MerchantName      *string             `json:"merchant_name"`
	ReceiptDate       *string             `json:"receipt_date"`
	TotalAmount       decimal.NullDecimal `json:"total_amount"`
	Currency          string              `json:"currency"`
	OverallConfidence decimal.Decimal     `json:"overall_confidence"`
}

type DroppedReceipt struct {
	ID                id.ReceiptID        `json:"id"`
	FileName          string              `json:"file_name"`
	TotalAmount       decimal.NullDecimal `json:"total_amount"`
	Currency          string              `json:"currency"`
	OverallConfidence decimal.Decimal     `json:"overall_confidence"`
	Reason            string              `json:"reason_if_dropped"`
}

// BreakdownResponse is the explainability view returned by the API.
type BreakdownResponse struct {
	FinalScore            decimal.Decimal     `json:"final_score"`
	IsVerified            bool                `json:"is_verified"`
	VerificationThreshold decimal.Decimal     `json:"verification_threshold"`
	Components            []ComponentResponse `json:"components"`
	Metrics               MetricsResponse     `json:"metrics"`
	ReceiptsUsed          []UsedReceipt       `json:"receipts_used"`
	ReceiptsDropped       []DroppedReceipt    `json:"receipts_dropped"`
}

// ToBreakdownResponse renders the stored score figures next to the live
// receipt partition.
func ToBreakdownResponse(b *Breakdown) BreakdownResponse {
	resp := BreakdownResponse{
		FinalScore:            b.Score.FinalScore,
		IsVerified:            b.Score.IsVerified,
		VerificationThreshold: b.Score.Threshold,
		Components:            make([]ComponentResponse, 0, len(b.Breakdown.Components)),
		Metrics: MetricsResponse{
			TotalReceipts:            b.Score.Metrics.TotalReceipts,
			TotalSpending:            b.Score.Metrics.TotalSpending,
			UniqueMerchants:          b.Score.Metrics.UniqueMerchants,
			UniqueLocations:          b.Score.Metrics.UniqueLocations,
			DateRangeDays:            b.Score.Metrics.DateRangeDays,
			AverageTransactionAmount: b.Score.Metrics.AverageTransaction,
		},
		ReceiptsUsed:    make([]UsedReceipt, 0, len(b.Breakdown.ReceiptsUsed)),
		ReceiptsDropped: make([]DroppedReceipt, 0, len(b.Breakdown.ReceiptsDropped)),
	}
	for _, c := range b.Breakdown.Components {
		resp.Components = append(resp.Components, ComponentResponse{
			Name:         c.Name,
			Score:        c.Score,
			Weight:       c.Weight,
			Contribution: c.Contribution,
			Description:  c.Description,
			Tip:          c.Tip,
		})
	}
	for _, r := range b.Breakdown.ReceiptsUsed {
		used := UsedReceipt{
			ID:                r.ID,
			FileName:          r.FileName,
			MerchantName:      r.MerchantName,
			TotalAmount:       r.TotalAmount,
			Currency:          r.Currency,
			OverallConfidence: confidenceOrZero(r),
		}
		if r.ReceiptDate != nil {
			d := r.ReceiptDate.Format(time.DateOnly)
			used.ReceiptDate = &d
		}
		resp.ReceiptsUsed = append(resp.ReceiptsUsed, used)
	}
	for _, d := range b.Breakdown.ReceiptsDropped {
		resp.ReceiptsDropped = append(resp.ReceiptsDropped, DroppedReceipt{
			ID:                d.Receipt.ID,
			FileName:          d.Receipt.FileName,
			TotalAmount:       d.Receipt.TotalAmount,
			Currency:          d.Receipt.Currency,
			OverallConfidence: confidenceOrZero(d.Receipt),
			Reason:            d.Reason,
		})
	}
	return resp
}

func confidenceOrZero(r scoring.Receipt) decimal.Decimal {
	if r.OverallConfidence.Valid {
		return r.OverallConfidence.Decimal
	}
	return decimal.Zero
}

// RequirementsResponse is the guidance payload for GET /verification/requirements.
type RequirementsResponse struct {
	VerificationThreshold decimal.Decimal   `json:"verification_threshold"`
	CurrentScore          decimal.Decimal   `json:"current_score"`
	Status                id.KYCStatus      `json:"status"`
	IsVerified            bool              `json:"is_verified"`
	Requirements          map[string]string `json:"requirements"`
	Tips                  []string          `json:"tips"`
}

func ToRequirementsResponse(r Requirements) RequirementsResponse {
	return RequirementsResponse{
		VerificationThreshold: r.Threshold,
		CurrentScore:          r.CurrentScore,
		Status:                r.Status,
		IsVerified:            r.IsVerified,
		Requirements: map[string]string{
			"minimum_score":        r.Threshold.StringFixed(0),
			"recommended_receipts": "10+ receipts for accurate scoring",
			"timeframe":            "Receipts should span at least 2-4 weeks",
			"diversity":            "Upload receipts from 3+ different businesses",
			"quality":              "Ensure receipt images are clear and readable",
		},
		Tips: []string{
			"Upload clear, well-lit photos of receipts",
			"Include receipts from different stores",
			"Upload receipts regularly over several weeks",
			"Ensure date, amount, and store name are visible",
			"Minimum 5 receipts recommended, 10+ for best results",
		},
	}
}
