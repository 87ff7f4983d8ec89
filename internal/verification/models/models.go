// Package models holds stored verification scores and their history.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// Score is the persisted outcome of the latest recalculation for a user.
// All decimals are rounded to two places.
type Score struct {
	UserID       id.UserID
	Components   scoring.Components
	Weights      scoring.Weights
	FinalScore   decimal.Decimal
	Threshold    decimal.Decimal
	IsVerified   bool
	Metrics      scoring.Metrics
	CalculatedAt time.Time
}

// NewScore rounds a scoring result to storage precision.
func NewScore(userID id.UserID, r scoring.Result, now time.Time) *Score {
	m := r.Metrics
	m.TotalSpending = m.TotalSpending.Round(2)
	m.AverageTransaction = m.AverageTransaction.Round(2)
	return &Score{
		UserID:       userID,
		Components:   r.Components.Rounded(),
		Weights:      r.Weights,
		FinalScore:   r.FinalScore.Round(2),
		Threshold:    r.Threshold,
		IsVerified:   r.IsVerified,
		Metrics:      m,
		CalculatedAt: now,
	}
}

// HistoryEntry is one append-only record of a recalculation.
type HistoryEntry struct {
	UserID       id.UserID
	FinalScore   decimal.Decimal
	ReceiptCount int
	RecordedAt   time.Time
}

// Breakdown explains the stored score using the live receipt partition.
type Breakdown struct {
	Score     *Score
	Breakdown scoring.Breakdown
}

// Requirements is the guidance shown to users working towards verification.
type Requirements struct {
	Threshold    decimal.Decimal
	CurrentScore decimal.Decimal
	Status       id.KYCStatus
	IsVerified   bool
}

// Outcome is the result of one recalculation.
type Outcome struct {
	Score    *Score
	Previous id.KYCStatus
	Current  id.KYCStatus
}

// StatusChanged reports whether the recalculation moved the account status.
func (o Outcome) StatusChanged() bool {
	return o.Previous != "" && o.Previous != o.Current
}
