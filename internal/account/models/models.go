// Package models holds the user account and its KYC fields.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
)

// Account is a registered user. Only the KYC fields are written by scoring.
type Account struct {
	ID               id.UserID
	Email            string
	FullName         string
	KYCScore         decimal.Decimal
	KYCStatus        id.KYCStatus
	VerificationDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAccount returns a pending account with a zero score.
func NewAccount(userID id.UserID, email, fullName string, now time.Time) (*Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	return &Account{
		ID:        userID,
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		KYCScore:  decimal.Zero,
		KYCStatus: id.KYCStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// KYC returns the scoring view of the account state.
func (a *Account) KYC() scoring.AccountKYC {
	return scoring.AccountKYC{
		Score:            a.KYCScore,
		Status:           a.KYCStatus,
		VerificationDate: a.VerificationDate,
	}
}

// ApplyKYC overwrites the KYC fields.
func (a *Account) ApplyKYC(k scoring.AccountKYC, now time.Time) {
	a.KYCScore = k.Score.Round(2)
	a.KYCStatus = k.Status
	a.VerificationDate = k.VerificationDate
	a.UpdatedAt = now
}

// ListFilter narrows an account listing.
type ListFilter struct {
	Status *id.KYCStatus
	Offset int
	Limit  int
}

// StatusCounts is the number of accounts per KYC status.
type StatusCounts struct {
	Total       int
	Verified    int
	UnderReview int
	Pending     int
}
