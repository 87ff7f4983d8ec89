// Package models holds the platform-wide views served to administrators.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	accountmodels "kyc/internal/account/models"
	receiptmodels "kyc/internal/receipt/models"
)

// Statistics summarizes users, receipts and scores across the platform.
type Statistics struct {
	Users           accountmodels.StatusCounts
	Receipts        receiptmodels.PlatformStats
	AverageKYCScore decimal.Decimal
}

// UserResponse is the HTTP response DTO for an account.
type UserResponse struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	FullName         string          `json:"full_name"`
	KYCStatus        string          `json:"kyc_status"`
	KYCScore         decimal.Decimal `json:"kyc_score"`
	VerificationDate *time.Time      `json:"verification_date"`
	CreatedAt        time.Time       `json:"created_at"`
}

func ToUserResponse(a *accountmodels.Account) UserResponse {
	return UserResponse{
		ID:               a.ID.String(),
		Email:            a.Email,
		FullName:         a.FullName,
		KYCStatus:        a.KYCStatus.String(),
		KYCScore:         a.KYCScore,
		VerificationDate: a.VerificationDate,
		CreatedAt:        a.CreatedAt,
	}
}

// UsersListResponse wraps a page of accounts.
type UsersListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

func ToUsersListResponse(accounts []*accountmodels.Account) UsersListResponse {
	users := make([]UserResponse, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, ToUserResponse(a))
	}
	return UsersListResponse{Users: users, Total: len(users)}
}

type StatisticsResponse struct {
	TotalUsers            int             `json:"total_users"`
	VerifiedUsers         int             `json:"verified_users"`
	PendingUsers          int             `json:"pending_users"`
	UnderReviewUsers      int             `json:"under_review_users"`
	TotalReceipts         int             `json:"total_receipts"`
	ProcessedReceipts     int             `json:"processed_receipts"`
	FailedReceipts        int             `json:"failed_receipts"`
	TotalPlatformSpending decimal.Decimal `json:"total_platform_spending"`
	AverageKYCScore       decimal.Decimal `json:"average_kyc_score"`
}

func ToStatisticsResponse(s Statistics) StatisticsResponse {
	return StatisticsResponse{
		TotalUsers:            s.Users.Total,
		VerifiedUsers:         s.Users.Verified,
		PendingUsers:          s.Users.Pending,
		UnderReviewUsers:      s.Users.UnderReview,
		TotalReceipts:         s.Receipts.Total,
		ProcessedReceipts:     s.Receipts.Completed,
		FailedReceipts:        s.Receipts.Failed,
		TotalPlatformSpending: s.Receipts.TotalSpending,
		AverageKYCScore:       s.AverageKYCScore,
	}
}
