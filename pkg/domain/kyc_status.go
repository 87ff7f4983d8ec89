package domain

import dErrors "kyc/pkg/domain-errors"

// KYCStatus is the verification tier shown on a user's account.
// Invariant: the value must be one of the supported statuses.
//
// Usage: construct via ParseKYCStatus at trust boundaries; direct casting
// bypasses validation.
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "pending"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusVerified    KYCStatus = "verified"
)

var validKYCStatuses = map[KYCStatus]bool{
	KYCStatusPending:     true,
	KYCStatusUnderReview: true,
	KYCStatusVerified:    true,
}

// ParseKYCStatus constructs a KYCStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseKYCStatus(s string) (KYCStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "kyc_status cannot be empty")
	}
	st := KYCStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid kyc_status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s KYCStatus) IsValid() bool {
	return validKYCStatuses[s]
}

func (s KYCStatus) String() string {
	return string(s)
}
