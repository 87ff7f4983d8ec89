package domain

import (
	"github.com/google/uuid"

	dErrors "kyc/pkg/domain-errors"
)

// UserID identifies the owner of receipts, scores and KYC status.
// Invariant: never the nil UUID once parsed.
type UserID uuid.UUID

// ReceiptID identifies a single uploaded receipt.
type ReceiptID uuid.UUID

// maxIDLength guards parsing against oversized input before uuid.Parse runs.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseReceiptID constructs a ReceiptID from external input.
func ParseReceiptID(s string) (ReceiptID, error) {
	u, err := parseUUID("receipt_id", s)
	if err != nil {
		return ReceiptID{}, err
	}
	return ReceiptID(u), nil
}

// NewReceiptID returns a fresh random receipt identifier.
func NewReceiptID() ReceiptID {
	return ReceiptID(uuid.New())
}

func (id UserID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero value.
func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ReceiptID) String() string { return uuid.UUID(id).String() }

func (id ReceiptID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the canonical UUID form in JSON and structured logs.
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id ReceiptID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReceiptID) UnmarshalText(b []byte) error {
	parsed, err := ParseReceiptID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewUserID returns a fresh random user identifier.
func NewUserID() UserID {
	return UserID(uuid.New())
}
