package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc/internal/scoring/scoringtest"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
)

func TestNewAccount(t *testing.T) {
	a, err := NewAccount(id.NewUserID(), "  Amina@Example.COM ", " Amina Hassan ", scoringtest.Base)
	require.NoError(t, err)
	assert.Equal(t, "amina@example.com", a.Email)
	assert.Equal(t, "Amina Hassan", a.FullName)
	assert.Equal(t, id.KYCStatusPending, a.KYCStatus)
	assert.Nil(t, a.VerificationDate)

	_, err = NewAccount(id.NewUserID(), "not-an-email", "", scoringtest.Base)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = NewAccount(id.UserID{}, "x@example.com", "", scoringtest.Base)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
