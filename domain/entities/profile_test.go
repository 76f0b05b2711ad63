package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileValidate(t *testing.T) {
	valid := ProfileRecord{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "a@b.test",
		Password:  "Secret123!",
	}
	require.NoError(t, valid.Validate())
}

func TestProfileValidateCollectsAllMissingFields(t *testing.T) {
	err := ProfileRecord{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first name")
	assert.Contains(t, err.Error(), "last name")
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "password")
}

func TestProfileValidateRejectsBadEmail(t *testing.T) {
	p := ProfileRecord{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "not-an-email",
		Password:  "Secret123!",
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email")
}

func TestProfileValidateRejectsShortPassword(t *testing.T) {
	p := ProfileRecord{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "a@b.test",
		Password:  "short",
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8")
}

func TestProfileValidateTreatsWhitespaceAsMissing(t *testing.T) {
	p := ProfileRecord{
		FirstName: "   ",
		LastName:  "Lee",
		Email:     "a@b.test",
		Password:  "Secret123!",
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first name")
}
