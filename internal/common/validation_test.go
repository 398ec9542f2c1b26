package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("commitment_id", "", Required).
		Field("session_id", "not-a-uuid", UUID).
		Field("vendor", "ok", Required, MaxLength(2))

	require.True(t, v.HasErrors())
	msg := v.ErrorMessage()
	assert.Contains(t, msg, "commitment_id")
	assert.Contains(t, msg, "session_id")
	assert.Contains(t, msg, "at most 2 characters")

	err := v.Error()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestValidatorClean(t *testing.T) {
	v := NewValidator().
		Field("commitment_id", "RES-OAKHS-13", Required, MaxLength(64)).
		Field("session_id", "7f9c24e5-2f86-4b5c-9f3a-0b1d2c3d4e5f", UUID)

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
}
