package common

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesKindAndCause(t *testing.T) {
	err := NewAppError(ErrNotFound, "session missing", io.EOF)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, io.EOF))
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "session missing: EOF", err.Error())
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := NewAppError(ErrInvalidInput, "bad upload", nil)

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "bad upload", err.Error())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "noop"))

	wrapped := WrapError(io.ErrUnexpectedEOF, "read page")
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Equal(t, "read page: unexpected EOF", wrapped.Error())
}
