package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Run("New carries code and status", func(t *testing.T) {
		err := New(ErrCodeInvalidCredentials, "invalid credentials")
		assert.Equal(t, ErrCodeInvalidCredentials, err.Code)
		assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus)
		assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
	})

	t.Run("Wrap preserves the cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, ErrCodeUnavailable, "refresh token store unavailable")

		require.ErrorIs(t, err, cause)
		assert.Equal(t, ErrCodeUnavailable, CodeOf(err))
		assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusOf(err))
	})

	t.Run("status mapping per code", func(t *testing.T) {
		tests := []struct {
			code   ErrorCode
			status int
		}{
			{ErrCodeInvalidCredentials, http.StatusUnauthorized},
			{ErrCodeInvalidRefreshToken, http.StatusUnauthorized},
			{ErrCodeTokenExpired, http.StatusUnauthorized},
			{ErrCodeTokenMalformed, http.StatusUnauthorized},
			{ErrCodeSignatureInvalid, http.StatusUnauthorized},
			{ErrCodeWrongTokenKind, http.StatusUnauthorized},
			{ErrCodeSubjectNotActive, http.StatusForbidden},
			{ErrCodeNotFound, http.StatusNotFound},
			{ErrCodeInvalidInput, http.StatusBadRequest},
			{ErrCodeUnavailable, http.StatusServiceUnavailable},
			{ErrCodeSubjectNotFound, http.StatusInternalServerError},
			{ErrCodeSigningKeyUnavailable, http.StatusInternalServerError},
			{ErrCodeInternal, http.StatusInternalServerError},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.status, New(tt.code, "x").HTTPStatus, string(tt.code))
		}
	})

	t.Run("CodeOf defaults to internal for foreign errors", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("boom")))
	})

	t.Run("IsCode", func(t *testing.T) {
		err := NewInvalidRefreshToken()
		assert.True(t, IsCode(err, ErrCodeInvalidRefreshToken))
		assert.False(t, IsCode(err, ErrCodeInvalidCredentials))
		assert.False(t, IsCode(nil, ErrCodeInvalidRefreshToken))
	})

	t.Run("constructors", func(t *testing.T) {
		assert.Equal(t, ErrCodeSubjectNotActive, NewSubjectNotActive("SUSPENDED").Code)
		assert.Contains(t, NewSubjectNotActive("SUSPENDED").Message, "SUSPENDED")
		assert.Equal(t, ErrCodeNotFound, NewNotFound("user").Code)
		assert.Contains(t, NewNotFound("user").Message, "user")
	})
}
