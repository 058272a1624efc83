package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/pkg/protocol"
)

func TestErrorResponse_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *protocol.ErrorResponse
		expected string
	}{
		{
			name:     "without details",
			err:      protocol.NewAuthenticationFailedError(),
			expected: "AUTHENTICATION_FAILED: Authentication failed",
		},
		{
			name:     "with details",
			err:      protocol.NewAccountExistsError("alice"),
			expected: "ACCOUNT_EXISTS: Account already exists (alice)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	err := protocol.NewRateLimitExceededError(5)

	data, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)
	assert.JSONEq(t, `{"code":"RATE_LIMIT_EXCEEDED","message":"Rate limit exceeded","details":"Retry after 5 seconds"}`, string(data))

	data, marshalErr = json.Marshal(protocol.NewHandshakeNotFoundError())
	require.NoError(t, marshalErr)
	assert.NotContains(t, string(data), "details")
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *protocol.ErrorResponse
		code protocol.ErrorCode
	}{
		{"invalid public value", protocol.NewInvalidPublicValueError(), protocol.ErrCodeInvalidPublicValue},
		{"account not found", protocol.NewAccountNotFoundError(), protocol.ErrCodeAccountNotFound},
		{"unsupported parameters", protocol.NewUnsupportedParametersError("512 bits"), protocol.ErrCodeUnsupportedParameters},
		{"session expired", protocol.NewSessionExpiredError(), protocol.ErrCodeSessionExpired},
		{"session invalid", protocol.NewSessionInvalidError(), protocol.ErrCodeSessionInvalid},
		{"unauthorized", protocol.NewUnauthorizedError(), protocol.ErrCodeUnauthorized},
		{"capacity", protocol.NewCapacityExceededError("handshakes"), protocol.ErrCodeCapacityExceeded},
		{"invalid request", protocol.NewInvalidRequestError("missing identity"), protocol.ErrCodeInvalidRequest},
		{"system", protocol.NewSystemError("disk full"), protocol.ErrCodeSystemError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNewParameterMismatchError(t *testing.T) {
	err := protocol.NewParameterMismatchError(3072, "sha512")

	data, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)
	assert.JSONEq(t, `{
		"code": "PARAMETER_MISMATCH",
		"message": "SRP parameters do not match account",
		"parameters": {"group_bits": 3072, "hash": "sha512"}
	}`, string(data))
}
