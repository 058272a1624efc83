// Package protocol defines the JSON wire types and error codes of the srpgate API.
package protocol

import "fmt"

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// API error codes.
const (
	// ErrCodeAuthenticationFailed indicates the client proof did not match.
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	// ErrCodeInvalidPublicValue indicates A was not in [1, N-1].
	ErrCodeInvalidPublicValue ErrorCode = "INVALID_PUBLIC_VALUE"
	// ErrCodeAccountNotFound indicates the identity is not registered.
	ErrCodeAccountNotFound ErrorCode = "ACCOUNT_NOT_FOUND"
	// ErrCodeAccountExists indicates the identity is already registered.
	ErrCodeAccountExists ErrorCode = "ACCOUNT_EXISTS"
	// ErrCodeHandshakeNotFound indicates the handshake is unknown, expired or consumed.
	ErrCodeHandshakeNotFound ErrorCode = "HANDSHAKE_NOT_FOUND"
	// ErrCodeUnsupportedParameters indicates an unknown group size or hash.
	ErrCodeUnsupportedParameters ErrorCode = "UNSUPPORTED_PARAMETERS"
	// ErrCodeParameterMismatch indicates A was computed for other parameters
	// than the account uses; the response names the right ones.
	ErrCodeParameterMismatch ErrorCode = "PARAMETER_MISMATCH"

	// ErrCodeSessionExpired indicates the session has expired.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	// ErrCodeSessionInvalid indicates the session token is invalid.
	ErrCodeSessionInvalid ErrorCode = "SESSION_INVALID"
	// ErrCodeUnauthorized indicates the request carries no credentials.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeRateLimitExceeded indicates too many failed attempts.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeCapacityExceeded indicates too many pending handshakes or sessions.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeInvalidRequest indicates the request payload is invalid.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeSystemError indicates an internal error.
	ErrCodeSystemError ErrorCode = "SYSTEM_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    string      `json:"details,omitempty"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

// Parameters names an SRP group and hash.
type Parameters struct {
	GroupBits int    `json:"group_bits"`
	Hash      string `json:"hash"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new ErrorResponse.
func NewError(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message}
}

// NewErrorWithDetails creates a new ErrorResponse with details.
func NewErrorWithDetails(code ErrorCode, message, details string) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message, Details: details}
}

// NewAuthenticationFailedError creates an authentication failed error.
func NewAuthenticationFailedError() *ErrorResponse {
	return NewError(ErrCodeAuthenticationFailed, "Authentication failed")
}

// NewInvalidPublicValueError creates an invalid public value error.
func NewInvalidPublicValueError() *ErrorResponse {
	return NewError(ErrCodeInvalidPublicValue, "Public value out of range")
}

// NewAccountNotFoundError creates an account not found error.
func NewAccountNotFoundError() *ErrorResponse {
	return NewError(ErrCodeAccountNotFound, "Account not found")
}

// NewAccountExistsError creates an account exists error.
func NewAccountExistsError(identity string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeAccountExists, "Account already exists", identity)
}

// NewHandshakeNotFoundError creates a handshake not found error.
func NewHandshakeNotFoundError() *ErrorResponse {
	return NewError(ErrCodeHandshakeNotFound, "Handshake not found or expired")
}

// NewUnsupportedParametersError creates an unsupported parameters error.
func NewUnsupportedParametersError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeUnsupportedParameters, "Unsupported SRP parameters", details)
}

// NewParameterMismatchError creates a parameter mismatch error carrying the
// account's parameters.
func NewParameterMismatchError(groupBits int, hash string) *ErrorResponse {
	err := NewError(ErrCodeParameterMismatch, "SRP parameters do not match account")
	err.Parameters = &Parameters{GroupBits: groupBits, Hash: hash}
	return err
}

// NewSessionExpiredError creates a session expired error.
func NewSessionExpiredError() *ErrorResponse {
	return NewError(ErrCodeSessionExpired, "Session token has expired")
}

// NewSessionInvalidError creates a session invalid error.
func NewSessionInvalidError() *ErrorResponse {
	return NewError(ErrCodeSessionInvalid, "Session token is invalid")
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError() *ErrorResponse {
	return NewError(ErrCodeUnauthorized, "Authentication required")
}

// NewRateLimitExceededError creates a rate limit exceeded error.
func NewRateLimitExceededError(retryAfter int) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeRateLimitExceeded, "Rate limit exceeded", fmt.Sprintf("Retry after %d seconds", retryAfter))
}

// NewCapacityExceededError creates a capacity exceeded error.
func NewCapacityExceededError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeCapacityExceeded, "Server at capacity", details)
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeInvalidRequest, "Invalid request", details)
}

// NewSystemError creates a system error.
func NewSystemError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeSystemError, "System error", details)
}
