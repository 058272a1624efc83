package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// ErrorHandler returns middleware that recovers from panics and handles errors.
func ErrorHandler(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", map[string]any{
						"error": err,
						"path":  r.URL.Path,
					})

					WriteJSONError(w, protocol.NewSystemError("internal server error"), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	// The status code is already written; nothing useful can be done on failure.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(w http.ResponseWriter, err *protocol.ErrorResponse, statusCode int) {
	WriteJSON(w, err, statusCode)
}

// WriteError writes err with the status mapped from its code.
func WriteError(w http.ResponseWriter, err *protocol.ErrorResponse) {
	WriteJSONError(w, err, HTTPStatusForErrorCode(err.Code))
}

// HTTPStatusForErrorCode maps protocol error codes to HTTP status codes.
func HTTPStatusForErrorCode(code protocol.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case protocol.ErrCodeInvalidRequest,
		protocol.ErrCodeInvalidPublicValue,
		protocol.ErrCodeUnsupportedParameters:
		return http.StatusBadRequest

	// 401 Unauthorized
	case protocol.ErrCodeUnauthorized,
		protocol.ErrCodeAuthenticationFailed,
		protocol.ErrCodeSessionExpired,
		protocol.ErrCodeSessionInvalid:
		return http.StatusUnauthorized

	// 404 Not Found
	case protocol.ErrCodeAccountNotFound,
		protocol.ErrCodeHandshakeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case protocol.ErrCodeAccountExists,
		protocol.ErrCodeParameterMismatch:
		return http.StatusConflict

	// 429 Too Many Requests
	case protocol.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case protocol.ErrCodeCapacityExceeded:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
