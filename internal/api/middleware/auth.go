package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// AuthMiddleware provides bearer token authentication for HTTP handlers.
type AuthMiddleware struct {
	sessionManager *auth.SessionManager
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(sm *auth.SessionManager) *AuthMiddleware {
	return &AuthMiddleware{
		sessionManager: sm,
	}
}

// Require is an HTTP middleware that enforces authentication.
// It validates the session token from the Authorization header and
// rejects requests with missing or invalid tokens.
func (am *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			WriteJSONError(w, protocol.NewUnauthorizedError(), http.StatusUnauthorized)
			return
		}

		session, err := am.sessionManager.Validate(token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionExpired) {
				WriteJSONError(w, protocol.NewSessionExpiredError(), http.StatusUnauthorized)
				return
			}
			WriteJSONError(w, protocol.NewSessionInvalidError(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
