// Package handlers provides HTTP request handlers for the srpgate API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// maxBodyBytes bounds request bodies. The largest body is a hello with an
// 8192-bit A in hex.
const maxBodyBytes = 64 << 10

// AuthHandler handles the account and SRP-6a login endpoints.
type AuthHandler struct {
	service     *auth.Service
	rateLimiter *auth.RateLimiter
	logger      *logging.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(service *auth.Service, rateLimiter *auth.RateLimiter, logger *logging.Logger) *AuthHandler {
	return &AuthHandler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// HandleCreate handles POST /create - register an account.
func (ah *AuthHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	var req protocol.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		ah.logAuthEvent("create_invalid_request", clientIP, "", err.Error())
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}

	password := []byte(req.Password)
	account, err := ah.service.Create(r.Context(), auth.CreateRequest{
		Identity:  req.Identity,
		Password:  password,
		GroupBits: req.GroupBits,
		Hash:      req.Hash,
	})
	clear(password)
	if err != nil {
		ah.logAuthEvent("create_failed", clientIP, req.Identity, err.Error())
		ah.writeServiceError(w, err, req.Identity)
		return
	}

	ah.logAuthEvent("create_success", clientIP, account.Identity, "account created")
	middleware.WriteJSON(w, protocol.CreateResponse{
		Identity:  account.Identity,
		GroupBits: account.GroupBits,
		Hash:      account.Hash,
	}, http.StatusCreated)
}

// HandleHello handles POST /hello - accept A and return salt and B.
func (ah *AuthHandler) HandleHello(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if ah.rejectLimited(w, clientIP, "hello") {
		return
	}

	var req protocol.HelloRequest
	if err := decodeJSON(r, &req); err != nil {
		ah.logAuthEvent("hello_invalid_request", clientIP, "", err.Error())
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Identity == "" || len(req.A) == 0 {
		ah.logAuthEvent("hello_invalid_request", clientIP, req.Identity, "identity or a missing")
		middleware.WriteError(w, protocol.NewInvalidRequestError("identity and a are required"))
		return
	}

	result, err := ah.service.Hello(r.Context(), auth.HelloRequest{
		Identity:  req.Identity,
		A:         req.A,
		GroupBits: req.GroupBits,
		Hash:      req.Hash,
	})
	if err != nil {
		ah.logAuthEvent("hello_failed", clientIP, req.Identity, err.Error())
		if countsAsFailure(err) {
			ah.recordFailure(w, clientIP)
		}
		ah.writeServiceError(w, err, req.Identity)
		return
	}

	ah.logAuthEvent("hello_success", clientIP, req.Identity, "handshake started")
	middleware.WriteJSON(w, protocol.HelloResponse{
		HandshakeID: result.HandshakeID,
		Salt:        result.Salt,
		B:           result.B,
		GroupBits:   result.GroupBits,
		Hash:        result.Hash,
	}, http.StatusOK)
}

// HandleConfirm handles POST /confirm - check M1, return M2 and a session token.
func (ah *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if ah.rejectLimited(w, clientIP, "confirm") {
		return
	}

	var req protocol.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		ah.logAuthEvent("confirm_invalid_request", clientIP, "", err.Error())
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Identity == "" || req.HandshakeID == "" || len(req.M1) == 0 {
		ah.logAuthEvent("confirm_invalid_request", clientIP, req.Identity, "identity, handshake_id or m1 missing")
		middleware.WriteError(w, protocol.NewInvalidRequestError("identity, handshake_id and m1 are required"))
		return
	}

	result, err := ah.service.Confirm(r.Context(), req.Identity, req.HandshakeID, req.M1)
	if err != nil {
		ah.logAuthEvent("confirm_failed", clientIP, req.Identity, err.Error())
		if countsAsFailure(err) {
			ah.recordFailure(w, clientIP)
		}
		ah.writeServiceError(w, err, req.Identity)
		return
	}

	ah.rateLimiter.RecordSuccess(clientIP)
	ah.logAuthEvent("confirm_success", clientIP, req.Identity, "authentication successful")
	middleware.WriteJSON(w, protocol.ConfirmResponse{
		M2:        result.M2,
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
	}, http.StatusOK)
}

// HandleSession handles GET /session - describe the caller's session.
func (ah *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		middleware.WriteError(w, protocol.NewUnauthorizedError())
		return
	}

	middleware.WriteJSON(w, protocol.SessionResponse{
		Identity:  session.Identity,
		ExpiresAt: session.ExpiresAt,
		ExpiresIn: int(session.TimeUntilExpiry() / time.Second),
	}, http.StatusOK)
}

// HandleLogout handles DELETE /session - revoke the caller's session.
func (ah *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		middleware.WriteError(w, protocol.NewUnauthorizedError())
		return
	}

	if err := ah.service.Sessions().Revoke(session.Token); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		middleware.WriteError(w, protocol.NewSystemError(err.Error()))
		return
	}

	ah.logAuthEvent("logout", getClientIP(r), session.Identity, "session revoked")
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /healthz.
func (ah *AuthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	bits, hash := ah.service.Parameters()
	middleware.WriteJSON(w, protocol.HealthResponse{
		Status:            "ok",
		GroupBits:         bits,
		Hash:              hash,
		PendingHandshakes: ah.service.PendingHandshakes(),
	}, http.StatusOK)
}

// rejectLimited writes a 429 and returns true while clientIP is blocked.
func (ah *AuthHandler) rejectLimited(w http.ResponseWriter, clientIP, step string) bool {
	wait, err := ah.rateLimiter.Check(clientIP)
	if err == nil {
		return false
	}

	ah.logAuthEvent(step+"_rate_limited", clientIP, "", err.Error())
	retryAfter := auth.FormatRetryAfter(wait)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	middleware.WriteError(w, protocol.NewRateLimitExceededError(retryAfter))
	return true
}

func (ah *AuthHandler) recordFailure(w http.ResponseWriter, clientIP string) {
	delay := ah.rateLimiter.RecordFailure(clientIP)
	w.Header().Set("Retry-After", strconv.Itoa(auth.FormatRetryAfter(delay)))
}

// writeServiceError maps an auth or srp error to its wire form.
func (ah *AuthHandler) writeServiceError(w http.ResponseWriter, err error, identity string) {
	var mismatch *auth.ParameterMismatchError
	switch {
	case errors.As(err, &mismatch):
		middleware.WriteError(w, protocol.NewParameterMismatchError(mismatch.GroupBits, mismatch.Hash))
	case errors.Is(err, auth.ErrInvalidIdentity), errors.Is(err, auth.ErrEmptyPassword):
		middleware.WriteError(w, protocol.NewInvalidRequestError(err.Error()))
	case errors.Is(err, srp.ErrUnknownGroup), errors.Is(err, srp.ErrUnknownHash):
		middleware.WriteError(w, protocol.NewUnsupportedParametersError(err.Error()))
	case errors.Is(err, srp.ErrInvalidPublicValue):
		middleware.WriteError(w, protocol.NewInvalidPublicValueError())
	case errors.Is(err, auth.ErrAccountExists):
		middleware.WriteError(w, protocol.NewAccountExistsError(identity))
	case errors.Is(err, auth.ErrAccountNotFound):
		middleware.WriteError(w, protocol.NewAccountNotFoundError())
	case errors.Is(err, auth.ErrHandshakeNotFound):
		middleware.WriteError(w, protocol.NewHandshakeNotFoundError())
	case errors.Is(err, srp.ErrClientAuthenticationFailed):
		middleware.WriteError(w, protocol.NewAuthenticationFailedError())
	case errors.Is(err, auth.ErrHandshakeLimit), errors.Is(err, auth.ErrSessionLimitExceeded):
		middleware.WriteError(w, protocol.NewCapacityExceededError(err.Error()))
	default:
		ah.logger.Error("request failed", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		middleware.WriteError(w, protocol.NewSystemError("internal server error"))
	}
}

// countsAsFailure reports whether err is charged against the client's
// rate limit. Unknown identities count so that probing for accounts is
// throttled like password guessing.
func countsAsFailure(err error) bool {
	return errors.Is(err, srp.ErrClientAuthenticationFailed) ||
		errors.Is(err, srp.ErrInvalidPublicValue) ||
		errors.Is(err, auth.ErrAccountNotFound) ||
		errors.Is(err, auth.ErrHandshakeNotFound)
}

// logAuthEvent logs an authentication event. Secret values never reach it;
// the logger's redactor covers anything passed by mistake.
func (ah *AuthHandler) logAuthEvent(event, clientIP, identity, details string) {
	ah.logger.Info("auth event", map[string]any{
		"event":     event,
		"client_ip": clientIP,
		"identity":  identity,
		"details":   details,
	})
}

// decodeJSON decodes a size-limited request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// getClientIP returns the host part of the request's remote address.
// Forwarding headers are ignored: they are client controlled and would
// let a caller pick its own rate limit key.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
