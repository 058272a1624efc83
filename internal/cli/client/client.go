// Package client provides the HTTP client for the srpgate API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/fzdarsky/srpgate/internal/cli/config"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

const (
	defaultTimeout  = 30 * time.Second
	contentTypeJSON = "application/json"
	maxRetries      = 3
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Client is an HTTP client for the srpgate API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessionToken string
}

// NewClient creates a new srpgate API client from the CLI configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return New(cfg.BaseURL(), &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}), nil
}

// New creates a client for baseURL using httpClient.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// SetSessionToken sets the bearer token for authenticated requests.
func (c *Client) SetSessionToken(token string) {
	c.sessionToken = token
}

// Health returns the server's status and default SRP parameters.
func (c *Client) Health(ctx context.Context) (*protocol.HealthResponse, error) {
	var resp protocol.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create registers a new account.
func (c *Client) Create(ctx context.Context, req protocol.CreateRequest) (*protocol.CreateResponse, error) {
	var resp protocol.CreateResponse
	if err := c.do(ctx, http.MethodPost, "/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Hello sends the client's public value and returns the server challenge.
func (c *Client) Hello(ctx context.Context, req protocol.HelloRequest) (*protocol.HelloResponse, error) {
	var resp protocol.HelloResponse
	if err := c.do(ctx, http.MethodPost, "/hello", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Confirm sends the client proof and returns the server proof and token.
// The token is kept for later authenticated requests.
func (c *Client) Confirm(ctx context.Context, req protocol.ConfirmRequest) (*protocol.ConfirmResponse, error) {
	var resp protocol.ConfirmResponse
	if err := c.do(ctx, http.MethodPost, "/confirm", req, &resp); err != nil {
		return nil, err
	}
	c.sessionToken = resp.Token
	return &resp, nil
}

// Session describes the session behind the current token.
func (c *Client) Session(ctx context.Context) (*protocol.SessionResponse, error) {
	var resp protocol.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/session", nil, nil); err != nil {
		return err
	}
	c.sessionToken = ""
	return nil
}

// do executes one API call. Only GET requests are retried: a repeated hello
// or confirm would start or consume a different handshake.
func (c *Client) do(ctx context.Context, method, path string, body, response any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += maxRetries
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
		}

		status, header, respBytes, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			if isRetryable(err) && attempt < attempts {
				lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, attempts, err)
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		if status >= 400 {
			if status >= 500 && attempt < attempts {
				lastErr = fmt.Errorf("server error (HTTP %d, attempt %d/%d)", status, attempt, attempts)
				continue
			}
			return handleErrorResponse(status, header, respBytes)
		}

		if response != nil {
			if err := json.Unmarshal(respBytes, response); err != nil {
				if len(respBytes) > 100 {
					return fmt.Errorf("failed to parse response (invalid JSON): %w", err)
				}
				return fmt.Errorf("failed to parse response (invalid JSON, body: %s): %w", string(respBytes), err)
			}
		}
		return nil
	}

	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, respBytes, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable checks if an error is transient and should be retried.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return true
	}

	// The server may still be starting up.
	return errors.Is(err, syscall.ECONNREFUSED)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
	Response   *protocol.ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Response.Message
	if e.Response.Details != "" {
		msg += ": " + e.Response.Details
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
}

// Unwrap exposes the decoded error body to errors.As.
func (e *APIError) Unwrap() error {
	return e.Response
}

// Code returns the server's error code.
func (e *APIError) Code() protocol.ErrorCode {
	return e.Response.Code
}

// handleErrorResponse converts an HTTP error response to an *APIError. Bodies
// that are not srpgate errors get a generic message for their status.
func handleErrorResponse(statusCode int, header http.Header, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}
	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	var resp protocol.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Code != "" {
		apiErr.Response = &resp
		return apiErr
	}

	switch statusCode {
	case http.StatusUnauthorized:
		apiErr.Response = protocol.NewUnauthorizedError()
	case http.StatusNotFound:
		apiErr.Response = protocol.NewError(protocol.ErrCodeSystemError, "endpoint not found - possible version mismatch")
	case http.StatusServiceUnavailable:
		apiErr.Response = protocol.NewError(protocol.ErrCodeSystemError, "service unavailable - try again later")
	default:
		apiErr.Response = protocol.NewErrorWithDetails(protocol.ErrCodeSystemError,
			fmt.Sprintf("request failed with status %d", statusCode), string(body))
	}
	return apiErr
}

// IsAuthError reports whether err means the session token is missing,
// expired or unknown, so the user has to log in again.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code() {
	case protocol.ErrCodeUnauthorized, protocol.ErrCodeSessionExpired, protocol.ErrCodeSessionInvalid:
		return true
	}
	return false
}

// HasCode reports whether err is an *APIError carrying code.
func HasCode(err error, code protocol.ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code() == code
}
