package client_test

import (
	"context"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/internal/api"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/config"
	cliTLS "github.com/fzdarsky/srpgate/internal/cli/tls"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.New(logging.LevelError, logging.FormatJSON)
	logger.SetOutput(io.Discard, io.Discard)

	sessions := auth.NewSessionManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour, 0)
	t.Cleanup(sessions.Stop)
	service, err := auth.NewService(auth.NewMemoryStore(), sessions, logger, auth.Options{GroupBits: 1024, Hash: "sha1"})
	require.NoError(t, err)
	t.Cleanup(service.Stop)
	limiter := auth.NewRateLimiter(auth.RateLimitPolicy{})
	t.Cleanup(limiter.Stop)

	return api.NewRouter(service, limiter, logger)
}

func newClient(t *testing.T) *client.Client {
	t.Helper()

	srv := httptest.NewServer(newHandler(t))
	t.Cleanup(srv.Close)
	return client.New(srv.URL, srv.Client())
}

func register(t *testing.T, c *client.Client, identity, password string) {
	t.Helper()

	_, err := c.Create(context.Background(), protocol.CreateRequest{Identity: identity, Password: password})
	require.NoError(t, err)
}

func TestClient_LoginSessionLogout(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	register(t, c, "alice", "correct horse")

	result, err := c.Login(ctx, "alice", []byte("correct horse"), protocol.Parameters{})
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Identity)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, 1024, result.GroupBits)
	assert.Equal(t, "sha1", result.Hash)
	assert.Len(t, result.SessionKey, 20)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Identity)
	assert.Positive(t, session.ExpiresIn)

	require.NoError(t, c.Logout(ctx))

	c.SetSessionToken(result.Token)
	_, err = c.Session(ctx)
	require.Error(t, err)
	assert.True(t, client.IsAuthError(err), "revoked token must be rejected: %v", err)
}

func TestClient_LoginParameterMismatchRetry(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	created, err := c.Create(ctx, protocol.CreateRequest{
		Identity:  "bob",
		Password:  "pw",
		GroupBits: 1536,
		Hash:      "sha256",
	})
	require.NoError(t, err)
	assert.Equal(t, 1536, created.GroupBits)

	result, err := c.Login(ctx, "bob", []byte("pw"), protocol.Parameters{})
	require.NoError(t, err)
	assert.Equal(t, 1536, result.GroupBits)
	assert.Equal(t, "sha256", result.Hash)
	assert.Len(t, result.SessionKey, 32)
}

func TestClient_LoginErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	register(t, c, "alice", "secret")

	_, err := c.Login(ctx, "alice", []byte("wrong"), protocol.Parameters{})
	require.Error(t, err)
	assert.True(t, client.HasCode(err, protocol.ErrCodeAuthenticationFailed), "got %v", err)
	assert.False(t, client.IsAuthError(err))

	_, err = c.Login(ctx, "nobody", []byte("secret"), protocol.Parameters{})
	require.Error(t, err)
	assert.True(t, client.HasCode(err, protocol.ErrCodeAccountNotFound), "got %v", err)

	_, err = c.Login(ctx, "alice", []byte("secret"), protocol.Parameters{GroupBits: 1000, Hash: "sha1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, srp.ErrUnknownGroup)
}

func TestClient_CreateDuplicate(t *testing.T) {
	c := newClient(t)
	register(t, c, "alice", "secret")

	_, err := c.Create(context.Background(), protocol.CreateRequest{Identity: "alice", Password: "other"})
	require.Error(t, err)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, protocol.ErrCodeAccountExists, apiErr.Code())

	var body *protocol.ErrorResponse
	require.ErrorAs(t, err, &body, "APIError must unwrap to the error body")
	assert.Equal(t, protocol.ErrCodeAccountExists, body.Code)
}

func TestClient_RogueServerRejected(t *testing.T) {
	// A server that accepts any M1 cannot produce a valid M2.
	group := srp.MustLookup(1024, "sha1")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","group_bits":1024,"hash":"sha1","pending_handshakes":0}`)
	})
	mux.HandleFunc("POST /hello", func(w http.ResponseWriter, _ *http.Request) {
		b := strings.Repeat("07", group.ByteLen())
		_, _ = io.WriteString(w, `{"handshake_id":"h","salt":"00112233445566778899aabbccddeeff","b":"`+b+`","group_bits":1024,"hash":"sha1"}`)
	})
	mux.HandleFunc("POST /confirm", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"m2":"`+strings.Repeat("ab", 20)+`","token":"stolen","expires_at":"2030-01-01T00:00:00Z"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := client.New(srv.URL, srv.Client())
	_, err := c.Login(context.Background(), "alice", []byte("secret"), protocol.Parameters{})
	require.Error(t, err)
	assert.ErrorIs(t, err, srp.ErrServerNotAuthentic)
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok","group_bits":2048,"hash":"sha256","pending_handshakes":0}`)
	}))
	defer srv.Close()

	health, err := client.New(srv.URL, srv.Client()).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2048, health.GroupBits)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "maintenance")
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, srv.Client()).Hello(context.Background(), protocol.HelloRequest{Identity: "a", A: []byte{1}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.Contains(t, apiErr.Error(), "service unavailable")
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.New(srv.URL, srv.Client()).Health(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_PinnedFingerprint(t *testing.T) {
	srv := httptest.NewTLSServer(newHandler(t))
	defer srv.Close()

	host, port := splitURL(t, srv.URL)
	pin := cliTLS.ComputeFingerprint(srv.Certificate())

	fetched, err := client.FetchFingerprint(context.Background(), srv.Listener.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, pin, fetched)

	cfg := &config.Config{Host: host, Port: port, Fingerprint: pin}
	c, err := client.NewClient(cfg)
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.NoError(t, err)

	cfg.Fingerprint = "SHA256:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	c, err = client.NewClient(cfg)
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match pinned fingerprint")
}

func TestTransport_CACert(t *testing.T) {
	srv := httptest.NewTLSServer(newHandler(t))
	defer srv.Close()

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, pemBytes, 0o600))

	host, port := splitURL(t, srv.URL)
	c, err := client.NewClient(&config.Config{Host: host, Port: port, CACert: caPath})
	require.NoError(t, err)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestTransport_BadCACert(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("not a certificate"), 0o600))

	_, err := client.NewTransport(&config.Config{Host: "h", Port: 1, CACert: caPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CA certificate")
}

func splitURL(t *testing.T, rawURL string) (string, int) {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
