package api_test

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/internal/api"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/logging"
	tlspkg "github.com/fzdarsky/srpgate/internal/tls"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

func newRouter(t *testing.T, logger *logging.Logger) http.Handler {
	t.Helper()

	sessions := auth.NewSessionManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour, 0)
	t.Cleanup(sessions.Stop)
	service, err := auth.NewService(auth.NewMemoryStore(), sessions, logger, auth.Options{GroupBits: 1024, Hash: "sha1"})
	require.NoError(t, err)
	t.Cleanup(service.Stop)
	limiter := auth.NewRateLimiter(auth.DefaultRateLimitPolicy())
	t.Cleanup(limiter.Stop)

	return api.NewRouter(service, limiter, logger)
}

// serve runs srv on a loopback listener and returns its address and a
// function that stops it and returns Serve's result.
func serve(t *testing.T, srv *api.Server) (string, func() error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	return ln.Addr().String(), func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(api.ShutdownTimeout + time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
}

func getHealth(t *testing.T, client *http.Client, url string) protocol.HealthResponse {
	t.Helper()

	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var health protocol.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	return health
}

func TestServer_ServeAndShutdown(t *testing.T) {
	logger := quietLogger()
	cfg := config.Default()

	srv, err := api.New(cfg, newRouter(t, logger), logger)
	require.NoError(t, err)

	addr, stop := serve(t, srv)

	health := getHealth(t, http.DefaultClient, "http://"+addr+"/healthz")
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "sha1", health.Hash)

	require.NoError(t, stop())

	_, err = http.Get("http://" + addr + "/healthz")
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestServer_TLS(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.TLSCert = filepath.Join(dir, "server.crt")
	cfg.Server.TLSKey = filepath.Join(dir, "server.key")
	require.NoError(t, tlspkg.GenerateSelfSignedCert(cfg.Server.TLSCert, cfg.Server.TLSKey, time.Hour))

	logger := quietLogger()
	srv, err := api.New(cfg, newRouter(t, logger), logger)
	require.NoError(t, err)

	addr, stop := serve(t, srv)
	defer func() { assert.NoError(t, stop()) }()

	client := &http.Client{Transport: &http.Transport{
		//nolint:gosec // G402: self-signed test certificate
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13},
	}}
	health := getHealth(t, client, "https://"+addr+"/healthz")
	assert.Equal(t, 1024, health.GroupBits)
}

func TestServer_New_BadTLS(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TLSCert = "/nonexistent/server.crt"
	cfg.Server.TLSKey = "/nonexistent/server.key"

	_, err := api.New(cfg, http.NewServeMux(), quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create TLS config")
}

func TestServer_StartListenError(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Address = "256.0.0.1"

	srv, err := api.New(cfg, http.NewServeMux(), quietLogger())
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func quietLogger() *logging.Logger {
	logger := logging.New(logging.LevelError, logging.FormatJSON)
	logger.SetOutput(io.Discard, io.Discard)
	return logger
}
