// Package api provides the HTTP/HTTPS server and routes for the srpgate API.
//
//nolint:revive // "api" is a clear and appropriate package name
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/logging"
	tlspkg "github.com/fzdarsky/srpgate/internal/tls"
)

// ShutdownTimeout bounds how long in-flight requests may run after shutdown starts.
const ShutdownTimeout = 5 * time.Second

// Server represents the HTTP/HTTPS API server.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
	tls        bool
}

// New creates a new API server instance serving handler.
func New(cfg *config.Config, handler http.Handler, logger *logging.Logger) (*Server, error) {
	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if cfg.TLSEnabled() {
		tlsConfig, err := tlspkg.NewServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		server.httpServer.TLSConfig = tlsConfig
		server.tls = true
	}

	return server, nil
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves requests on ln until ctx is cancelled, then shuts down
// gracefully. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", map[string]any{
		"address": ln.Addr().String(),
		"tls":     s.tls,
	})

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.tls {
			// Certificates are already loaded into TLSConfig.
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
