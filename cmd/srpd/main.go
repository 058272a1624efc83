// srpd is the srpgate daemon: an account registry and SRP-6a login server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fzdarsky/srpgate/internal/api"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/lifecycle"
	"github.com/fzdarsky/srpgate/internal/logging"
	tlspkg "github.com/fzdarsky/srpgate/internal/tls"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// version is set by build flags
	version = "dev"
	// commit is set by build flags
	commit = "none"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (built-in defaults if empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("srpd version %s (%s)\n", version, commit)
		return
	}

	// Bootstrap logger; replaced once the configuration is loaded.
	logger := logging.New(logging.LevelInfo, logging.FormatJSON)

	if err := run(context.Background(), *configPath, logger); err != nil {
		logger.Error("service failed", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, logger *logging.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if logger, err = newLogger(cfg); err != nil {
		return err
	}
	srp.SetLogger(logger)

	logger.Info("srpgate starting", map[string]any{
		"version":        version,
		"commit":         commit,
		"listen_address": cfg.ListenAddr(),
		"tls":            cfg.TLSEnabled(),
		"group_bits":     cfg.SRP.GroupBits,
		"hash":           cfg.SRP.Hash,
		"store":          storeName(cfg),
	})

	if cfg.TLSEnabled() && cfg.Server.SelfSigned {
		generated, err := tlspkg.EnsureSelfSigned(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.Address)
		if err != nil {
			return fmt.Errorf("failed to prepare self-signed certificate: %w", err)
		}
		if generated {
			logger.Info("generated self-signed certificate", map[string]any{
				"cert": cfg.Server.TLSCert,
			})
		}
	}

	shutdown := lifecycle.NewShutdownManager(logger)
	defer shutdown.Stop()
	ctx = shutdown.Start(ctx)

	handler, err := buildHandler(ctx, cfg, logger, shutdown)
	if err != nil {
		return err
	}

	server, err := api.New(cfg, handler, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Notify systemd that the service is ready (Type=notify)
	notifySystemd("READY=1")

	serveErr := server.Start(ctx)

	notifySystemd("STOPPING=1")
	hookErr := shutdown.RunHooks(context.Background(), lifecycle.DefaultHookTimeout)

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	if hookErr != nil {
		return fmt.Errorf("shutdown incomplete: %w", hookErr)
	}

	logger.Info("srpgate stopped", map[string]any{
		"reason": shutdown.Reason(),
	})
	return nil
}

// buildHandler wires the account store, session manager, SRP service and
// rate limiter into the HTTP router. Each background component registers a
// shutdown hook.
func buildHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger, shutdown *lifecycle.ShutdownManager) (http.Handler, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := cfg.GetSessionTTL()
	if err != nil {
		return nil, err
	}
	handshakeTTL, err := cfg.GetHandshakeTTL()
	if err != nil {
		return nil, err
	}
	delays, lockout, err := cfg.GetRateLimit()
	if err != nil {
		return nil, err
	}

	// Tokens are signed with a per-process key; a restart logs everyone out.
	secret, err := auth.GenerateSessionSecret(ctx)
	if err != nil {
		return nil, err
	}
	sessions := auth.NewSessionManager(secret, sessionTTL, cfg.Auth.MaxSessions)
	shutdown.OnShutdown("sessions", stopFunc(sessions.Stop))

	service, err := auth.NewService(store, sessions, logger, auth.Options{
		GroupBits:     cfg.SRP.GroupBits,
		Hash:          cfg.SRP.Hash,
		SaltBytes:     cfg.SRP.SaltBytes,
		HandshakeTTL:  handshakeTTL,
		MaxHandshakes: cfg.Auth.MaxHandshakes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	shutdown.OnShutdown("handshakes", stopFunc(service.Stop))

	limiter := auth.NewRateLimiter(auth.RateLimitPolicy{Delays: delays, Lockout: lockout})
	shutdown.OnShutdown("rate limiter", stopFunc(limiter.Stop))

	return api.NewRouter(service, limiter, logger), nil
}

func openStore(cfg *config.Config) (auth.AccountStore, error) {
	if cfg.Store.Path == "" {
		return auth.NewMemoryStore(), nil
	}
	store, err := auth.OpenFileStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}
	return store, nil
}

func storeName(cfg *config.Config) string {
	if cfg.Store.Path == "" {
		return "memory"
	}
	return cfg.Store.Path
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

func stopFunc(stop func()) func(context.Context) error {
	return func(context.Context) error {
		stop()
		return nil
	}
}

// notifySystemd sends a notification to systemd if NOTIFY_SOCKET is set.
// This enables systemd Type=notify service management.
func notifySystemd(state string) {
	notifySocket := os.Getenv("NOTIFY_SOCKET")
	if notifySocket == "" {
		return
	}

	conn, err := net.DialTimeout("unixgram", notifySocket, time.Second)
	if err != nil {
		// systemd notification is optional
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	_, _ = conn.Write([]byte(state))
}
