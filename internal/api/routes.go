package api

import (
	"net/http"

	"github.com/fzdarsky/srpgate/internal/api/handlers"
	"github.com/fzdarsky/srpgate/internal/api/middleware"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
)

// NewRouter registers the srpgate routes and wraps them in the logging and
// panic recovery middleware.
func NewRouter(service *auth.Service, rateLimiter *auth.RateLimiter, logger *logging.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(service, rateLimiter, logger)
	authMiddleware := middleware.NewAuthMiddleware(service.Sessions())

	mux := http.NewServeMux()

	// Account and login endpoints (no authentication required)
	mux.HandleFunc("POST /create", authHandler.HandleCreate)
	mux.HandleFunc("POST /hello", authHandler.HandleHello)
	mux.HandleFunc("POST /confirm", authHandler.HandleConfirm)
	mux.HandleFunc("GET /healthz", authHandler.HandleHealth)

	// Session endpoints (bearer token required)
	mux.Handle("GET /session", authMiddleware.Require(http.HandlerFunc(authHandler.HandleSession)))
	mux.Handle("DELETE /session", authMiddleware.Require(http.HandlerFunc(authHandler.HandleLogout)))

	return middleware.Logging(logger)(middleware.ErrorHandler(logger)(mux))
}
