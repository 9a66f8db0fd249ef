// Package http provides the HTTP server and API surface for hlsforge.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/hlsforge/internal/config"
	"github.com/jmylchreest/hlsforge/internal/http/middleware"
)

// RouteRegistrar mounts a handler's routes on a router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server is the HTTP server hosting the transcode API.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the server with its middleware chain. Handlers are
// mounted under /api/v1; health and metrics sit at the root.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.SkipCompressionForSSE(chimiddleware.Compress(5)))

	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{
		config: cfg,
		router: router,
		logger: logger,
	}
}

// Router returns the chi router for mounting additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountAPI registers handlers under the /api/v1 prefix.
func (s *Server) MountAPI(registrars ...RouteRegistrar) {
	s.router.Route("/api/v1", func(r chi.Router) {
		for _, reg := range registrars {
			reg.RegisterRoutes(r)
		}
	})
}

// MountRoot registers handlers at the router root.
func (s *Server) MountRoot(registrars ...RouteRegistrar) {
	for _, reg := range registrars {
		reg.RegisterRoutes(s.router)
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
