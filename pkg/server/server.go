package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/telemetry/health"
)

// Server is the controller's management HTTP server.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	handlers     *Handlers
	readiness    *health.Checker
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a management server around the endpoint set.
func NewServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, handlers *Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		metricsCfg:   metricsCfg,
		handlers:     handlers,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// SetReadinessChecker installs the readiness checker exposed at /readyz.
// It must be called before Start.
func (s *Server) SetReadinessChecker(c *health.Checker) {
	s.readiness = c
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting management server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("management server stopped")
	})

	return shutdownErr
}

// Stop requests a graceful shutdown from another goroutine.
func (s *Server) Stop() {
	select {
	case s.shutdownChan <- struct{}{}:
	default:
	}
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	h := s.handlers

	// Provisioning interface
	mux.HandleFunc("POST /3gpp-m3/v1/content-hosting-configurations/{sessionID}", h.createSession)
	mux.HandleFunc("PUT /3gpp-m3/v1/content-hosting-configurations/{sessionID}", h.updateSession)
	mux.HandleFunc("GET /3gpp-m3/v1/content-hosting-configurations/{sessionID}", h.getSession)
	mux.HandleFunc("DELETE /3gpp-m3/v1/content-hosting-configurations/{sessionID}", h.deleteSession)
	mux.HandleFunc("GET /3gpp-m3/v1/content-hosting-configurations", h.listSessions)
	mux.HandleFunc("POST /3gpp-m3/v1/content-hosting-configurations/{sessionID}/purge", h.purgeSession)

	// Certificate interface
	mux.HandleFunc("PUT /3gpp-m3/v1/certificates/{certificateID}", h.putCertificate)
	mux.HandleFunc("DELETE /3gpp-m3/v1/certificates/{certificateID}", h.deleteCertificate)
	mux.HandleFunc("GET /3gpp-m3/v1/certificates", h.listCertificates)

	// Internal redirect interface for the data path
	mux.HandleFunc("POST /internal/v1/redirects", h.allocateRedirect)
	mux.HandleFunc("GET /internal/v1/redirects/resolve", h.resolveRedirect)

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.healthz)
	if s.readiness != nil {
		mux.HandleFunc("GET /readyz", s.readiness.ReadinessHandler())
	}
	if s.metricsCfg != nil && s.metricsCfg.Enabled && h.collector != nil {
		mux.Handle("GET "+s.metricsCfg.Path, h.collector.Handler())
	}

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}
