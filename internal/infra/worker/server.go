package worker

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Server runs an HTTP handler with graceful shutdown. The worker uses
// two instances: one for the status and health endpoints, one for
// Prometheus metrics. Each instance carries a name so their log lines
// stay distinguishable.
//
// Example usage:
//
//	srv := NewServer("status", ":8090", mux, logger)
//	go func() {
//	    if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
//	        logger.Error("server failed", slog.Any("error", err))
//	    }
//	}()
type Server struct {
	name    string
	addr    string
	logger  *slog.Logger
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new HTTP server for the given handler.
//
// Parameters:
//   - name: Short name used in log lines (e.g., "status", "metrics")
//   - addr: Server listen address (e.g., ":8090", "localhost:8090")
//   - handler: HTTP handler to serve
//   - logger: Structured logger for logging server events
//
// Returns:
//   - *Server: Initialized server (not started yet)
func NewServer(name, addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		name:    name,
		addr:    addr,
		logger:  logger,
		handler: handler,
	}
}

// Start starts the HTTP server.
// This is a blocking call that runs until the context is cancelled or an
// error occurs. It supports graceful shutdown with a 5-second timeout.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown
//
// Returns:
//   - error: http.ErrServerClosed on graceful shutdown, other errors on failure
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("server", s.name),
			slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("server shutting down", slog.String("server", s.name))
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed",
				slog.String("server", s.name),
				slog.Any("error", err))
			return err
		}
		s.logger.Info("server stopped", slog.String("server", s.name))
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("server failed",
			slog.String("server", s.name),
			slog.Any("error", err))
		return err
	}
}
