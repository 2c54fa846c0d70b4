package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deployq/deployq/pkg/observability"
	"github.com/deployq/deployq/pkg/queue"
	"github.com/deployq/deployq/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	// Auth is the authentication middleware, or nil when authentication
	// has been disabled by configuration.
	Auth transport.Middleware

	// Metrics enables request metric collection.
	Metrics bool
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		MaxBodySize:     1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
		Metrics:         true,
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithTimeouts sets the read and write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithAuth sets the authentication middleware.
func WithAuth(mw transport.Middleware) ServerOption {
	return func(s *Server) { s.config.Auth = mw }
}

// WithMetrics toggles request metric collection.
func WithMetrics(enabled bool) ServerOption {
	return func(s *Server) { s.config.Metrics = enabled }
}

// NewServer creates a new transport server on top of the queue engine.
// Default middleware (request ID, recovery, logging) is applied
// automatically; authentication runs between recovery and logging so
// that log entries carry the resolved organisation.
func NewServer(service *queue.Service, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.adapter = NewAdapter(service, Config{MaxBodySize: s.config.MaxBodySize})

	middlewares := []transport.Middleware{
		transport.RequestID(),
		transport.Recovery(s.logger),
	}
	if s.config.Auth != nil {
		middlewares = append(middlewares, s.config.Auth)
	}
	middlewares = append(middlewares, transport.Logging(s.logger))
	if s.config.Metrics {
		middlewares = append(middlewares, observability.MetricsMiddleware)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      transport.Chain(middlewares...)(s.adapter.Handler()),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn serves on the given listener and blocks until the server is
// stopped with Shutdown or fails. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
