package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ocrd-go/resmgr/internal/manager"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "127.0.0.1:8901"

const shutdownTimeout = 5 * time.Second

// Server exposes the resource manager over HTTP. Registry access is
// serialized: one request at a time touches the store.
type Server struct {
	mgr      *manager.Manager
	addr     string
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	now      func() time.Time

	mu sync.Mutex // guards mgr
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithRegistry sets the Prometheus registry metrics are registered with and
// served from. Defaults to a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithClock sets the time source for the home page.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server over mgr.
func New(mgr *manager.Manager, opts ...Option) *Server {
	s := &Server{mgr: mgr, addr: DefaultAddr, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("server")
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry)
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the routed handler, wrapped with request tagging and
// metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, s)
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("resource manager server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", zap.Error(err))
			return err
		}
		s.log.Info("resource manager server stopped")
		return nil
	}
}

// Reload rebuilds the registry from disk under the server's lock.
func (s *Server) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.mgr.Store().Reload()
	s.metrics.reloads.WithLabelValues(outcome(err)).Inc()
	return err
}
