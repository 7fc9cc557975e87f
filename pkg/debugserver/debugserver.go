// Package debugserver provides an HTTP server exposing process introspection
// next to the core client engine: Prometheus metrics and a JSON snapshot of
// TableGroup's registration/barrier/clock state.
//
// The server supports graceful shutdown with configurable timeout.
package debugserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HelloBinge/petuum/internal/logger"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/tablegroup"
)

// Snapshotter is the subset of *tablegroup.TableGroup the server needs.
// Declared as an interface so tests can supply a stub.
type Snapshotter interface {
	Snapshot() tablegroup.Snapshot
}

// Config fixes a Server's listen address and shutdown behavior.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server serves /debugz/tablegroup, and /metrics when pkg/metrics is
// enabled at the time NewServer is called.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a debug server in a stopped state. Call Start to begin
// serving requests. tg may be nil, in which case /debugz/tablegroup always
// reports unavailable.
func NewServer(config Config, tg Snapshotter) *Server {
	config.applyDefaults()

	router := newRouter(tg)

	return &Server{
		config: config,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", config.Port),
			Handler: router,
		},
	}
}

func newRouter(tg Snapshotter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debugz/tablegroup", http.StatusTemporaryRedirect)
	})

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Get("/debugz/tablegroup", newTableGroupHandler(tg))

	return r
}

// Start starts the debug HTTP server and blocks until ctx is cancelled or
// an error occurs.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("debug server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("debug server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("debug server shutdown error: %w", err)
			logger.Error("debug server shutdown error", "error", err)
		} else {
			logger.Info("debug server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}

// requestLogger logs request completion at DEBUG level using the internal
// logger, keyed by chi's request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("debug server request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
