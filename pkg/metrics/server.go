package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/mdus/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the side listener for observability endpoints.
//
// It is separate from the file-serving listener, so scrapes never pass
// through the bounded dispatch buffer.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics in text or OpenMetrics format
//   - anything added with Handle before Start (mdus mounts /stats)
type Server struct {
	server *http.Server
	mux    *http.ServeMux

	// addr is set once Start has bound the listener
	mu   sync.Mutex
	addr net.Addr

	shutdownOnce sync.Once
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Host to bind. Default: localhost
	Host string

	// Port to listen on. Default: 9090
	Port int
}

func (c *ServerConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port <= 0 {
		c.Port = 9090
	}
}

// NewServer creates a metrics server in a stopped state. Call Start to
// begin serving.
//
// /metrics answers 503 when the registry was never initialized.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	mux := http.NewServeMux()
	if registry := GetRegistry(); registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
	}

	return &Server{
		mux: mux,
		server: &http.Server{
			Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handle mounts an extra endpoint. It must be called before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	logger.Debug("Metrics server: endpoint registered at %s", pattern)
}

// Start binds the listener and serves until ctx is cancelled or the
// listener fails.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the address cannot be bound or serving fails
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on %s", listener.Addr())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already done; give the shutdown its own budget
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. It is idempotent and safe to call
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
		} else {
			logger.Debug("Metrics server stopped")
		}
	})
	return shutdownErr
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
