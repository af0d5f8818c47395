package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/mdus/internal/logger"
	httpAdapter "github.com/marmos91/mdus/pkg/adapter/http"
	"github.com/marmos91/mdus/pkg/dispatch"
	"github.com/marmos91/mdus/pkg/metrics"
	"github.com/marmos91/mdus/pkg/protocol/files"
	"github.com/marmos91/mdus/pkg/stats"
	"github.com/marmos91/mdus/pkg/store"
	"golang.org/x/sync/errgroup"
)

// Config gathers the settings of every component the server wires together.
type Config struct {
	// HTTP configures the listener
	HTTP httpAdapter.HTTPConfig

	// Pool configures the worker pool and its hand-off buffer
	Pool dispatch.Config

	// Files configures the protocol handler
	Files files.Config

	// Heartbeat is the statistics report period (0 disables it)
	Heartbeat time.Duration

	// ShutdownTimeout bounds the whole shutdown sequence. Default: 10s
	ShutdownTimeout time.Duration

	// DryRun performs the full setup and shuts down without serving
	DryRun bool
}

// Server owns the lifecycle of one mdus instance: the HTTP adapter, the
// worker pool, the heartbeat and the optional metrics endpoint, all sharing
// one store and one set of session statistics.
//
// Architecture:
//
//	HTTPAdapter ──Enqueue──▶ dispatch.Pool ──worker──▶ files.Handler ──▶ store.Store
//	     ▲                                                  │
//	     └──────────────── Exchange.Respond ◀───────────────┘
//
// Lifecycle:
//  1. Creation: New() with store and metrics
//  2. Run(): bind, start workers, wait for readiness, then serve
//  3. Shutdown: context cancellation runs the shutdown sequence
//
// Thread safety:
// Run must be called once. Stats and Addr are safe to call at any time.
type Server struct {
	config  Config
	store   store.Store
	stats   *stats.SessionStats
	handler *files.Handler

	pool      *dispatch.Pool[*httpAdapter.Exchange]
	adapter   *httpAdapter.HTTPAdapter
	heartbeat *stats.Heartbeat

	// metricsServer is nil when metrics are disabled
	metricsServer *metrics.Server

	runOnce      sync.Once
	shutdownOnce sync.Once
	shutdownErr  error

	// ready is closed once the listener is bound and every worker is ready
	ready chan struct{}
}

// New creates a Server in a stopped state.
//
// Parameters:
//   - cfg: Component settings
//   - st: The store files are served from (required, not closed by Server)
//   - m: Optional dispatch metrics (nil for no metrics)
//   - metricsServer: Optional /metrics listener run alongside the adapter;
//     the session counters are mounted on it at /stats
//
// Panics if st is nil or the pool or adapter configuration is invalid
// (indicates programmer error).
func New(cfg Config, st store.Store, m metrics.DispatchMetrics, metricsServer *metrics.Server) *Server {
	if st == nil {
		panic("store cannot be nil")
	}
	if m == nil {
		m = metrics.NewNoopDispatchMetrics()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:        cfg,
		store:         st,
		stats:         stats.New(),
		metricsServer: metricsServer,
		ready:         make(chan struct{}),
	}

	s.handler = files.New(st, s.stats, m, cfg.Files)
	s.pool = dispatch.NewPool[*httpAdapter.Exchange](cfg.Pool, dispatch.HandlerFunc[*httpAdapter.Exchange](s.serveExchange), m)
	s.adapter = httpAdapter.New(cfg.HTTP, s.handler.Reject)
	s.adapter.OnRequest(s.pool.Enqueue)
	s.heartbeat = stats.NewHeartbeat(s.stats, cfg.Heartbeat)

	if metricsServer != nil {
		metricsServer.Handle("/stats", s.stats)
	}

	return s
}

// serveExchange is the worker body: it answers one exchange with the
// protocol handler.
func (s *Server) serveExchange(ctx context.Context, ex *httpAdapter.Exchange) {
	answered := ex.Respond(func(w http.ResponseWriter) {
		status := s.handler.Serve(ctx, w, ex.Request())
		logger.Debug("[%s] %s %s -> %d (queued %v)",
			ex.ID(), ex.Request().Method, ex.Request().Target, status, ex.Waited())
	})
	if !answered {
		s.handler.Abandoned(ex.Request(), ex.Waited())
		logger.Debug("[%s] client went away before a worker picked it up", ex.ID())
	}
}

// Run sets everything up and serves until ctx is cancelled.
//
// Startup order:
//  1. Bind the listener (fails fast on a busy port, before any worker runs)
//  2. Start the worker pool
//  3. Wait until every worker is ready
//  4. Accept requests, run the heartbeat and the metrics endpoint
//
// In dry-run mode Run stops after step 3 and shuts down cleanly.
//
// Returns:
//   - nil on graceful shutdown (including dry runs)
//   - error if startup failed or a component failed while serving
//
// Panics if called more than once.
func (s *Server) Run(ctx context.Context) error {
	called := false
	var err error
	s.runOnce.Do(func() {
		called = true
		err = s.run(ctx)
	})
	if !called {
		panic("Run() has already been called on this server instance")
	}
	return err
}

func (s *Server) run(ctx context.Context) error {
	// ========================================================================
	// Step 1: Bind
	// ========================================================================

	if err := s.adapter.Bind(); err != nil {
		return fmt.Errorf("%s adapter: %w", s.adapter.Protocol(), err)
	}
	logger.Info("Bound %s adapter on port %d", s.adapter.Protocol(), s.adapter.Port())

	// ========================================================================
	// Step 2: Start workers
	// ========================================================================

	logger.Info("Creating thread pool of size %d...", s.pool.Size())
	if err := s.pool.Start(ctx); err != nil {
		_ = s.adapter.Stop(context.Background())
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	// ========================================================================
	// Step 3: Readiness barrier
	// ========================================================================

	s.pool.WaitUntilReady()
	logger.Info("All %d threads ready", s.pool.Size())
	close(s.ready)

	if s.config.DryRun {
		logger.Info("Dry run: setup succeeded, shutting down")
		return s.shutdown()
	}

	// ========================================================================
	// Step 4: Serve
	// ========================================================================

	g, gctx := errgroup.WithContext(ctx)

	// The adapter is stopped by the shutdown sequence, not by cancellation,
	// so that queued requests are released before the listener closes
	g.Go(func() error {
		return s.adapter.Serve(context.Background())
	})

	if s.heartbeat.Enabled() {
		g.Go(func() error {
			return s.heartbeat.Run(gctx)
		})
	}

	if s.metricsServer != nil {
		g.Go(func() error {
			return s.metricsServer.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received (reason: %v)", context.Cause(gctx))
		return s.shutdown()
	})

	logger.Info("mdus is now accepting requests on %s", s.adapter.Addr())

	err := g.Wait()
	logger.Info("mdus stopped")
	return err
}

// shutdown runs the shutdown sequence once and returns its outcome.
//
// Order:
//  1. Stop handing out work: new requests are answered 503 by the adapter
//  2. Join the workers; in-flight requests complete
//  3. Answer the requests still queued with 503
//  4. Stop the listener and wait for the remaining connections
//
// The whole sequence shares one ShutdownTimeout budget.
func (s *Server) shutdown() error {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		var errs []error

		logger.Info("Initiating graceful shutdown")
		s.pool.InitiateShutdown()

		if err := s.pool.Shutdown(ctx); err != nil {
			logger.Warn("Worker pool did not stop in time: %v", err)
			errs = append(errs, err)
		} else {
			logger.Debug("All workers joined")
		}

		s.adapter.Release(s.pool.Drain())

		if err := s.adapter.Stop(ctx); err != nil {
			logger.Error("Error stopping %s adapter: %v", s.adapter.Protocol(), err)
			errs = append(errs, err)
		}

		logger.Info("%s", stats.FormatHeartbeat(s.stats.Snapshot()))
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// Ready returns a channel closed once the listener is bound and every worker
// is ready.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stats returns a snapshot of the session counters.
func (s *Server) Stats() stats.Snapshot {
	return s.stats.Snapshot()
}

// Addr returns the bound listener address, or "" before Run binds it.
func (s *Server) Addr() string {
	if addr := s.adapter.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
