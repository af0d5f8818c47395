// Package http is the HTTP front end of mdus.
//
// The adapter accepts connections with net/http, reads each request fully,
// and hands it to the dispatcher as an *Exchange. The net/http goroutine
// then parks until a worker answers through the exchange. Requests that
// never reach a worker (unsupported methods, queue overflow, shutdown) are
// answered on the spot through the configured RejectFunc.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/mdus/internal/logger"
	"github.com/marmos91/mdus/pkg/adapter"
	"github.com/marmos91/mdus/pkg/protocol/files"
)

var _ adapter.Adapter = (*HTTPAdapter)(nil)

// EnqueueFunc offers an exchange to the dispatcher. It returns false when
// the exchange was not accepted.
type EnqueueFunc func(ex *Exchange) bool

// RejectFunc answers a request that will not be dispatched.
type RejectFunc func(w http.ResponseWriter, req *files.Request, status int)

// HTTPAdapter implements adapter.Adapter over net/http.
//
// Architecture:
//
//	net/http conn goroutine ──read body──▶ Exchange ──EnqueueFunc──▶ dispatcher
//	        ▲                                                          │
//	        └───────────── parked on Exchange.done ◀── worker Respond ─┘
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses
// sync.Once so Stop() is idempotent.
type HTTPAdapter struct {
	// config holds the listener configuration (address, timeouts, limits)
	config HTTPConfig

	// server is the underlying net/http server
	server *http.Server

	// listener is opened by Bind and consumed by Serve
	listener net.Listener

	// enqueue hands accepted exchanges to the dispatcher
	enqueue EnqueueFunc

	// reject answers requests that will not be dispatched
	reject RejectFunc

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once
	shutdownErr  error

	// parked counts net/http goroutines waiting on an exchange
	parked atomic.Int32
}

// HTTPConfig holds configuration parameters for the HTTP adapter.
//
// Default values (applied by New if zero):
//   - Host: localhost
//   - Port: 8000
//   - MaxBodySize: 100000 bytes
//   - ReadTimeout: 30s
//   - WriteTimeout: 0 (no timeout; large files stream as long as needed)
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 10s
type HTTPConfig struct {
	// Host is the address to bind. Default: localhost
	Host string

	// Port is the TCP port to listen on. Default: 8000
	Port int

	// Listener, if set, is used instead of binding Host:Port.
	Listener net.Listener

	// MaxBodySize is the number of request body bytes read. Longer bodies
	// are truncated.
	MaxBodySize int64

	// ReadTimeout bounds reading the complete request.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response. 0 means no timeout.
	WriteTimeout time.Duration

	// IdleTimeout closes keep-alive connections idle for this long.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds Stop when Serve's context is cancelled.
	ShutdownTimeout time.Duration
}

// applyDefaults fills in zero values with sensible defaults.
func (c *HTTPConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = files.DefaultMaxMessageSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *HTTPConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a new HTTPAdapter in a stopped state.
//
// Call OnRequest to register the dispatcher, Bind to open the socket, then
// Serve to start accepting.
//
// Parameters:
//   - config: Listener configuration
//   - reject: Answers requests that are not dispatched (required)
//
// Panics if reject is nil or config validation fails.
func New(config HTTPConfig, reject RejectFunc) *HTTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid HTTP config: %v", err))
	}
	if reject == nil {
		panic("http: reject function cannot be nil")
	}

	a := &HTTPAdapter{
		config: config,
		reject: reject,
		enqueue: func(*Exchange) bool {
			return false
		},
	}
	a.server = &http.Server{
		Handler:      a,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return a
}

// OnRequest registers the dispatcher sink. Must be called before Serve.
func (a *HTTPAdapter) OnRequest(fn EnqueueFunc) {
	a.enqueue = fn
}

// Bind opens the listening socket.
func (a *HTTPAdapter) Bind() error {
	if a.listener != nil {
		return nil
	}
	if a.config.Listener != nil {
		a.listener = a.config.Listener
		return nil
	}

	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	a.listener = listener
	return nil
}

// Serve accepts requests until ctx is cancelled or Stop is called.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener fails or was never bound
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	if err := a.Bind(); err != nil {
		return err
	}

	logger.Info("HTTP server listening on %s", a.listener.Addr())

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Serve(a.listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP shutdown signal received: %v", ctx.Err())
		// Don't use the cancelled ctx as it would cause immediate shutdown
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		return a.Stop(stopCtx)

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop closes the listener and waits for parked requests to be answered.
//
// If ctx expires first, the remaining connections are closed forcibly; their
// pending exchanges are abandoned and never served.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		logger.Debug("HTTP shutdown initiated (%d parked request(s))", a.parked.Load())

		err := a.server.Shutdown(ctx)

		// A listener that was bound but never served is not tracked by the
		// server; after Serve this is a harmless double close
		if a.listener != nil {
			_ = a.listener.Close()
		}

		if err != nil {
			logger.Warn("HTTP graceful shutdown incomplete: %v - forcing closure", err)
			_ = a.server.Close()
			a.shutdownErr = fmt.Errorf("HTTP shutdown: %w", err)
			return
		}
		logger.Debug("HTTP server stopped")
	})
	return a.shutdownErr
}

// Release answers exchanges that were accepted but never served (requests
// left in the queue at shutdown) with 503.
func (a *HTTPAdapter) Release(exchanges []*Exchange) {
	for _, ex := range exchanges {
		ex.Respond(func(w http.ResponseWriter) {
			a.reject(w, ex.Request(), http.StatusServiceUnavailable)
		})
	}
	if len(exchanges) > 0 {
		logger.Info("released %d queued request(s) at shutdown", len(exchanges))
	}
}

// Protocol returns "HTTP".
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the bound port, or the configured one before Bind.
func (a *HTTPAdapter) Port() int {
	if a.listener != nil {
		if tcp, ok := a.listener.Addr().(*net.TCPAddr); ok {
			return tcp.Port
		}
	}
	return a.config.Port
}

// Addr returns the bound address, or nil before Bind.
func (a *HTTPAdapter) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ServeHTTP implements http.Handler. It runs on the net/http connection
// goroutine.
func (a *HTTPAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// ========================================================================
	// Step 1: Read the complete request
	// ========================================================================

	body, err := io.ReadAll(io.LimitReader(r.Body, a.config.MaxBodySize))
	req := &files.Request{
		ID:     uuid.NewString(),
		Method: r.Method,
		Target: strings.TrimPrefix(r.URL.Path, "/"),
		Body:   body,
	}
	if err != nil {
		logger.Debug("[%s] failed to read request body: %v", req.ID, err)
		a.reject(w, req, http.StatusBadRequest)
		return
	}

	// ========================================================================
	// Step 2: Only GET and PUT reach the workers
	// ========================================================================

	if r.Method != http.MethodGet && r.Method != http.MethodPut {
		logger.Debug("[%s] method %s not allowed", req.ID, r.Method)
		a.reject(w, req, http.StatusMethodNotAllowed)
		return
	}

	// ========================================================================
	// Step 3: Hand off, rejecting on overflow
	// ========================================================================

	ex := newExchange(req, w)
	if !a.enqueue(ex) {
		a.reject(w, req, http.StatusServiceUnavailable)
		return
	}

	// ========================================================================
	// Step 4: Park until a worker answers or the client leaves
	// ========================================================================

	a.parked.Add(1)
	defer a.parked.Add(-1)

	select {
	case <-ex.done:
	case <-r.Context().Done():
		if ex.abandon() {
			logger.Debug("[%s] client went away while queued", req.ID)
			return
		}
		// A worker is already writing; the ResponseWriter must outlive it
		<-ex.done
	}
}
