// Package files implements the mdus request protocol: a liveness probe plus
// GET and PUT of flat files under a fixed prefix.
//
// Routing table:
//
//	GET isalive          200 "true"
//	GET files/<name>     200 file bytes | 404 missing or unreadable
//	GET <other>          404
//	PUT files/<name>     200 | 400 empty body | 500 write failure
//	PUT <other>          403 (400 if the body is empty)
//	<other method>       405
//
// The handler keeps no per-request state between calls and is safe for
// concurrent use by every worker.
package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/mdus/internal/logger"
	"github.com/marmos91/mdus/pkg/metrics"
	"github.com/marmos91/mdus/pkg/stats"
	"github.com/marmos91/mdus/pkg/store"
)

const (
	// ServerName is sent in the Server header of every response.
	ServerName = "Miraculin–Daemon Unciv Server"

	// IsAliveTarget is the liveness probe target.
	IsAliveTarget = "isalive"

	// IsAliveBody is the liveness probe reply.
	IsAliveBody = "true"

	// DefaultPrefix is the target prefix that maps onto the store.
	DefaultPrefix = "files/"

	// DefaultMaxMessageSize caps the bytes a PUT writes to the store.
	DefaultMaxMessageSize = 100000

	// StatusClientClosed labels exchanges whose client left before a reply
	// was sent. Nothing is written with it.
	StatusClientClosed = 499
)

// Request is one parsed client request, as handed over by the acceptor.
type Request struct {
	// ID correlates log lines for one exchange.
	ID string

	// Method is the HTTP method.
	Method string

	// Target is the request path without its leading "/".
	Target string

	// Body holds the complete request body.
	Body []byte
}

// Config configures the protocol handler.
type Config struct {
	// Prefix is the target prefix served from the store. Default: "files/"
	Prefix string

	// StrictPaths rejects names that could escape the store with 403.
	StrictPaths bool

	// MaxMessageSize caps the bytes written per PUT. Longer bodies are
	// truncated. Default: DefaultMaxMessageSize
	MaxMessageSize int64
}

// Handler serves requests against a Store.
type Handler struct {
	store          store.Store
	stats          *stats.SessionStats
	metrics        metrics.DispatchMetrics
	prefix         string
	strictPaths    bool
	maxMessageSize int64
}

// New creates a protocol handler.
//
// Parameters:
//   - st: Backing store (required)
//   - s: Traffic counters (required)
//   - m: Optional metrics collector (nil for no metrics)
//   - cfg: Handler configuration
//
// Panics if st or s is nil (indicates programmer error).
func New(st store.Store, s *stats.SessionStats, m metrics.DispatchMetrics, cfg Config) *Handler {
	if st == nil {
		panic("files: store cannot be nil")
	}
	if s == nil {
		panic("files: stats cannot be nil")
	}
	if m == nil {
		m = metrics.NewNoopDispatchMetrics()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Handler{
		store:          st,
		stats:          s,
		metrics:        m,
		prefix:         cfg.Prefix,
		strictPaths:    cfg.StrictPaths,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// SetStandardHeaders adds the headers every mdus response carries.
func SetStandardHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Server", ServerName)
}

// Serve handles one request and writes the complete response to w.
//
// Every path records the exchange in the stats (one request with the
// received body size, one response with the sent body size) and in the
// metrics. Any file opened along the way is closed before Serve returns.
//
// Returns the status code sent.
func (h *Handler) Serve(ctx context.Context, w http.ResponseWriter, req *Request) (status int) {
	start := time.Now()
	cw := &countingWriter{ResponseWriter: w}
	SetStandardHeaders(w.Header())

	defer func() {
		h.record(req, status, cw.n, time.Since(start))
	}()

	switch req.Method {
	case http.MethodGet:
		logger.Debug("[%s] client request: GET %s", req.ID, req.Target)
		return h.get(ctx, cw, req)
	case http.MethodPut:
		logger.Debug("[%s] client request: PUT %s (%d bytes)", req.ID, req.Target, len(req.Body))
		return h.put(ctx, cw, req)
	default:
		return emptyResponse(cw, req, http.StatusMethodNotAllowed)
	}
}

// Reject sends an empty response with status and records the exchange.
//
// The acceptor uses it for requests that never reach a worker: methods
// other than GET and PUT, queue overflow, and requests left in the queue at
// shutdown.
func (h *Handler) Reject(w http.ResponseWriter, req *Request, status int) {
	start := time.Now()
	cw := &countingWriter{ResponseWriter: w}
	SetStandardHeaders(w.Header())

	emptyResponse(cw, req, status)
	h.record(req, status, cw.n, time.Since(start))
}

// Abandoned accounts for a request whose client left while it was queued.
// Only the request side is counted; no response was sent.
func (h *Handler) Abandoned(req *Request, waited time.Duration) {
	received := uint64(len(req.Body))

	h.stats.RecordRequest(received)

	h.metrics.RecordRequest(req.Method, StatusClientClosed, waited)
	h.metrics.RecordBytes("in", received)
}

// get serves GET isalive and GET files/<name>.
func (h *Handler) get(ctx context.Context, w *countingWriter, req *Request) int {
	if req.Target == IsAliveTarget {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", strconv.Itoa(len(IsAliveBody)))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, IsAliveBody)
		return http.StatusOK
	}

	name, ok := strings.CutPrefix(req.Target, h.prefix)
	if !ok {
		return emptyResponse(w, req, http.StatusNotFound)
	}
	if status, ok := h.checkName(req, name); !ok {
		return emptyResponse(w, req, status)
	}

	// ========================================================================
	// Step 1: Open the file (missing and unreadable both mean 404)
	// ========================================================================

	f, err := h.store.Open(ctx, name)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, store.ErrInvalidName) {
			status = http.StatusForbidden
		} else if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrNotReadable) {
			logger.Warn("[%s] failed to open %q: %v", req.ID, name, err)
		}
		return emptyResponse(w, req, status)
	}
	defer func() { _ = f.Close() }()

	// ========================================================================
	// Step 2: Stream it back
	// ========================================================================

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; the client sees a short body
		logger.Warn("[%s] failed to send %q: %v", req.ID, name, err)
	}
	return http.StatusOK
}

// put serves PUT files/<name>.
func (h *Handler) put(ctx context.Context, w *countingWriter, req *Request) int {
	if len(req.Body) == 0 {
		logger.Warn("[%s] empty PUT request", req.ID)
		return emptyResponse(w, req, http.StatusBadRequest)
	}

	name, ok := strings.CutPrefix(req.Target, h.prefix)
	if !ok {
		return emptyResponse(w, req, http.StatusForbidden)
	}
	if status, ok := h.checkName(req, name); !ok {
		return emptyResponse(w, req, status)
	}

	body := io.LimitReader(bytes.NewReader(req.Body), h.maxMessageSize)
	n, err := h.store.Write(ctx, name, body)
	if err != nil {
		if errors.Is(err, store.ErrInvalidName) {
			return emptyResponse(w, req, http.StatusForbidden)
		}
		logger.Warn("[%s] could not write %q: %v", req.ID, name, err)
		return emptyResponse(w, req, http.StatusInternalServerError)
	}
	logger.Debug("[%s] wrote %d bytes to %q", req.ID, n, name)

	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
	return http.StatusOK
}

// checkName applies the strict path rules when enabled.
func (h *Handler) checkName(req *Request, name string) (int, bool) {
	if !h.strictPaths {
		return 0, true
	}
	if err := store.ValidateName(name); err != nil {
		logger.Warn("[%s] rejected name: %v", req.ID, err)
		return http.StatusForbidden, false
	}
	return 0, true
}

func (h *Handler) record(req *Request, status int, sent uint64, elapsed time.Duration) {
	received := uint64(len(req.Body))

	h.stats.RecordRequest(received)
	h.stats.RecordResponse(sent)

	h.metrics.RecordRequest(req.Method, status, elapsed)
	h.metrics.RecordBytes("in", received)
	h.metrics.RecordBytes("out", sent)
}

// emptyResponse sends status with no body.
func emptyResponse(w http.ResponseWriter, req *Request, status int) int {
	logger.Debug("[%s] sending a default response (code %d)", req.ID, status)
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(status)
	return status
}

// countingWriter counts body bytes written through it.
type countingWriter struct {
	http.ResponseWriter
	n uint64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += uint64(n)
	return n, err
}
