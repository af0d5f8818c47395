package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpAdapter "github.com/marmos91/mdus/pkg/adapter/http"
	"github.com/marmos91/mdus/pkg/dispatch"
	"github.com/marmos91/mdus/pkg/protocol/files"
	"github.com/marmos91/mdus/pkg/store"
	"github.com/marmos91/mdus/pkg/store/fs"
	"github.com/marmos91/mdus/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

// gatedStore blocks every Open until the gate is closed, so tests can keep
// workers busy on purpose.
type gatedStore struct {
	store.Store
	gate    chan struct{}
	entered chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Store:   memory.New(memory.Config{}),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
}

func (g *gatedStore) Open(ctx context.Context, name string) (store.File, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.Store.Open(ctx, name)
}

type running struct {
	srv    *Server
	base   string
	cancel context.CancelFunc
	done   chan error
}

func testConfig(t *testing.T) Config {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	return Config{
		HTTP:            httpAdapter.HTTPConfig{Listener: listener},
		Pool:            dispatch.Config{Size: 3},
		Files:           files.Config{StrictPaths: true},
		ShutdownTimeout: 5 * time.Second,
	}
}

func start(t *testing.T, cfg Config, st store.Store) *running {
	t.Helper()

	srv := New(cfg, st, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	r := &running{srv: srv, cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-r.done:
		t.Fatalf("server exited during startup: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}
	r.base = "http://" + srv.Addr() + "/"

	t.Cleanup(func() { r.stop(t) })
	return r
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err, ok := <-r.done:
		if ok {
			assert.NoError(t, err)
			close(r.done)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

// status performs a bodiless request and returns the status code, or 0 on a
// transport error. Unlike do it is safe to call from any goroutine.
func status(method, url string) int {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode
}

// ============================================================================
// End to end
// ============================================================================

func TestServer_IsAlive(t *testing.T) {
	r := start(t, testConfig(t), memory.New(memory.Config{}))

	resp, body := do(t, http.MethodGet, r.base+"isalive", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", body)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, files.ServerName, resp.Header.Get("Server"))
}

func TestServer_PutThenGetOnDisk(t *testing.T) {
	st, err := fs.New(context.Background(), fs.Config{Root: t.TempDir(), Strict: true, CreateDir: true})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	r := start(t, testConfig(t), st)

	resp, body := do(t, http.MethodPut, r.base+"files/a.txt", "hello")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = do(t, http.MethodGet, r.base+"files/a.txt", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", body)
	assert.Equal(t, int64(5), resp.ContentLength)
}

func TestServer_StatusCodes(t *testing.T) {
	r := start(t, testConfig(t), memory.New(memory.Config{}))

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing file", http.MethodGet, "files/nope", "", http.StatusNotFound},
		{"outside prefix", http.MethodGet, "etc/passwd", "", http.StatusNotFound},
		{"put outside prefix", http.MethodPut, "other/x", "data", http.StatusForbidden},
		{"empty put", http.MethodPut, "files/x", "", http.StatusBadRequest},
		{"traversal", http.MethodPut, "files/a/../../x", "data", http.StatusForbidden},
		{"delete", http.MethodDelete, "files/x", "", http.StatusMethodNotAllowed},
		{"post", http.MethodPost, "files/x", "data", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, tt.method, r.base+tt.target, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, files.ServerName, resp.Header.Get("Server"))
		})
	}
}

func TestServer_StatsCountEveryExchange(t *testing.T) {
	r := start(t, testConfig(t), memory.New(memory.Config{}))

	do(t, http.MethodGet, r.base+"isalive", "")
	do(t, http.MethodPut, r.base+"files/a", "abc")
	do(t, http.MethodDelete, r.base+"files/a", "")

	snap := r.srv.Stats()
	assert.Equal(t, uint64(3), snap.Requests)
	assert.Equal(t, uint64(3), snap.Responses)
	assert.Equal(t, uint64(3), snap.BytesReceived)
	assert.Equal(t, uint64(4), snap.BytesSent)
}

func TestServer_StatsCountClientGoneWhileQueued(t *testing.T) {
	cfg := testConfig(t)
	t.Cleanup(func() { _ = cfg.HTTP.Listener.Close() })
	srv := New(cfg, memory.New(memory.Config{}), nil, nil)

	// Workers are not running, so the exchange stays queued while the
	// client's context is already gone.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPut, "/files/a", strings.NewReader("hello")).WithContext(ctx)
	srv.adapter.ServeHTTP(httptest.NewRecorder(), req)

	queued := srv.pool.Drain()
	require.Len(t, queued, 1)
	srv.serveExchange(context.Background(), queued[0])

	snap := srv.Stats()
	assert.Equal(t, uint64(1), snap.Requests)
	assert.Equal(t, uint64(5), snap.BytesReceived)
	assert.Equal(t, uint64(0), snap.Responses)

	_, err := srv.store.Open(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServer_ConcurrentClients(t *testing.T) {
	r := start(t, testConfig(t), memory.New(memory.Config{}))

	const clients = 8
	var wg sync.WaitGroup
	codes := make(chan int, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- status(http.MethodGet, r.base+"isalive")
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		// 503 is legitimate when the queue is momentarily full
		assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, code)
	}
}

func TestServer_Overflow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool = dispatch.Config{Size: 1, Capacity: 1}
	st := newGatedStore()
	r := start(t, cfg, st)

	// First request occupies the only worker
	first := make(chan int, 1)
	go func() { first <- status(http.MethodGet, r.base+"files/a") }()
	<-st.entered

	// Second request fills the buffer
	second := make(chan int, 1)
	go func() { second <- status(http.MethodGet, r.base+"isalive") }()
	require.Eventually(t, func() bool { return r.srv.pool.Pending() == 1 }, 5*time.Second, 5*time.Millisecond)

	// Third is rejected right away
	resp, _ := do(t, http.MethodGet, r.base+"isalive", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	close(st.gate)
	assert.Equal(t, http.StatusNotFound, <-first)
	assert.Equal(t, http.StatusOK, <-second)
}

func TestServer_ShutdownReleasesQueued(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool = dispatch.Config{Size: 1, Capacity: 2}
	st := newGatedStore()
	r := start(t, cfg, st)

	inFlight := make(chan int, 1)
	go func() { inFlight <- status(http.MethodGet, r.base+"files/a") }()
	<-st.entered

	queued := make(chan int, 1)
	go func() { queued <- status(http.MethodGet, r.base+"isalive") }()
	require.Eventually(t, func() bool { return r.srv.pool.Pending() == 1 }, 5*time.Second, 5*time.Millisecond)

	r.cancel()
	require.Eventually(t, r.srv.pool.ShuttingDown, 5*time.Second, 5*time.Millisecond)

	// The in-flight request completes; the queued one is released
	close(st.gate)
	assert.Equal(t, http.StatusNotFound, <-inFlight)
	assert.Equal(t, http.StatusServiceUnavailable, <-queued)

	select {
	case err := <-r.done:
		assert.NoError(t, err)
		close(r.done)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_DryRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true

	srv := New(cfg, memory.New(memory.Config{}), nil, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dry run did not return")
	}

	// Listener is closed again
	_, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), srv.Stats().Requests)
}

func TestServer_BindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = busy.Close() }()

	cfg := Config{
		HTTP: httpAdapter.HTTPConfig{Host: "127.0.0.1", Port: busy.Addr().(*net.TCPAddr).Port},
		Pool: dispatch.Config{Size: 2},
	}
	srv := New(cfg, memory.New(memory.Config{}), nil, nil)

	err = srv.Run(context.Background())
	require.Error(t, err)

	// No worker was ever started
	assert.Equal(t, 0, srv.pool.Ready())
}

func TestServer_RunTwicePanics(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	srv := New(cfg, memory.New(memory.Config{}), nil, nil)

	require.NoError(t, srv.Run(context.Background()))
	assert.Panics(t, func() { _ = srv.Run(context.Background()) })
}

func TestNew_PanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() { New(testConfig(t), nil, nil, nil) })
}
