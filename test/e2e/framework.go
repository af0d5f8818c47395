package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/marmos91/mdus/internal/logger"
	httpAdapter "github.com/marmos91/mdus/pkg/adapter/http"
	"github.com/marmos91/mdus/pkg/dispatch"
	"github.com/marmos91/mdus/pkg/protocol/files"
	"github.com/marmos91/mdus/pkg/server"
	"github.com/marmos91/mdus/pkg/store"
)

// TestContext provides a complete testing environment with:
// - Running mdus server on a free port
// - An HTTP client pointed at it
// - Cleanup mechanisms
type TestContext struct {
	T       testing.TB
	Config  *TestConfig
	Server  *server.Server
	Store   store.Store
	BaseURL string
	Client  *http.Client

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan error
	tempDirs []string
}

// NewTestContext creates a new test environment with the specified configuration.
// It creates the store and starts the server, returning once every worker is ready.
func NewTestContext(t testing.TB, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		Client: &http.Client{Timeout: 30 * time.Second},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	tc.setupStore()
	tc.startServer()

	return tc
}

// setupStore initializes the store based on the test configuration
func (tc *TestContext) setupStore() {
	tc.T.Helper()

	st, err := tc.Config.CreateStore(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create store: %v", err)
	}
	tc.Store = st
}

// startServer starts the mdus server on a free loopback port
func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tc.T.Fatalf("Failed to find free port: %v", err)
	}

	threads := tc.Config.Threads
	if threads == 0 {
		threads = 4
	}

	tc.Server = server.New(server.Config{
		HTTP: httpAdapter.HTTPConfig{
			Listener:        listener,
			ShutdownTimeout: 10 * time.Second,
		},
		Pool: dispatch.Config{
			Size:     threads,
			Capacity: tc.Config.QueueCapacity,
		},
		Files:           files.Config{StrictPaths: true},
		ShutdownTimeout: 10 * time.Second,
	}, tc.Store, nil, nil)

	go func() { tc.done <- tc.Server.Run(tc.ctx) }()

	select {
	case <-tc.Server.Ready():
	case err := <-tc.done:
		tc.T.Fatalf("Server exited during startup: %v", err)
	case <-time.After(10 * time.Second):
		tc.T.Fatal("Server did not become ready")
	}

	tc.BaseURL = "http://" + tc.Server.Addr() + "/"
}

// Cleanup stops the server, closes the store and removes temp directories
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	tc.cancel()
	select {
	case err := <-tc.done:
		if err != nil {
			tc.T.Errorf("Server returned error on shutdown: %v", err)
		}
	case <-time.After(30 * time.Second):
		tc.T.Error("Server did not stop")
	}

	if err := tc.Store.Close(); err != nil {
		tc.T.Errorf("Failed to close store: %v", err)
	}

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// CreateTempDir creates a temporary directory that is removed on Cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp dir: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig implements TestContextProvider
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// URL returns the absolute URL of a request target
func (tc *TestContext) URL(target string) string {
	return tc.BaseURL + target
}

// Put stores content under files/<name> and returns the status code
func (tc *TestContext) Put(name string, content []byte) int {
	tc.T.Helper()

	status, _ := tc.Do(http.MethodPut, files.DefaultPrefix+name, content)
	return status
}

// Get fetches files/<name> and returns the status code and body
func (tc *TestContext) Get(name string) (int, []byte) {
	tc.T.Helper()

	return tc.Do(http.MethodGet, files.DefaultPrefix+name, nil)
}

// Do sends one request to target and returns the status code and body
func (tc *TestContext) Do(method, target string, body []byte) (int, []byte) {
	tc.T.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, tc.URL(target), reader)
	if err != nil {
		tc.T.Fatalf("Failed to build %s %s: %v", method, target, err)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		tc.T.Fatalf("%s %s failed: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Failed to read %s %s response: %v", method, target, err)
	}

	return resp.StatusCode, data
}

// AssertFileContent checks that GET files/<name> returns 200 with expected
func (tc *TestContext) AssertFileContent(name string, expected []byte) {
	tc.T.Helper()

	status, body := tc.Get(name)
	if status != http.StatusOK {
		tc.T.Fatalf("GET %s: status %d, want 200", name, status)
	}
	if !bytes.Equal(body, expected) {
		tc.T.Errorf("GET %s: content mismatch: got %d bytes, want %d", name, len(body), len(expected))
	}
}

// AssertStatus checks the status code of a request
func (tc *TestContext) AssertStatus(method, target string, body []byte, want int) {
	tc.T.Helper()

	status, _ := tc.Do(method, target, body)
	if status != want {
		tc.T.Errorf("%s %s: status %d, want %d", method, target, status, want)
	}
}

// String describes the context for test names and failures
func (tc *TestContext) String() string {
	return fmt.Sprintf("%s@%s", tc.Config, tc.BaseURL)
}
