package adapter

import (
	"context"
)

// Adapter represents a protocol-specific front end managed by the server.
//
// An adapter owns the listening socket and turns inbound traffic into
// request handles for the dispatcher. It never serves a request itself.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Wiring: the server registers the request sink (OnRequest in the
//     concrete type, since the handle type is protocol-specific)
//  3. Bind: the listening socket is opened; failures abort startup
//  4. Serve: requests are accepted until the context is cancelled
//  5. Stop: graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Bind is called once
// before Serve, but Stop may be called concurrently with Serve.
type Adapter interface {
	// Bind opens the listening socket without accepting anything yet.
	//
	// Splitting Bind from Serve lets the server fail fast on a busy port
	// before it starts workers, and lets a dry run exercise the bind.
	//
	// Returns:
	//   - error if the address cannot be bound
	Bind() error

	// Serve accepts requests and blocks until the context is cancelled,
	// Stop is called, or an unrecoverable error occurs.
	//
	// Parameters:
	//   - ctx: Controls the server lifecycle. Cancellation triggers shutdown.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if the listener fails
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded the timeout
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	Protocol() string

	// Port returns the TCP port the adapter is bound to, or the configured
	// port before Bind.
	Port() int
}
