package store

import "errors"

// ============================================================================
// Standard Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all store implementations. The protocol handler checks for them and
// maps them to HTTP status codes.
//
// Usage Pattern:
//
//	f, err := st.Open(ctx, name)
//	if err != nil {
//	    if errors.Is(err, store.ErrNotFound) {
//	        return http.StatusNotFound
//	    }
//	    return http.StatusInternalServerError
//	}
//
// Error Wrapping:
// Implementations wrap these errors with additional context:
//
//	return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)

var (
	// ErrNotFound indicates the named file does not exist.
	//
	// Protocol Mapping:
	//   - HTTP GET: 404 Not Found
	ErrNotFound = errors.New("file not found")

	// ErrNotReadable indicates the file exists but cannot be read.
	//
	// This error is returned when:
	//   - The process lacks read permission on the file
	//   - The name refers to a directory
	//
	// Protocol Mapping:
	//   - HTTP GET: 404 Not Found (clients cannot tell it from a missing file)
	ErrNotReadable = errors.New("file not readable")

	// ErrInvalidName indicates the name cannot be used as a file name.
	//
	// This error is returned when:
	//   - The name is empty
	//   - The name is absolute
	//   - The name contains a ".." segment (strict mode)
	//   - The name contains a NUL byte
	//
	// Protocol Mapping:
	//   - HTTP: 403 Forbidden
	ErrInvalidName = errors.New("invalid file name")

	// ErrTooLarge indicates the content exceeds the store's size limit.
	//
	// Protocol Mapping:
	//   - HTTP PUT: 500 Internal Server Error
	ErrTooLarge = errors.New("content too large")

	// ErrUnavailable indicates the store has been closed or its backend
	// cannot be reached.
	//
	// Protocol Mapping:
	//   - HTTP: 500 Internal Server Error
	ErrUnavailable = errors.New("store unavailable")
)
