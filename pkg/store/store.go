// Package store defines the storage boundary used by the file-serving
// protocol handler.
//
// A Store holds flat, named byte blobs. Names are relative to the files
// prefix: the request target "files/a.txt" reaches the store as "a.txt".
// Backends live in the subpackages:
//   - fs: local directory (default)
//   - memory: in-process map (tests, dry runs)
//   - s3: S3 or S3-compatible object storage
//   - badger: embedded BadgerDB key-value store
package store

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// File is an open, readable file with a known size.
//
// The caller must Close it on every path.
type File interface {
	io.ReadCloser

	// Size returns the number of bytes Read will produce before io.EOF.
	Size() int64
}

// Store is the storage backend interface.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same name are last-writer-wins.
type Store interface {
	// Open opens the named file for reading.
	//
	// Returns:
	//   - File: Open file (must be closed by caller)
	//   - error: ErrNotFound, ErrNotReadable, ErrInvalidName, or a backend error
	Open(ctx context.Context, name string) (File, error)

	// Write creates or truncates the named file and copies r into it.
	//
	// Returns:
	//   - int64: Number of bytes written
	//   - error: ErrInvalidName, ErrTooLarge, or a backend error
	Write(ctx context.Context, name string, r io.Reader) (int64, error)

	// Close releases backend resources. Operations after Close fail with
	// ErrUnavailable.
	Close() error
}

// ValidateName applies the strict name rules.
//
// Rejected names:
//   - empty
//   - absolute ("/etc/passwd")
//   - containing a ".." segment ("../x", "a/../../x")
//   - containing a NUL byte
//
// Returns an error wrapping ErrInvalidName, or nil.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("name contains NUL: %w", ErrInvalidName)
	case path.IsAbs(name) || strings.HasPrefix(name, `\`):
		return fmt.Errorf("absolute name %q: %w", name, ErrInvalidName)
	}

	for _, segment := range strings.FieldsFunc(name, isSeparator) {
		if segment == ".." {
			return fmt.Errorf("name %q escapes the files directory: %w", name, ErrInvalidName)
		}
	}
	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
