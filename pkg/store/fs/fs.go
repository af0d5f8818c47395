package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/marmos91/mdus/pkg/store"
)

// DefaultDir is the directory, relative to the root, that holds served files.
const DefaultDir = "files"

// FSStore implements store.Store on a local directory.
//
// Files live directly under <Root>/<Dir>; the name "a.txt" maps to
// <Root>/files/a.txt with the default Dir.
//
// Path Confinement:
// In strict mode every name is checked with store.ValidateName and every
// open goes through an os.Root, so no name (including one reaching a
// symlink) can resolve outside the files directory. Without strict mode the
// name is appended to the directory as-is, which lets ".." walk out of it.
//
// Thread Safety:
// Filesystem operations are thread-safe at the OS level. Concurrent writes
// to the same name interleave at the OS level; the last truncate wins.
type FSStore struct {
	dir     string
	root    *os.Root // nil unless strict
	maxSize int64
	closed  atomic.Bool
}

// Config configures the filesystem store.
type Config struct {
	// Root is the base directory. Empty means the working directory.
	Root string

	// Dir is the served subdirectory under Root. Empty means DefaultDir.
	Dir string

	// Strict confines every name to the files directory.
	Strict bool

	// CreateDir creates the files directory if it does not exist.
	CreateDir bool

	// MaxSize is the largest file Write accepts. 0 means unlimited.
	MaxSize int64
}

// New creates a filesystem store.
//
// Context Cancellation:
// This operation checks the context before touching the filesystem.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Store configuration
//
// Returns:
//   - *FSStore: Initialized store
//   - error: Returns error if the files directory is missing (and CreateDir
//     is false), cannot be opened, or the context is cancelled
func New(ctx context.Context, cfg Config) (*FSStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	dir := filepath.Join(cfg.Root, cfg.Dir)

	// ========================================================================
	// Step 2: Make sure the files directory exists
	// ========================================================================

	if cfg.CreateDir {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create files directory: %w", err)
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("files directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("files directory %s is not a directory", dir)
	}

	s := &FSStore{
		dir:     dir,
		maxSize: cfg.MaxSize,
	}

	// ========================================================================
	// Step 3: Open the confinement root in strict mode
	// ========================================================================

	if cfg.Strict {
		root, err := os.OpenRoot(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open files directory %s: %w", dir, err)
		}
		s.root = root
	}

	return s, nil
}

// Dir returns the absolute-or-relative path of the files directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// fsFile is an open *os.File with its size measured at open time.
type fsFile struct {
	*os.File
	size int64
}

func (f *fsFile) Size() int64 { return f.size }

// Open opens the named file for reading.
//
// The size is measured by seeking to the end and back, so it reflects the
// file as it was when opened.
func (s *FSStore) Open(ctx context.Context, name string) (store.File, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Open for reading (this is the readability check)
	// ========================================================================

	f, err := s.openFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, mapOpenError(name, err)
	}

	// ========================================================================
	// Step 2: Reject directories
	// ========================================================================

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%q is a directory: %w", name, store.ErrNotReadable)
	}

	// ========================================================================
	// Step 3: Measure the size
	// ========================================================================

	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to measure %q: %w", name, err)
	}

	return &fsFile{File: f, size: size}, nil
}

// Write creates or truncates the named file and copies r into it.
//
// With a size limit the body is buffered (at most MaxSize+1 bytes) before
// the file is touched, so an oversized write leaves the old content intact.
//
// Parent directories are not created: "sub/a.txt" fails unless files/sub
// already exists.
func (s *FSStore) Write(ctx context.Context, name string, r io.Reader) (n int64, err error) {
	if err := s.check(ctx, name); err != nil {
		return 0, err
	}

	if s.maxSize > 0 {
		data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
		if err != nil {
			return 0, fmt.Errorf("failed to read body for %q: %w", name, err)
		}
		if int64(len(data)) > s.maxSize {
			return 0, fmt.Errorf("%q: %w", name, store.ErrTooLarge)
		}
		r = bytes.NewReader(data)
	}

	f, err := s.openFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %q: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %q: %w", name, cerr)
		}
	}()

	n, err = io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write %q: %w", name, err)
	}

	return n, nil
}

// Close releases the confinement root. The files themselves are untouched.
func (s *FSStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.root != nil {
		return s.root.Close()
	}
	return nil
}

// check runs the checks shared by Open and Write.
func (s *FSStore) check(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return store.ErrUnavailable
	}
	if name == "" {
		return fmt.Errorf("empty name: %w", store.ErrInvalidName)
	}
	if s.root != nil {
		return store.ValidateName(name)
	}
	return nil
}

func (s *FSStore) openFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if s.root != nil {
		return s.root.OpenFile(filepath.FromSlash(name), flag, perm)
	}
	// Plain concatenation; no cleaning
	return os.OpenFile(s.dir+string(os.PathSeparator)+name, flag, perm)
}

func mapOpenError(name string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	case errors.Is(err, iofs.ErrPermission):
		return fmt.Errorf("file %q: %w", name, store.ErrNotReadable)
	default:
		return fmt.Errorf("failed to open %q: %w", name, err)
	}
}
