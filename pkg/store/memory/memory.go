package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/mdus/pkg/store"
)

// MemoryStore implements store.Store using in-memory storage.
//
// It's designed for:
//   - Testing and development
//   - Dry runs, where nothing should touch the disk
//
// Characteristics:
//   - Volatile: Data lost on restart
//   - Memory-bound: Limited by available RAM and MaxSize
//   - Thread-safe: Protected by RWMutex
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Content is copied on
// write, and readers get their own bytes.Reader over an immutable slice.
type MemoryStore struct {
	// mu protects data and closed
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	// maxSize caps a single file. 0 means unlimited.
	maxSize int64
}

// Config configures the memory store.
type Config struct {
	// MaxSize is the largest file the store accepts, in bytes. 0 means unlimited.
	MaxSize int64
}

// New creates an empty in-memory store.
func New(cfg Config) *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]byte),
		maxSize: cfg.MaxSize,
	}
}

// memoryFile is a File over an immutable byte slice.
type memoryFile struct {
	*bytes.Reader
	size int64
}

func (f *memoryFile) Size() int64  { return f.size }
func (f *memoryFile) Close() error { return nil }

// Open returns a reader over the named blob.
func (s *MemoryStore) Open(ctx context.Context, name string) (store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("open: %w", store.ErrInvalidName)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}

	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	}

	return &memoryFile{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

// Write replaces the named blob with the content of r.
func (s *MemoryStore) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("write: %w", store.ErrInvalidName)
	}

	// Read outside the lock; r may be a slow network body
	data, err := readLimited(r, s.maxSize)
	if err != nil {
		return 0, fmt.Errorf("write %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrUnavailable
	}
	s.data[name] = data

	return int64(len(data)), nil
}

// Close drops all content.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// readLimited reads r fully, failing with store.ErrTooLarge once more than
// limit bytes arrive. A limit of 0 means unlimited.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, store.ErrTooLarge
	}
	return data, nil
}
