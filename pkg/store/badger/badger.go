package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/mdus/pkg/store"
)

// keyPrefix namespaces file content in the database.
//
// Key Format:
//
//	file:<name>  ->  raw file bytes
//
// Example: file:a.txt
const keyPrefix = "file:"

// BadgerStore implements store.Store using BadgerDB for persistence.
//
// It suits deployments that want the served files in a single crash-safe
// embedded database instead of a directory tree. Each file is one value;
// Write replaces it in a single transaction, so readers observe either the
// old or the new content, never a truncated mix.
//
// Thread Safety:
// BadgerDB handles concurrent transactions internally (MVCC). mu only
// guards the closed flag against use-after-close.
type BadgerStore struct {
	db      *badger.DB
	maxSize int64

	mu     sync.RWMutex
	closed bool
}

// Config configures the Badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the whole database in RAM (tests).
	InMemory bool

	// MaxSize is the largest file Write accepts. 0 means unlimited.
	MaxSize int64
}

// New opens (or creates) a Badger database.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Store configuration
//
// Returns:
//   - *BadgerStore: Open store (must be closed by caller)
//   - error: Returns error if the database cannot be opened
func New(ctx context.Context, cfg Config) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	return &BadgerStore{db: db, maxSize: cfg.MaxSize}, nil
}

// badgerFile holds a copy of the value taken inside the read transaction.
type badgerFile struct {
	*bytes.Reader
	size int64
}

func (f *badgerFile) Size() int64  { return f.size }
func (f *badgerFile) Close() error { return nil }

// Open reads the named file.
//
// The value is copied out of the transaction, so the returned File stays
// valid after later writes to the same name.
func (s *BadgerStore) Open(ctx context.Context, name string) (store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("empty name: %w", store.ErrInvalidName)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrUnavailable
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}

	return &badgerFile{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

// Write stores the content of r under name, replacing any previous value.
func (s *BadgerStore) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("empty name: %w", store.ErrInvalidName)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read body for %q: %w", name, err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return 0, fmt.Errorf("%q: %w", name, store.ErrTooLarge)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrUnavailable
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fileKey(name), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store %q: %w", name, err)
	}

	return int64(len(data)), nil
}

// Close closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func fileKey(name string) []byte {
	return []byte(keyPrefix + name)
}
