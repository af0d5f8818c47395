package badger

import (
	"context"
	"strings"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mdus/pkg/store"
	storetesting "github.com/marmos91/mdus/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBadgerStore runs the complete Store test suite against an in-memory
// Badger database.
func TestBadgerStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			s, err := New(context.Background(), Config{InMemory: true})
			require.NoError(t, err)
			return s
		},
		NewLimitedStore: func(t *testing.T, maxSize int64) store.Store {
			s, err := New(context.Background(), Config{InMemory: true, MaxSize: maxSize})
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(ctx, Config{Path: dir})
	require.NoError(t, err)
	_, err = s.Write(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(ctx, Config{Path: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	data, size := storetesting.ReadAll(t, reopened, "a.txt")
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), size)
}

func TestBadgerStore_KeyLayout(t *testing.T) {
	s, err := New(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Write(context.Background(), "a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("file:a.txt"))
		return err
	})
	assert.NoError(t, err)
}

func TestBadgerStore_MaxSize(t *testing.T) {
	s, err := New(context.Background(), Config{InMemory: true, MaxSize: 2})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Write(context.Background(), "big", strings.NewReader("123"))
	assert.ErrorIs(t, err, store.ErrTooLarge)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
