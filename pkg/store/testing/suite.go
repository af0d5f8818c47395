package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/marmos91/mdus/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a test suite for Store implementations. It tests the
// interface contract, not implementation details, so every backend runs the
// same cases.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty Store for each test.
	NewStore func(t *testing.T) store.Store

	// NewLimitedStore creates a Store that rejects bodies larger than
	// maxSize. Optional; the size-limit cases are skipped when nil.
	NewLimitedStore func(t *testing.T, maxSize int64) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("WriteThenOpen", suite.testWriteThenOpen)
	t.Run("WriteTruncates", suite.testWriteTruncates)
	t.Run("OpenMissing", suite.testOpenMissing)
	t.Run("EmptyName", suite.testEmptyName)
	t.Run("EmptyContent", suite.testEmptyContent)
	t.Run("ConcurrentWrites", suite.testConcurrentWrites)
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("Closed", suite.testClosed)
	t.Run("TooLargeKeepsContent", suite.testTooLargeKeepsContent)
}

func (suite *StoreTestSuite) newStore(t *testing.T) store.Store {
	t.Helper()
	st := suite.NewStore(t)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// ReadAll opens name and returns its content and reported size.
func ReadAll(t *testing.T, st store.Store, name string) ([]byte, int64) {
	t.Helper()

	f, err := st.Open(context.Background(), name)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data, f.Size()
}

func (suite *StoreTestSuite) testWriteThenOpen(t *testing.T) {
	st := suite.newStore(t)
	ctx := context.Background()

	n, err := st.Write(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	data, size := ReadAll(t, st, "a.txt")
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, int64(5), size)
}

func (suite *StoreTestSuite) testWriteTruncates(t *testing.T) {
	st := suite.newStore(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "b.txt", strings.NewReader("a much longer first version"))
	require.NoError(t, err)
	_, err = st.Write(ctx, "b.txt", strings.NewReader("short"))
	require.NoError(t, err)

	data, size := ReadAll(t, st, "b.txt")
	assert.Equal(t, []byte("short"), data)
	assert.Equal(t, int64(5), size)
}

func (suite *StoreTestSuite) testOpenMissing(t *testing.T) {
	st := suite.newStore(t)

	f, err := st.Open(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, f)
}

func (suite *StoreTestSuite) testEmptyName(t *testing.T) {
	st := suite.newStore(t)
	ctx := context.Background()

	_, err := st.Open(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidName)

	_, err = st.Write(ctx, "", strings.NewReader("x"))
	assert.ErrorIs(t, err, store.ErrInvalidName)
}

func (suite *StoreTestSuite) testEmptyContent(t *testing.T) {
	st := suite.newStore(t)

	n, err := st.Write(context.Background(), "empty", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, n)

	data, size := ReadAll(t, st, "empty")
	assert.Empty(t, data)
	assert.Zero(t, size)
}

func (suite *StoreTestSuite) testConcurrentWrites(t *testing.T) {
	st := suite.newStore(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("file-%02d", i)
			_, err := st.Write(ctx, name, strings.NewReader(name))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		name := fmt.Sprintf("file-%02d", i)
		data, _ := ReadAll(t, st, name)
		assert.Equal(t, name, string(data))
	}
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	st := suite.newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Write(ctx, "c.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = st.Open(ctx, "c.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func (suite *StoreTestSuite) testClosed(t *testing.T) {
	st := suite.NewStore(t)
	require.NoError(t, st.Close())

	_, err := st.Write(context.Background(), "d.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, store.ErrUnavailable)

	_, err = st.Open(context.Background(), "d.txt")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func (suite *StoreTestSuite) testTooLargeKeepsContent(t *testing.T) {
	if suite.NewLimitedStore == nil {
		t.Skip("backend has no size limit")
	}
	st := suite.NewLimitedStore(t, 4)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	_, err := st.Write(ctx, "a.txt", strings.NewReader("old"))
	require.NoError(t, err)

	_, err = st.Write(ctx, "a.txt", strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, store.ErrTooLarge)

	data, size := ReadAll(t, st, "a.txt")
	assert.Equal(t, []byte("old"), data)
	assert.Equal(t, int64(3), size)

	// A body of exactly the limit is accepted.
	n, err := st.Write(ctx, "a.txt", strings.NewReader("0123"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
