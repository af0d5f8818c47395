package store_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/mdus/pkg/store"
	"github.com/marmos91/mdus/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	operation string
	failed    bool
}

type recordingMetrics struct {
	mu    sync.Mutex
	ops   []observation
	bytes map[string]int64
}

func (r *recordingMetrics) ObserveOperation(operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, observation{operation: operation, failed: err != nil})
}

func (r *recordingMetrics) RecordBytes(operation string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bytes == nil {
		r.bytes = make(map[string]int64)
	}
	r.bytes[operation] += bytes
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetrics{}
	st := store.WithMetrics(memory.New(memory.Config{}), rec)

	n, err := st.Write(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	f, err := st.Open(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.Size())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, f.Close())

	_, err = st.Open(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, []observation{
		{operation: "write"},
		{operation: "open"},
		{operation: "read"},
		{operation: "open", failed: true},
	}, rec.ops)
	assert.Equal(t, int64(5), rec.bytes["write"])
	assert.Equal(t, int64(5), rec.bytes["read"])
}

func TestWithMetrics_NilIsPassthrough(t *testing.T) {
	inner := memory.New(memory.Config{})
	assert.Same(t, store.Store(inner), store.WithMetrics(inner, nil))
}
