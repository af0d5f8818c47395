package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_LIFO(t *testing.T) {
	b := NewBuffer[string](4)

	for _, item := range []string{"r1", "r2", "r3"} {
		_, ok := b.Push(item)
		require.True(t, ok)
	}

	var order []string
	for {
		item, ok := b.Pop()
		if !ok {
			break
		}
		order = append(order, item)
	}

	assert.Equal(t, []string{"r3", "r2", "r1"}, order)
}

func TestBuffer_PushPositions(t *testing.T) {
	b := NewBuffer[int](3)

	for want := 0; want < 3; want++ {
		pos, ok := b.Push(want)
		require.True(t, ok)
		assert.Equal(t, want, pos)
	}
}

func TestBuffer_Overflow(t *testing.T) {
	b := NewBuffer[int](DefaultCapacity)

	accepted, rejected := 0, 0
	for i := 0; i < DefaultCapacity+1; i++ {
		if _, ok := b.Push(i); ok {
			accepted++
		} else {
			rejected++
		}
	}

	assert.Equal(t, DefaultCapacity, accepted)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, DefaultCapacity, b.Len())

	// The rejected item did not disturb the stack
	top, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, DefaultCapacity-1, top)

	// Space freed by the pop is usable again
	pos, ok := b.Push(100)
	require.True(t, ok)
	assert.Equal(t, DefaultCapacity-1, pos)
}

func TestBuffer_PopEmpty(t *testing.T) {
	b := NewBuffer[*int](2)

	item, ok := b.Pop()
	assert.False(t, ok)
	assert.Nil(t, item)
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_Drain(t *testing.T) {
	b := NewBuffer[int](5)
	for i := 1; i <= 3; i++ {
		b.Push(i)
	}

	assert.Equal(t, []int{3, 2, 1}, b.Drain())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Drain())
}

func TestBuffer_ReleasesSlots(t *testing.T) {
	b := NewBuffer[*int](2)
	v := 1
	b.Push(&v)
	b.Pop()

	for _, slot := range b.items {
		assert.Nil(t, slot, "popped slot should be cleared")
	}
}

func TestNewBuffer_InvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { NewBuffer[int](0) })
	assert.Panics(t, func() { NewBuffer[int](-3) })
}
