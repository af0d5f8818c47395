package dispatch

import "sync"

// DefaultCapacity is the number of pending requests the hand-off buffer holds
// when no capacity is configured.
const DefaultCapacity = 16

// Buffer is a fixed-capacity LIFO stack of pending request handles.
//
// The most recently pushed handle is popped first. This is not a fairness
// guarantee: under sustained load older requests can starve while newer ones
// keep being served, and callers relying on Buffer get exactly that behavior.
//
// Overflow is a rejection, never a block: Push on a full buffer returns false
// and leaves the contents untouched.
//
// Invariants (all protected by mu):
//   - top is in [-1, cap(items)-1]; -1 means empty
//   - items[0..top] hold live handles, everything above top is the zero value
//
// Thread safety:
// All methods are safe for concurrent use. The buffer lock is never held
// while calling out of the package.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	top   int
}

// NewBuffer creates an empty buffer holding at most capacity handles.
//
// Panics if capacity < 1 (indicates programmer error).
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic("dispatch: buffer capacity must be at least 1")
	}
	return &Buffer[T]{
		items: make([]T, capacity),
		top:   -1,
	}
}

// Push places item on top of the stack.
//
// Returns:
//   - position: index the item was stored at (0-based), -1 on overflow
//   - ok: false if the buffer was full and the item was rejected
func (b *Buffer[T]) Push(item T) (position int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.top >= len(b.items)-1 {
		return -1, false
	}
	b.top++
	b.items[b.top] = item
	return b.top, true
}

// Pop removes and returns the most recently pushed item.
//
// Returns ok=false if the buffer is empty.
func (b *Buffer[T]) Pop() (item T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.popLocked()
}

func (b *Buffer[T]) popLocked() (item T, ok bool) {
	if b.top < 0 {
		return item, false
	}
	item = b.items[b.top]

	// Clear the slot so the buffer does not pin the handle after hand-off
	var zero T
	b.items[b.top] = zero
	b.top--
	return item, true
}

// Drain empties the buffer and returns its contents in pop (LIFO) order.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, 0, b.top+1)
	for {
		item, ok := b.popLocked()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// Len returns the number of pending items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.top + 1
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
