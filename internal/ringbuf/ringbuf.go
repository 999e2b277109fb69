// Package ringbuf provides a fixed-capacity circular buffer used for
// bounded history without reallocation.
package ringbuf

import "fmt"

// Ring is a fixed-capacity circular buffer. Once full, Append silently
// overwrites the oldest element. The zero value is not usable; construct
// with New.
type Ring[T any] struct {
	slots []T
	head  int // next write position
	size  int
}

// New creates a Ring with the given capacity. Capacity must be at least 1;
// anything else is a programming error and panics.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("ringbuf: capacity must be >= 1, got %d", capacity))
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Append stores v, overwriting the oldest element when at capacity. O(1).
func (r *Ring[T]) Append(v T) {
	r.slots[r.head] = v
	r.head = (r.head + 1) % len(r.slots)
	if r.size < len(r.slots) {
		r.size++
	}
}

// Elements returns the buffered values in chronological order, oldest first.
func (r *Ring[T]) Elements() []T {
	if r.size == 0 {
		return nil
	}
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		idx := (r.head - r.size + i + len(r.slots)) % len(r.slots)
		out[i] = r.slots[idx]
	}
	return out
}

// Len returns the number of buffered values.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Clear empties the buffer without reallocating. Slots are zeroed so
// buffered pointers do not pin their referents.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.head = 0
	r.size = 0
}
