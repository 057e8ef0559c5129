// Package ringbuf provides a fixed-capacity, concurrency-safe ring buffer.
// Once full, each Add overwrites the oldest entry.
package ringbuf

import "sync"

// Buffer holds at most Cap() entries of T.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	next  int
	full  bool
	total uint64
}

// New creates a buffer holding up to capacity entries. A capacity below 1
// is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Add appends v, evicting the oldest entry when the buffer is full.
func (b *Buffer[T]) Add(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.next] = v
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
	b.total++
}

// Snapshot returns the retained entries, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		out := make([]T, b.next)
		copy(out, b.items[:b.next])
		return out
	}
	out := make([]T, 0, len(b.items))
	out = append(out, b.items[b.next:]...)
	out = append(out, b.items[:b.next]...)
	return out
}

// Len returns the number of retained entries.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Total returns how many entries were ever added, including evicted ones.
func (b *Buffer[T]) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
