// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

// ring is a growable double-ended buffer with power-of-2 physical size.
//
// push appends at the tail and pop removes from the head, both O(1)
// (push amortized over doubling). Vacated slots are cleared so the ring
// never retains references to elements it no longer holds.
//
// ring is not safe for concurrent use; callers hold the queue lock.
type ring[T any] struct {
	buf  []T
	head uint64 // Index of the oldest element
	tail uint64 // Index one past the newest element
	mask uint64
}

func newRing[T any](capacity int) ring[T] {
	n := uint64(roundToPow2(capacity))
	return ring[T]{
		buf:  make([]T, n),
		mask: n - 1,
	}
}

func (r *ring[T]) len() int {
	return int(r.tail - r.head)
}

func (r *ring[T]) push(elem T) {
	if r.tail-r.head > r.mask {
		r.grow()
	}
	r.buf[r.tail&r.mask] = elem
	r.tail++
}

// pop removes and returns the head element. The ring must be non-empty.
func (r *ring[T]) pop() T {
	if r.head == r.tail {
		panic("fwq: pop from empty ring")
	}
	slot := &r.buf[r.head&r.mask]
	elem := *slot
	var zero T
	*slot = zero
	r.head++
	return elem
}

// peek returns the head element without removing it.
func (r *ring[T]) peek() (T, bool) {
	if r.head == r.tail {
		var zero T
		return zero, false
	}
	return r.buf[r.head&r.mask], true
}

// drain removes every element in FIFO order.
func (r *ring[T]) drain() []T {
	n := r.len()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for r.head != r.tail {
		out = append(out, r.pop())
	}
	return out
}

// grow doubles the physical size, unwrapping elements to start at index 0.
func (r *ring[T]) grow() {
	n := uint64(len(r.buf)) * 2
	buf := make([]T, n)
	count := r.tail - r.head
	for i := uint64(0); i < count; i++ {
		buf[i] = r.buf[(r.head+i)&r.mask]
	}
	r.buf = buf
	r.head = 0
	r.tail = count
	r.mask = n - 1
}

// store is the data side of the queue: pending elements in arrival order
// plus the lifetime count of successful removals.
type store[T any] struct {
	items   ring[T]
	visited uint64
}

func newStore[T any](capacity int) store[T] {
	return store[T]{items: newRing[T](capacity)}
}

func (s *store[T]) append(elem T) {
	s.items.push(elem)
}

// popFront removes the oldest element and counts it as visited.
// The store must be non-empty.
func (s *store[T]) popFront() T {
	elem := s.items.pop()
	s.visited++
	return elem
}

func (s *store[T]) pending() uint64 {
	return uint64(s.items.len())
}

func (s *store[T]) empty() bool {
	return s.items.len() == 0
}

func (s *store[T]) visitedCount() uint64 {
	return s.visited
}

// drain hands every pending element back in FIFO order and zeroes
// both counters. Used only by teardown.
func (s *store[T]) drain() []T {
	s.visited = 0
	return s.items.drain()
}
