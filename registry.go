// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

import "sync"

// waiter is the wait record of one blocked Dequeue call.
//
// The ticket identifies the call, not the goroutine, so one goroutine
// holding several outstanding calls is unambiguous. wake is bound to the
// queue mutex: Wait releases and reacquires it atomically.
type waiter struct {
	ticket     uint64
	wake       sync.Cond
	terminated bool
}

// registry orders blocked consumers by arrival.
//
// All methods require the queue lock. Records are handed out by register
// and owned by the calling consumer; the registry only holds references
// while the consumer is waiting.
type registry struct {
	mu      sync.Locker
	records ring[*waiter]
	next    uint64 // Next ticket to hand out
}

func newRegistry(mu sync.Locker, capacity int) registry {
	return registry{
		mu:      mu,
		records: newRing[*waiter](capacity),
		next:    1,
	}
}

// register appends a wait record for the calling consumer at the tail.
func (r *registry) register() *waiter {
	w := &waiter{ticket: r.next}
	w.wake.L = r.mu
	r.next++
	r.records.push(w)
	return w
}

// unregister removes w, which must be the head record.
func (r *registry) unregister(w *waiter) {
	if !r.headIs(w) {
		panic("fwq: unregister of a waiter that is not at the head")
	}
	r.records.pop()
}

// headIs reports whether w occupies the front of the registry.
func (r *registry) headIs(w *waiter) bool {
	h, ok := r.records.peek()
	return ok && w != nil && h.ticket == w.ticket
}

// signalHead wakes the oldest waiter, if any. Only one consumer is woken
// per call.
func (r *registry) signalHead() bool {
	h, ok := r.records.peek()
	if !ok {
		return false
	}
	h.wake.Signal()
	return true
}

func (r *registry) len() int {
	return r.records.len()
}

func (r *registry) empty() bool {
	return r.records.len() == 0
}

// wakeAllTerminated marks every record terminated, wakes it and empties
// the registry. Each woken consumer observes terminated and leaves on its
// own; the registry keeps no reference after this returns.
func (r *registry) wakeAllTerminated() int {
	woken := r.records.drain()
	for _, w := range woken {
		w.terminated = true
		w.wake.Signal()
	}
	return len(woken)
}
