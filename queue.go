// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

import (
	"log/slog"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// teardownSpins bounds the pure spin phase of Destroy's wait for woken
// consumers before it falls back to iox.Backoff.
const teardownSpins = 64

// Queue is an unbounded multi-producer multi-consumer FIFO queue with fair
// blocking dequeue.
//
// Elements leave in the order they were enqueued. Consumers blocked in
// Dequeue are served in the order they started waiting: an element made
// available while several consumers wait always goes to the one that
// blocked first. Only that consumer is woken per Enqueue.
//
// All state is guarded by one mutex. Pending, Waiting, Visited and Stats
// read under that mutex; Approx reads lock-free mirrors and may lag.
//
// Memory: O(pending + waiting), buffers grow by doubling and never shrink.
type Queue[T any] struct {
	mu      sync.Mutex
	data    store[T]
	waiters registry
	closed  bool
	log     *slog.Logger

	_       pad
	pending atomix.Uint64 // Mirror of data.pending()
	waiting atomix.Uint64 // Mirror of waiters.len()
	visited atomix.Uint64 // Mirror of data.visitedCount()
	_       pad
	remain  atomix.Int64 // Terminated consumers that have not returned yet
	_       pad
}

// NewQueue creates an empty queue with default options.
func NewQueue[T any]() *Queue[T] {
	return Build[T](New())
}

func newQueue[T any](opts Options) *Queue[T] {
	log := opts.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	q := &Queue[T]{
		data: newStore[T](opts.prealloc),
		log:  log,
	}
	q.waiters = newRegistry(&q.mu, defaultPrealloc)
	return q
}

// Enqueue appends elem at the tail and wakes the oldest blocked consumer,
// if any. Never blocks on capacity.
// Returns ErrClosed if the queue has been destroyed.
func (q *Queue[T]) Enqueue(elem T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.data.append(elem)
	q.waiters.signalHead()
	q.publish()
	q.mu.Unlock()
	return nil
}

// Dequeue removes and returns the head element, blocking until one is
// available and it is the caller's turn.
//
// A caller may take an element only while no consumer waits or while it
// is itself the oldest waiter. Otherwise it joins the line and waits for
// its own wake signal, then re-checks both conditions: a wake proves
// neither that data is still there nor that the caller is first.
//
// Returns (zero-value, ErrClosed) if the queue is destroyed before the
// caller is served.
func (q *Queue[T]) Dequeue() (T, error) {
	var w *waiter
	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		if !q.data.empty() && (q.waiters.empty() || q.waiters.headIs(w)) {
			break
		}
		if w == nil {
			w = q.waiters.register()
			q.publish()
		}
		w.wake.Wait()
		if w.terminated {
			q.mu.Unlock()
			// Destroy may return once this reaches zero.
			q.remain.Add(-1)
			var zero T
			return zero, ErrClosed
		}
	}

	if w != nil {
		q.waiters.unregister(w)
	}
	elem := q.data.popFront()
	if !q.data.empty() {
		// Elements enqueued while w was waking signalled w, not its
		// successor. Hand the turn on.
		q.waiters.signalHead()
	}
	q.publish()
	q.mu.Unlock()
	return elem, nil
}

// TryDequeue removes and returns the head element without blocking.
//
// TryDequeue takes part in element order but never in waiter order: it
// does not register and does not check whether others are waiting.
// Returns (zero-value, ErrWouldBlock) if the queue is empty and
// (zero-value, ErrClosed) if it has been destroyed.
func (q *Queue[T]) TryDequeue() (T, error) {
	var zero T
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return zero, ErrClosed
	}
	if q.data.empty() {
		q.mu.Unlock()
		return zero, ErrWouldBlock
	}
	elem := q.data.popFront()
	q.publish()
	q.mu.Unlock()
	return elem, nil
}

// Destroy tears the queue down.
//
// Pending elements are removed and returned in FIFO order; the queue never
// owned their contents. Every consumer blocked in Dequeue is woken with
// ErrClosed, and Destroy does not return until each of them has left the
// queue. Counters read zero afterwards.
//
// Destroy must not race with new Enqueue or Dequeue calls; calls that do
// arrive later return ErrClosed. Calling Destroy again returns nil.
func (q *Queue[T]) Destroy() []T {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	drained := q.data.drain()
	woken := q.waiters.wakeAllTerminated()
	q.remain.Add(int64(woken))
	q.publish()
	q.mu.Unlock()

	q.awaitWoken()
	q.log.Debug("fwq: queue destroyed", "drained", len(drained), "woken", woken)
	return drained
}

// awaitWoken blocks until every consumer woken by Destroy has returned.
func (q *Queue[T]) awaitWoken() {
	sw := spin.Wait{}
	for range teardownSpins {
		if q.remain.Load() == 0 {
			return
		}
		sw.Once()
	}
	backoff := iox.Backoff{}
	for q.remain.Load() != 0 {
		backoff.Wait()
	}
}

// Pending returns the number of stored elements.
func (q *Queue[T]) Pending() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data.pending()
}

// Waiting returns the number of consumers blocked in Dequeue.
func (q *Queue[T]) Waiting() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint64(q.waiters.len())
}

// Visited returns the lifetime number of successful dequeues, blocking or
// not.
func (q *Queue[T]) Visited() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data.visitedCount()
}

// Stats returns all three counters read under a single lock acquisition.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending: q.data.pending(),
		Waiting: uint64(q.waiters.len()),
		Visited: q.data.visitedCount(),
	}
}

// Approx returns the counters without taking the lock.
//
// Each field is individually up to date as of some recent mutation, but
// the three are not read atomically together. Use it for monitoring, not
// for assertions.
func (q *Queue[T]) Approx() Stats {
	return Stats{
		Pending: q.pending.LoadAcquire(),
		Waiting: q.waiting.LoadAcquire(),
		Visited: q.visited.LoadAcquire(),
	}
}

// publish refreshes the lock-free mirrors. Requires q.mu.
func (q *Queue[T]) publish() {
	q.pending.StoreRelease(q.data.pending())
	q.waiting.StoreRelease(uint64(q.waiters.len()))
	q.visited.StoreRelease(q.data.visitedCount())
}

var _ WorkQueue[int] = (*Queue[int])(nil)
