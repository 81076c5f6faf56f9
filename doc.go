// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fwq provides an unbounded FIFO work queue with fair blocking
// dequeue.
//
// Any number of producers and consumers may share one queue. Elements leave
// in the order they were enqueued, and consumers blocked in Dequeue are
// served in the order they started waiting: first blocked, first served,
// regardless of which goroutine the scheduler happens to run first.
//
// # Quick Start
//
//	q := fwq.NewQueue[*Job]()
//
//	// Producer
//	q.Enqueue(&Job{ID: 1})
//
//	// Consumer (blocks until an element arrives and it is its turn)
//	job, err := q.Dequeue()
//	if fwq.IsClosed(err) {
//	    return
//	}
//
//	// Lifecycle owner
//	leftover := q.Destroy()
//
// Builder API for sizing and diagnostics:
//
//	q := fwq.Build[*Job](fwq.New().Prealloc(4096).Logger(slog.Default()))
//
// # Fairness
//
// A naive mutex plus broadcast queue lets a consumer that arrived later
// take an element signalled for an earlier one. fwq keeps a line of wait
// records, one per blocked Dequeue call, each with its own wake signal.
// Enqueue wakes only the record at the head of the line. A woken consumer
// re-checks that it is still at the head and that an element is still
// present before taking it, and otherwise waits again:
//
//	A blocks, B blocks       line: [A B]
//	Enqueue(x)               wakes A only
//	A takes x                line: [B]
//
// A new caller takes an element directly only if nobody is waiting.
//
// # Non-blocking Dequeue
//
// TryDequeue never blocks and never joins the line:
//
//	elem, err := q.TryDequeue()
//	if fwq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// Bounded waits are layered on top of TryDequeue by the caller:
//
//	elem, err := fwq.PollTimeout[*Job](q, 50*time.Millisecond)
//	if errors.Is(err, context.DeadlineExceeded) {
//	    // Nothing arrived in time
//	}
//
// # Error Handling
//
// Two non-fatal outcomes are reported through return values:
//
//	fwq.IsWouldBlock(err)  // TryDequeue found the queue empty
//	fwq.IsClosed(err)      // the queue was destroyed
//
// [ErrWouldBlock] is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency.
//
// # Teardown
//
// Destroy returns the pending elements to the caller, wakes every blocked
// consumer with [ErrClosed], and waits until each of them has left the
// queue before returning. It must not race with new Enqueue or Dequeue
// calls; calls that arrive later return [ErrClosed].
//
// # Counters
//
// Pending, Waiting and Visited read under the queue lock and are exact.
// Approx reads lock-free mirrors intended for monitoring.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors and
// backoff, [code.hybscloud.com/atomix] for the lock-free counter mirrors,
// and [code.hybscloud.com/spin] for the teardown wait.
package fwq
