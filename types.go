// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

// WorkQueue is the combined producer-consumer interface of a fair queue.
//
// Example:
//
//	q := fwq.NewQueue[*Job]()
//	defer q.Destroy()
//
//	go func() {
//	    for {
//	        job, err := q.Dequeue()
//	        if fwq.IsClosed(err) {
//	            return
//	        }
//	        job.Run()
//	    }
//	}()
//
//	q.Enqueue(&Job{})
type WorkQueue[T any] interface {
	Producer[T]
	Consumer[T]
	Counters

	// Destroy tears the queue down and returns the elements still pending.
	Destroy() []T
}

// Producer is the interface for enqueueing elements.
type Producer[T any] interface {
	// Enqueue appends an element at the tail (never blocks, unbounded).
	// The element is stored as-is; the queue never inspects it.
	// Returns ErrClosed if the queue has been destroyed.
	Enqueue(elem T) error
}

// Consumer is the interface for dequeueing elements.
type Consumer[T any] interface {
	// Dequeue removes and returns the head element, blocking until one is
	// available and every consumer that blocked earlier has been served.
	// Returns (zero-value, ErrClosed) if the queue is destroyed meanwhile.
	Dequeue() (T, error)

	// TryDequeue removes and returns the head element without blocking.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	// TryDequeue never joins the line of blocked consumers.
	TryDequeue() (T, error)
}

// Counters exposes the queue's instrumentation.
// Each accessor takes the queue lock and returns an exact value.
type Counters interface {
	// Pending returns the number of stored elements.
	Pending() uint64
	// Waiting returns the number of consumers blocked in Dequeue.
	Waiting() uint64
	// Visited returns the lifetime number of successful dequeues.
	Visited() uint64
}

// Stats is a snapshot of the queue counters.
type Stats struct {
	Pending uint64
	Waiting uint64
	Visited uint64
}
