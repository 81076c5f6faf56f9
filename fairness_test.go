// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Waiter-order tests. Each test stages consumers one at a time, waiting for
// the previous one to be counted in Waiting before starting the next, so
// arrival order is known.

package fwq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/fwq"
)

type receipt struct {
	consumer int
	value    int
	err      error
}

// stageConsumers starts n blocking consumers in a known arrival order.
// Each performs exactly one Dequeue and reports it on the returned channel.
func stageConsumers(t *testing.T, q *fwq.Queue[int], n int) <-chan receipt {
	t.Helper()
	out := make(chan receipt, n)
	base := q.Waiting()
	for i := range n {
		go func(id int) {
			v, err := q.Dequeue()
			out <- receipt{consumer: id, value: v, err: err}
		}(i)
		want := base + uint64(i) + 1
		waitFor(t, "consumer to block", func() bool { return q.Waiting() == want })
	}
	return out
}

func recv(t *testing.T, ch <-chan receipt) receipt {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a consumer")
		return receipt{}
	}
}

// expectSilence fails if any consumer completes within a short window.
func expectSilence(t *testing.T, ch <-chan receipt) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected completion: consumer %d got %d (%v)", r.consumer, r.value, r.err)
	case <-time.After(20 * time.Millisecond):
	}
}

// TestThreeWaitersServedInArrivalOrder starts three consumers on an empty
// queue, then feeds one element at a time.
func TestThreeWaitersServedInArrivalOrder(t *testing.T) {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	out := stageConsumers(t, q, 3)
	if q.Waiting() != 3 {
		t.Fatalf("Waiting: got %d, want 3", q.Waiting())
	}

	for i := range 3 {
		q.Enqueue(100 + i)
		r := recv(t, out)
		if r.err != nil {
			t.Fatalf("consumer %d: %v", r.consumer, r.err)
		}
		if r.consumer != i || r.value != 100+i {
			t.Fatalf("enqueue %d: consumer %d got %d, want consumer %d got %d",
				i, r.consumer, r.value, i, 100+i)
		}
		expectSilence(t, out)
		if want := uint64(2 - i); q.Waiting() != want {
			t.Fatalf("Waiting after enqueue %d: got %d, want %d", i, q.Waiting(), want)
		}
	}

	if q.Waiting() != 0 {
		t.Fatalf("Waiting: got %d, want 0", q.Waiting())
	}
	if q.Visited() != 3 {
		t.Fatalf("Visited: got %d, want 3", q.Visited())
	}
}

// TestEarlierWaiterWinsSingleElement checks that with A and B blocked, one
// element goes to A and B keeps waiting.
func TestEarlierWaiterWinsSingleElement(t *testing.T) {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	out := stageConsumers(t, q, 2)
	q.Enqueue(7)

	r := recv(t, out)
	if r.consumer != 0 || r.value != 7 {
		t.Fatalf("got consumer %d value %d, want consumer 0 value 7", r.consumer, r.value)
	}
	expectSilence(t, out)
	if q.Waiting() != 1 {
		t.Fatalf("Waiting: got %d, want 1", q.Waiting())
	}

	q.Enqueue(8)
	if r := recv(t, out); r.consumer != 1 || r.value != 8 {
		t.Fatalf("got consumer %d value %d, want consumer 1 value 8", r.consumer, r.value)
	}
}

// TestBurstHandsOff enqueues several elements back to back while consumers
// wait. Every Enqueue signals the same head; the served head must pass the
// turn on or later waiters would sleep beside pending elements.
func TestBurstHandsOff(t *testing.T) {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	const n = 8
	out := stageConsumers(t, q, n)
	for i := range n {
		q.Enqueue(i)
	}

	got := make(map[int]int, n)
	for range n {
		r := recv(t, out)
		if r.err != nil {
			t.Fatalf("consumer %d: %v", r.consumer, r.err)
		}
		got[r.consumer] = r.value
	}
	for c := range n {
		if got[c] != c {
			t.Fatalf("consumer %d got %d, want %d", c, got[c], c)
		}
	}
	if s := q.Stats(); s != (fwq.Stats{Visited: n}) {
		t.Fatalf("Stats: got %+v, want {Visited: %d}", s, n)
	}
}

// TestLateArrivalQueuesBehindHead starts a new Dequeue right after an
// Enqueue that woke the head waiter. Depending on scheduling the newcomer
// arrives while the element is still pending or after the head took it;
// in neither case may it take the head's element.
func TestLateArrivalQueuesBehindHead(t *testing.T) {
	for round := range 200 {
		q := fwq.NewQueue[int]()
		out := stageConsumers(t, q, 1)

		start := make(chan struct{})
		late := make(chan receipt, 1)
		go func() {
			<-start
			v, err := q.Dequeue()
			late <- receipt{consumer: 1, value: v, err: err}
		}()
		q.Enqueue(1)
		close(start)

		if r := recv(t, out); r.err != nil || r.value != 1 {
			t.Fatalf("round %d: first waiter got (%d, %v), want (1, nil)", round, r.value, r.err)
		}
		waitFor(t, "late consumer to block", func() bool { return q.Waiting() == 1 })
		q.Enqueue(2)
		if r := recv(t, late); r.err != nil || r.value != 2 {
			t.Fatalf("round %d: late consumer got (%d, %v), want (2, nil)", round, r.value, r.err)
		}
		q.Destroy()
	}
}

// TestWaitersAndTryDequeue shows TryDequeue competing for elements without
// disturbing waiter order.
func TestWaitersAndTryDequeue(t *testing.T) {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	out := stageConsumers(t, q, 2)

	// Consumer 0 may or may not beat the TryDequeue below to element 1.
	// Either way the waiters are served in order.
	q.Enqueue(1)
	v, err := q.TryDequeue()
	if err == nil {
		if v != 1 {
			t.Fatalf("TryDequeue: got %d, want 1", v)
		}
		q.Enqueue(2)
	} else if !fwq.IsWouldBlock(err) {
		t.Fatalf("TryDequeue: %v", err)
	}

	if r := recv(t, out); r.consumer != 0 {
		t.Fatalf("first served: got consumer %d, want 0", r.consumer)
	}
	q.Enqueue(3)
	if r := recv(t, out); r.consumer != 1 {
		t.Fatalf("second served: got consumer %d, want 1", r.consumer)
	}
}

// TestManyProducersManyConsumers runs looping consumers against concurrent
// producers and checks every element is delivered exactly once.
func TestManyProducersManyConsumers(t *testing.T) {
	const (
		producers = 4
		consumers = 6
		perProd   = 2000
		total     = producers * perProd
	)
	q := fwq.NewQueue[int]()

	var seenMu sync.Mutex
	seen := make(map[int]int, total)
	var cwg sync.WaitGroup
	for range consumers {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, err := q.Dequeue()
				if fwq.IsClosed(err) {
					return
				}
				seenMu.Lock()
				seen[v]++
				seenMu.Unlock()
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := range producers {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := range perProd {
				q.Enqueue(p*perProd + i)
			}
		}(p)
	}
	pwg.Wait()
	waitFor(t, "all elements consumed", func() bool { return q.Visited() == total })

	if left := q.Destroy(); len(left) != 0 {
		t.Fatalf("Destroy: %d elements left", len(left))
	}
	cwg.Wait()

	if len(seen) != total {
		t.Fatalf("distinct elements: got %d, want %d", len(seen), total)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("element %d delivered %d times", v, n)
		}
	}
}
