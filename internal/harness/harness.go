// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package harness drives an fwq.Queue with concurrent producers, blocking
// consumers and pollers, and verifies delivery and accounting afterwards.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fwq"
	"code.hybscloud.com/iox"
	"github.com/puzpuzpuz/xsync/v3"
)

// Config describes one workload.
type Config struct {
	Producers   int           // Goroutines calling Enqueue
	Consumers   int           // Goroutines looping on blocking Dequeue
	Pollers     int           // Goroutines looping on fwq.Poll
	Items       int           // Elements per producer
	PollTimeout time.Duration // Bound of each Poll attempt
	Prealloc    int           // Initial queue buffer size
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Producers < 1:
		return errors.New("harness: need at least one producer")
	case c.Consumers < 0 || c.Pollers < 0:
		return errors.New("harness: negative consumer count")
	case c.Consumers+c.Pollers < 1:
		return errors.New("harness: need at least one consumer or poller")
	case c.Items < 0:
		return errors.New("harness: negative item count")
	case c.Pollers > 0 && c.PollTimeout <= 0:
		return errors.New("harness: pollers need a positive poll timeout")
	case c.Prealloc < 1:
		return errors.New("harness: prealloc must be >= 1")
	}
	return nil
}

// Item is the payload enqueued by producers.
type Item struct {
	Producer int
	Seq      int
}

func (it *Item) key() uint64 {
	return uint64(it.Producer)<<32 | uint64(it.Seq)
}

// Report summarizes a finished workload.
type Report struct {
	Enqueued    uint64
	Visited     uint64         // Queue's lifetime dequeue count before Destroy
	Returned    int            // Elements handed back by Destroy
	Closed      int            // Workers that exited on ErrClosed
	PerConsumer map[string]int // Elements received per worker
	Elapsed     time.Duration
}

// ErrDuplicate is returned when an element is delivered more than once.
var ErrDuplicate = errors.New("harness: element delivered twice")

// ErrReordered is returned when a worker sees a producer's elements out of
// enqueue order.
var ErrReordered = errors.New("harness: producer order violated")

// run is the shared state of one workload.
type run struct {
	q       *fwq.Queue[*Item]
	cfg     Config
	log     *slog.Logger
	seen    *xsync.MapOf[uint64, string]
	counts  *xsync.MapOf[string, int]
	closed  atomix.Int64
	errOnce sync.Once
	err     error
}

func (r *run) fail(err error) {
	r.errOnce.Do(func() { r.err = err })
}

// Run executes cfg against a fresh queue. The queue is destroyed before Run
// returns. ctx bounds the wait for consumers to drain the queue; on
// expiry the queue is destroyed early and the leftovers are counted in
// Report.Returned.
func Run(ctx context.Context, cfg Config, log *slog.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	r := &run{
		q:      fwq.Build[*Item](fwq.New().Prealloc(cfg.Prealloc).Logger(log)),
		cfg:    cfg,
		log:    log,
		seen:   xsync.NewMapOf[uint64, string](),
		counts: xsync.NewMapOf[string, int](),
	}
	log.Info("workload starting",
		"producers", cfg.Producers,
		"consumers", cfg.Consumers,
		"pollers", cfg.Pollers,
		"items", cfg.Items,
	)
	start := time.Now()

	pollCtx, stopPollers := context.WithCancel(context.Background())
	defer stopPollers()

	var workers sync.WaitGroup
	for i := range cfg.Consumers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			r.consume(fmt.Sprintf("consumer-%d", i))
		}()
	}
	for i := range cfg.Pollers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			r.poll(pollCtx, fmt.Sprintf("poller-%d", i))
		}()
	}

	var producers sync.WaitGroup
	var enqueued atomix.Int64
	for p := range cfg.Producers {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for s := range cfg.Items {
				if err := r.q.Enqueue(&Item{Producer: p, Seq: s}); err != nil {
					r.fail(fmt.Errorf("producer %d: %w", p, err))
					return
				}
				enqueued.Add(1)
			}
		}()
	}
	producers.Wait()

	total := uint64(enqueued.Load())
	drained := r.awaitDrained(ctx, total)
	visited := r.q.Visited()
	left := r.q.Destroy()
	stopPollers()
	workers.Wait()

	rep := Report{
		Enqueued:    total,
		Visited:     visited,
		Returned:    len(left),
		Closed:      int(r.closed.Load()),
		PerConsumer: make(map[string]int, cfg.Consumers+cfg.Pollers),
		Elapsed:     time.Since(start),
	}
	r.counts.Range(func(name string, n int) bool {
		rep.PerConsumer[name] = n
		return true
	})
	log.Info("workload finished",
		"enqueued", rep.Enqueued,
		"visited", rep.Visited,
		"returned", rep.Returned,
		"closed", rep.Closed,
		"elapsed", rep.Elapsed,
	)

	if r.err != nil {
		return rep, r.err
	}
	if !drained {
		return rep, fmt.Errorf("harness: %d of %d elements undelivered: %w", len(left), total, ctx.Err())
	}
	return rep, r.verify(rep)
}

// consume loops on blocking Dequeue until the queue is destroyed.
func (r *run) consume(name string) {
	last := make(map[int]int)
	n := 0
	defer func() { r.counts.Store(name, n) }()
	for {
		it, err := r.q.Dequeue()
		if err != nil {
			if fwq.IsClosed(err) {
				r.closed.Add(1)
				r.log.Debug("worker closed", "worker", name, "received", n)
				return
			}
			r.fail(fmt.Errorf("%s: %w", name, err))
			return
		}
		n++
		r.record(name, it, last)
	}
}

// poll loops on fwq.PollTimeout until the queue is destroyed or ctx ends.
func (r *run) poll(ctx context.Context, name string) {
	last := make(map[int]int)
	n := 0
	defer func() { r.counts.Store(name, n) }()
	for ctx.Err() == nil {
		it, err := fwq.PollTimeout[*Item](r.q, r.cfg.PollTimeout)
		switch {
		case err == nil:
			n++
			r.record(name, it, last)
		case fwq.IsClosed(err):
			r.closed.Add(1)
			r.log.Debug("worker closed", "worker", name, "received", n)
			return
		case errors.Is(err, context.DeadlineExceeded):
			r.log.Debug("poll timed out", "worker", name)
		default:
			r.fail(fmt.Errorf("%s: %w", name, err))
			return
		}
	}
}

// record checks exactly-once delivery and per-producer order.
//
// Dequeues are serialized and follow enqueue order, so the elements one
// worker receives from a given producer must have increasing Seq.
func (r *run) record(name string, it *Item, last map[int]int) {
	if prev, loaded := r.seen.LoadOrStore(it.key(), name); loaded {
		r.fail(fmt.Errorf("%w: producer %d seq %d to %s and %s", ErrDuplicate, it.Producer, it.Seq, prev, name))
		return
	}
	if prev, ok := last[it.Producer]; ok && it.Seq <= prev {
		r.fail(fmt.Errorf("%w: %s got seq %d after %d from producer %d", ErrReordered, name, it.Seq, prev, it.Producer))
	}
	last[it.Producer] = it.Seq
}

// awaitDrained waits until the queue has delivered total elements.
func (r *run) awaitDrained(ctx context.Context, total uint64) bool {
	backoff := iox.Backoff{}
	for r.q.Visited() < total {
		if ctx.Err() != nil {
			return false
		}
		backoff.Wait()
	}
	return true
}

// verify checks the accounting of a drained workload.
func (r *run) verify(rep Report) error {
	delivered := uint64(r.seen.Size())
	if delivered+uint64(rep.Returned) != rep.Enqueued {
		return fmt.Errorf("harness: delivered %d + returned %d != enqueued %d", delivered, rep.Returned, rep.Enqueued)
	}
	if rep.Visited != delivered {
		return fmt.Errorf("harness: visited %d != delivered %d", rep.Visited, delivered)
	}
	if want := r.cfg.Consumers; rep.Closed < want {
		return fmt.Errorf("harness: %d of %d consumers saw ErrClosed", rep.Closed, want)
	}
	if s := r.q.Stats(); s != (fwq.Stats{}) {
		return fmt.Errorf("harness: counters not reset after Destroy: %+v", s)
	}
	return nil
}
