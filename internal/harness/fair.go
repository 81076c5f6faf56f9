// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"code.hybscloud.com/fwq"
	"code.hybscloud.com/iox"
)

// Served pairs a consumer, identified by blocking order, with the element
// it received.
type Served struct {
	Consumer int
	Element  int
}

// Fairness blocks n consumers on an empty queue one at a time, then feeds
// n elements one at a time and records who receives each. With a fair
// queue, element i goes to consumer i.
func Fairness(ctx context.Context, n int, log *slog.Logger) ([]Served, error) {
	if n < 1 {
		return nil, fmt.Errorf("harness: need at least one consumer, got %d", n)
	}
	q := fwq.Build[int](fwq.New().Logger(log))
	defer q.Destroy()

	out := make(chan Served, n)
	for i := range n {
		go func() {
			v, err := q.Dequeue()
			if err == nil {
				out <- Served{Consumer: i, Element: v}
			}
		}()
		if err := awaitWaiting(ctx, q, uint64(i+1)); err != nil {
			return nil, err
		}
		log.Debug("consumer blocked", "consumer", i)
	}

	order := make([]Served, 0, n)
	for i := range n {
		if err := q.Enqueue(i); err != nil {
			return order, err
		}
		select {
		case s := <-out:
			log.Info("served", "consumer", s.Consumer, "element", s.Element)
			order = append(order, s)
		case <-ctx.Done():
			return order, ctx.Err()
		}
	}
	return order, nil
}

// awaitWaiting waits until q reports want blocked consumers.
func awaitWaiting(ctx context.Context, q *fwq.Queue[int], want uint64) error {
	backoff := iox.Backoff{}
	for q.Waiting() != want {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("harness: %d consumers blocked, want %d: %w", q.Waiting(), want, err)
		}
		backoff.Wait()
	}
	return nil
}

// DefaultConfig is a small mixed workload.
func DefaultConfig() Config {
	return Config{
		Producers:   4,
		Consumers:   4,
		Pollers:     1,
		Items:       10000,
		PollTimeout: 10 * time.Millisecond,
		Prealloc:    1024,
	}
}
