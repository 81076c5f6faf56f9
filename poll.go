// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

import (
	"context"
	"time"

	"code.hybscloud.com/iox"
)

// Poll retries c.TryDequeue with adaptive backoff until it yields an
// element, the queue is destroyed, or ctx is done.
//
// Poll is the caller-side way to bound a wait. It never registers as a
// blocked consumer, so it does not take a place in waiter order: blocked
// Dequeue callers and pollers compete for elements on arrival.
//
// Returns ErrClosed if the queue is destroyed and ctx.Err() if ctx ends
// first.
func Poll[T any](ctx context.Context, c Consumer[T]) (T, error) {
	backoff := iox.Backoff{}
	for {
		elem, err := c.TryDequeue()
		if err == nil || !IsWouldBlock(err) {
			return elem, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}
		backoff.Wait()
	}
}

// PollTimeout is Poll bounded by d.
// Returns context.DeadlineExceeded if nothing arrives within d.
func PollTimeout[T any](c Consumer[T], d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return Poll(ctx, c)
}
