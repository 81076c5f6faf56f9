// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq

import "log/slog"

// defaultPrealloc is the initial physical size of the element and waiter
// buffers. Both grow on demand.
const defaultPrealloc = 16

// Options configures queue creation.
type Options struct {
	// Initial buffer size (rounds up to next power of 2)
	prealloc int

	// Teardown diagnostics; nil means discard
	logger *slog.Logger
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	q := fwq.Build[*Request](fwq.New().Prealloc(4096).Logger(slog.Default()))
type Builder struct {
	opts Options
}

// New creates a queue builder with default options.
func New() *Builder {
	return &Builder{opts: Options{prealloc: defaultPrealloc}}
}

// Prealloc sets the initial element buffer size.
//
// The queue is unbounded: this is a sizing hint, not a capacity limit.
// Rounds up to the next power of 2. Panics if n < 1.
func (b *Builder) Prealloc(n int) *Builder {
	if n < 1 {
		panic("fwq: prealloc must be >= 1")
	}
	b.opts.prealloc = n
	return b
}

// Logger sets the logger used for teardown diagnostics.
// The queue never logs on the Enqueue/Dequeue paths.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.opts.logger = l
	return b
}

// Build creates a Queue[T] from the builder's options.
func Build[T any](b *Builder) *Queue[T] {
	return newQueue[T](b.opts)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
