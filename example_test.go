// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fwq_test

import (
	"fmt"
	"time"

	"code.hybscloud.com/fwq"
)

// ExampleNewQueue demonstrates FIFO order with blocking and non-blocking
// removal.
func ExampleNewQueue() {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	for i := 1; i <= 3; i++ {
		q.Enqueue(i * 10)
	}

	v, _ := q.Dequeue()
	fmt.Println(v)
	v, _ = q.TryDequeue()
	fmt.Println(v)
	v, _ = q.Dequeue()
	fmt.Println(v)

	_, err := q.TryDequeue()
	fmt.Println(fwq.IsWouldBlock(err))
	fmt.Println(q.Stats())

	// Output:
	// 10
	// 20
	// 30
	// true
	// {0 0 3}
}

// ExampleQueue_Destroy shows pending elements being handed back.
func ExampleQueue_Destroy() {
	q := fwq.NewQueue[string]()
	q.Enqueue("a")
	q.Enqueue("b")

	fmt.Println(q.Destroy())
	fmt.Println(q.Enqueue("c"))

	// Output:
	// [a b]
	// fwq: queue destroyed
}

// ExamplePollTimeout bounds a wait on an empty queue.
func ExamplePollTimeout() {
	q := fwq.NewQueue[int]()
	defer q.Destroy()

	_, err := fwq.PollTimeout[int](q, 10*time.Millisecond)
	fmt.Println(err)

	// Output:
	// context deadline exceeded
}
