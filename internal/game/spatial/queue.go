package spatial

import (
	"runtime"
	"sync/atomic"
)

// cacheLineSize is the typical CPU cache line size (64 bytes on x86-64).
const cacheLineSize = 64

type pad [cacheLineSize]byte

// MPSCQueue is a lock-free multi-producer single-consumer ring buffer with
// cache-line padding to prevent false sharing between producer and consumer
// positions. Gateway goroutines push remote-call completions concurrently;
// the tick loop is the single consumer draining once per tick.
type MPSCQueue[T any] struct {
	_pad0 pad

	head  uint64 // write position (producers)
	_pad1 pad

	tail  uint64 // read position (consumer)
	_pad2 pad

	mask uint64 // capacity-1 for fast modulo
	data []T
}

// NewMPSCQueue creates a queue. capacity is rounded up to a power of 2.
func NewMPSCQueue[T any](capacity int) *MPSCQueue[T] {
	c := 1
	for c < capacity {
		c <<= 1
	}

	return &MPSCQueue[T]{
		mask: uint64(c - 1),
		data: make([]T, c),
	}
}

// TryPush attempts to add an item. Returns false if the queue is full.
// Safe for multiple concurrent producers.
func (q *MPSCQueue[T]) TryPush(item T) bool {
	for {
		head := atomic.LoadUint64(&q.head)
		tail := atomic.LoadUint64(&q.tail)

		if head-tail > q.mask {
			return false // full
		}

		if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
			q.data[head&q.mask] = item
			return true
		}

		// CAS lost to another producer, retry
		runtime.Gosched()
	}
}

// TryPop removes an item. Must only be called from the single consumer.
func (q *MPSCQueue[T]) TryPop() (T, bool) {
	var zero T

	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)

	if tail >= head {
		return zero, false
	}

	item := q.data[tail&q.mask]
	atomic.StoreUint64(&q.tail, tail+1)

	return item, true
}

// DrainTo reads available items into a pre-allocated slice and returns the
// number written. Zero-allocation batch consume for the tick loop.
func (q *MPSCQueue[T]) DrainTo(buf []T) int {
	count := 0
	for count < len(buf) {
		item, ok := q.TryPop()
		if !ok {
			break
		}
		buf[count] = item
		count++
	}
	return count
}

// Len returns the approximate number of queued items.
func (q *MPSCQueue[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Cap returns the queue capacity.
func (q *MPSCQueue[T]) Cap() int {
	return int(q.mask + 1)
}
