package buffer

import (
	"sync"

	"github.com/c360/devicelink/errors"
)

var errBufferClosed = errors.New("buffer closed")

// circularBuffer is a thread-safe ring that evicts its oldest item when full.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	stats    Statistics
	metrics  *bufferMetrics
	closed   bool
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		metrics:  metrics,
	}, nil
}

// tail is the index of the oldest item. Caller holds the lock.
func (cb *circularBuffer[T]) tail() int {
	return (cb.head - cb.size + cb.capacity) % cb.capacity
}

// Write appends an item, evicting the oldest when full.
func (cb *circularBuffer[T]) Write(item T) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.closed {
		return errors.WrapInvalid(errBufferClosed, "Buffer", "Write", "append item")
	}

	if cb.size == cb.capacity {
		cb.stats.recordEviction()
		cb.metrics.recordEviction()
		cb.size--
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.recordWrite(cb.size)
	cb.metrics.recordWrite(cb.size, cb.capacity)
	return nil
}

// Snapshot returns the buffered items, oldest first.
func (cb *circularBuffer[T]) Snapshot() []T {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	out := make([]T, cb.size)
	start := cb.tail()
	for i := 0; i < cb.size; i++ {
		out[i] = cb.items[(start+i)%cb.capacity]
	}
	return out
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity
}

// Stats returns the window's counters.
func (cb *circularBuffer[T]) Stats() *Statistics {
	return &cb.stats
}

// Close marks the buffer closed. Safe to call more than once.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.closed = true
	return nil
}
