// Package buffer provides a generic, thread-safe sliding window.
//
// The window keeps the most recent items in insertion order. When full, a
// write evicts the oldest item. Statistics are always collected; Prometheus
// metrics are optional via WithMetrics.
package buffer

// Buffer is a bounded window of items of type T.
type Buffer[T any] interface {
	// Write appends an item, evicting the oldest when full.
	Write(item T) error

	// Snapshot returns a copy of the buffered items, oldest first.
	Snapshot() []T

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// Stats returns the window's counters.
	Stats() *Statistics

	// Close marks the buffer closed; further writes fail.
	Close() error
}

// NewCircularBuffer creates a window with the given capacity. Capacities
// below one are raised to one. Returns an error if metrics registration fails.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
