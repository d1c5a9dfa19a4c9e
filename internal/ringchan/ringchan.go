// Package ringchan provides a bounded channel-like buffer with
// overwrite-oldest semantics. Producers never block indefinitely: when
// the buffer is full the oldest element is discarded and counted.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel. There may be many writers; the
// consumer reads via C() and must be the only reader for Len to be
// meaningful.
type RingChannel[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive-only side for consumers to range over.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an element, discarding the oldest when full.
func (rc *RingChannel[T]) Send(v T) {
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			rc.dropped.Add(1)
		default:
		}
		rc.ch <- v
	}
}

// Dropped reports how many elements were overwritten since creation.
func (rc *RingChannel[T]) Dropped() int64 {
	return rc.dropped.Load()
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the buffer. Send panics afterwards, so stop all
// producers first.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
