package event

import "sync/atomic"

// RingChannel is a bounded channel-like buffer with drop-oldest overflow.
//
// Producers never block: when the buffer is full the oldest queued element is
// discarded to make room. This is the backpressure policy for every queue in
// the pipeline: a slow consumer loses old data, it never stalls ingestion.
//
// Readers range over C() like a normal channel. The drop counter is exposed
// for the diagnostics surface.
type RingChannel[T any] struct {
	ch      chan T
	written atomic.Int64
	dropped atomic.Int64
}

// NewRingChannel creates a RingChannel with the given capacity.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send enqueues v, discarding the oldest queued element if the buffer is
// full. It reports whether an element was discarded. Send never blocks and
// must not be called after Close.
func (rc *RingChannel[T]) Send(v T) (droppedOldest bool) {
	for {
		select {
		case rc.ch <- v:
			rc.written.Add(1)
			return droppedOldest
		default:
		}
		// Full. Discard one and retry; another producer may win the slot
		// we freed, in which case we discard again rather than wait.
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
			droppedOldest = true
		default:
			// consumer drained the buffer between the two selects
		}
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int { return len(rc.ch) }

// Cap returns the buffer capacity.
func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Written returns the total number of elements accepted by Send.
func (rc *RingChannel[T]) Written() int64 { return rc.written.Load() }

// Dropped returns the number of elements discarded due to overflow.
func (rc *RingChannel[T]) Dropped() int64 { return rc.dropped.Load() }

// Close closes the receive channel. Sends after Close panic.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
