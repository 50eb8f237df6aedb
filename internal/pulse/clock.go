// Package pulse turns raw ring notification frames into discrete gesture
// events: click counts grouped by a debounce window, long presses past a hold
// threshold, and raw passthrough for everything the device profile cannot
// decode.
//
// Timing is evaluated against an injected Clock so the state machine stays
// deterministic under test; nothing in the ingestion path sleeps.
package pulse

import (
	"sync"
	"time"
)

// Clock supplies the current time and timers to the session loop.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of time.Timer the session loop needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// WallClock is the production Clock backed by the runtime clock.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

func (WallClock) NewTimer(d time.Duration) Timer {
	return wallTimer{time.NewTimer(d)}
}

type wallTimer struct{ t *time.Timer }

func (w wallTimer) C() <-chan time.Time { return w.t.C }
func (w wallTimer) Stop() bool          { return w.t.Stop() }

// FakeClock is a manually advanced Clock for tests. Advance moves time
// forward and fires every timer whose deadline has been reached, in deadline
// order. BlockUntil lets a test wait for the code under test to arm timers
// before advancing.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	waiters []waiter
}

type waiter struct {
	count int
	ch    chan struct{}
}

// NewFakeClock creates a FakeClock starting at the given instant.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{
		clock:    c,
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		t.ch <- c.now
	} else {
		c.timers = append(c.timers, t)
		c.notifyWaiters()
	}
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	for {
		var next *fakeTimer
		idx := -1
		for i, t := range c.timers {
			if t.deadline.After(c.now) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next, idx = t, i
			}
		}
		if next == nil {
			return
		}
		c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
		next.ch <- next.deadline
	}
}

// BlockUntil blocks until at least n timers are armed. Tests use it to
// synchronize with the session loop before calling Advance.
func (c *FakeClock) BlockUntil(n int) {
	c.mu.Lock()
	if len(c.timers) >= n {
		c.mu.Unlock()
		return
	}
	w := waiter{count: n, ch: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
	<-w.ch
}

// NextTimer returns the earliest armed timer deadline, if any.
func (c *FakeClock) NextTimer() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var earliest time.Time
	for _, t := range c.timers {
		if earliest.IsZero() || t.deadline.Before(earliest) {
			earliest = t.deadline
		}
	}
	return earliest, !earliest.IsZero()
}

// Timers returns the number of currently armed timers.
func (c *FakeClock) Timers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) notifyWaiters() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if len(c.timers) >= w.count {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

func (c *FakeClock) removeTimer(t *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.timers {
		if cur == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	ch       chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	return t.clock.removeTimer(t)
}
