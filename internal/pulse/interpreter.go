package pulse

import (
	"fmt"
	"time"

	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/link"
	"github.com/srg/ringlink/internal/profile"
)

// Overflow selects the policy for gestures with more than three counted
// pulses. Firmware behavior past triple-click is not standardized, so the
// policy is configuration, never a constant.
type Overflow string

const (
	// OverflowCap classifies any count above three as a triple click.
	OverflowCap Overflow = "cap"
	// OverflowDrop discards counts above three without emitting anything.
	OverflowDrop Overflow = "drop"
)

// ParseOverflow validates an overflow policy token.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(s) {
	case OverflowCap, OverflowDrop:
		return Overflow(s), nil
	case "":
		return OverflowCap, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q: use cap or drop", s)
}

// Config holds the timing parameters of the state machine.
type Config struct {
	// DebounceWindow groups successive pulses into one click-count gesture.
	DebounceWindow time.Duration
	// LongPress is the hold threshold past which a press becomes ButtonLong.
	LongPress time.Duration
	// Overflow is the count-above-three policy.
	Overflow Overflow
}

type phase int

const (
	phaseIdle phase = iota
	phaseCounting
)

// Interpreter is the per-session pulse classification state machine.
//
// It is a pure state machine: frames and clock ticks go in, finalized
// semantic events come out. It never blocks and holds no goroutines; the
// owning Session serializes all calls, so Interpreter needs no locking.
type Interpreter struct {
	cfg     Config
	profile *profile.Profile

	phase     phase
	count     int
	pressed   bool
	pressedAt time.Time

	windowDeadline time.Time
	longDeadline   time.Time

	// lastTS clamps event timestamps to be monotonic within the session.
	lastTS time.Time

	overflowDropped int64
}

// NewInterpreter creates an interpreter for one device session. The profile
// must already be normalized.
func NewInterpreter(p *profile.Profile, cfg Config) *Interpreter {
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowCap
	}
	return &Interpreter{cfg: cfg, profile: p}
}

// OnFrame consumes one raw frame and returns zero or more finalized events.
//
// Button frames drive the click/hold state machine; proximity frames decode
// directly; anything unrecognized or malformed becomes RawNotify. This path
// never fails: undecodable traffic is the designed fallback for unknown
// firmware, not an error.
func (it *Interpreter) OnFrame(f link.RawFrame) []event.Semantic {
	ts := it.clamp(f.ReceivedAt)

	switch f.Characteristic {
	case it.profile.ButtonChar:
		edge, ok := it.profile.DecodeButton(f.Payload)
		if !ok {
			return []event.Semantic{it.raw(f, ts)}
		}
		return it.onEdge(edge, ts)

	case it.profile.ProximityChar:
		prox, ok := it.profile.DecodeProximity(f.Payload)
		if !ok {
			return []event.Semantic{it.raw(f, ts)}
		}
		kind := event.ProximityEnter
		if prox == profile.ProximityAway {
			kind = event.ProximityExit
		}
		return []event.Semantic{{Kind: kind, Timestamp: ts, Characteristic: f.Characteristic}}

	default:
		return []event.Semantic{it.raw(f, ts)}
	}
}

// OnTick evaluates the armed deadlines against now and returns any finalized
// events. A press still asserted at the long threshold becomes ButtonLong and
// discards the accumulated count; a lapsed debounce window with no press in
// progress finalizes the click count.
func (it *Interpreter) OnTick(now time.Time) []event.Semantic {
	if it.pressed && !it.longDeadline.IsZero() && !now.Before(it.longDeadline) {
		ts := it.clamp(it.longDeadline)
		it.resetState()
		return []event.Semantic{{Kind: event.ButtonLong, Timestamp: ts, Characteristic: it.profile.ButtonChar}}
	}

	if it.phase == phaseCounting && !it.pressed && !now.Before(it.windowDeadline) {
		return it.finalize(it.clamp(it.windowDeadline))
	}

	return nil
}

// NextDeadline returns the earliest armed deadline, if any. The session loop
// uses it to arm its timer; the interpreter itself never sleeps.
func (it *Interpreter) NextDeadline() (time.Time, bool) {
	if it.pressed {
		// While the press is held the only decision point is the long-press
		// threshold; window finalization is deferred to the release.
		return it.longDeadline, !it.longDeadline.IsZero()
	}
	if it.phase == phaseCounting {
		return it.windowDeadline, true
	}
	return time.Time{}, false
}

// Reset silently returns the machine to Idle. Used on disconnect: a
// partially observed gesture is not reported.
func (it *Interpreter) Reset() {
	it.resetState()
}

// OverflowDropped returns how many gestures were discarded by OverflowDrop.
func (it *Interpreter) OverflowDropped() int64 { return it.overflowDropped }

func (it *Interpreter) onEdge(edge profile.Edge, ts time.Time) []event.Semantic {
	// The frame may have waited in the queue while a deadline lapsed. Settle
	// anything that expired before the frame's own timestamp first, so a
	// late pulse starts a fresh gesture instead of leaking into the previous
	// one.
	out := it.expire(ts)

	switch edge {
	case profile.EdgePress:
		if !it.pressed {
			it.pressed = true
			it.pressedAt = ts
			it.longDeadline = ts.Add(it.cfg.LongPress)
		}
		if it.phase == phaseIdle {
			it.phase = phaseCounting
			it.count = 1
		} else {
			it.count++
		}
		it.windowDeadline = ts.Add(it.cfg.DebounceWindow)

	case profile.EdgeRelease:
		if !it.pressed {
			// Release without a tracked press: either the long-press already
			// fired and consumed it, or we attached mid-gesture. Ignore.
			return out
		}
		it.pressed = false
		it.longDeadline = time.Time{}

		// The debounce window may have lapsed while the press was held (a
		// hold shorter than the long threshold but longer than the window).
		// Finalize immediately in that case.
		if it.phase == phaseCounting && !ts.Before(it.windowDeadline) {
			return append(out, it.finalize(ts)...)
		}
	}
	return out
}

// expire settles deadlines that lapsed at or before ts: a press still held
// past the long threshold becomes ButtonLong, a lapsed debounce window with
// no press in progress finalizes its count. This mirrors OnTick but is keyed
// off a frame's timestamp, covering frames that outlived their deadline in
// the queue.
func (it *Interpreter) expire(ts time.Time) []event.Semantic {
	if it.pressed && !it.longDeadline.IsZero() && !ts.Before(it.longDeadline) {
		long := it.clamp(it.longDeadline)
		it.resetState()
		return []event.Semantic{{Kind: event.ButtonLong, Timestamp: long, Characteristic: it.profile.ButtonChar}}
	}

	if it.phase == phaseCounting && !it.pressed && !ts.Before(it.windowDeadline) {
		return it.finalize(it.clamp(it.windowDeadline))
	}
	return nil
}

func (it *Interpreter) finalize(ts time.Time) []event.Semantic {
	count := it.count
	it.resetState()

	var kind event.Kind
	switch {
	case count == 1:
		kind = event.ButtonSingle
	case count == 2:
		kind = event.ButtonDouble
	case count == 3:
		kind = event.ButtonTriple
	case it.cfg.Overflow == OverflowCap:
		kind = event.ButtonTriple
	default:
		it.overflowDropped++
		return nil
	}

	return []event.Semantic{{Kind: kind, Timestamp: ts, Characteristic: it.profile.ButtonChar}}
}

func (it *Interpreter) resetState() {
	it.phase = phaseIdle
	it.count = 0
	it.pressed = false
	it.pressedAt = time.Time{}
	it.windowDeadline = time.Time{}
	it.longDeadline = time.Time{}
}

func (it *Interpreter) raw(f link.RawFrame, ts time.Time) event.Semantic {
	return event.Semantic{
		Kind:           event.RawNotify,
		Timestamp:      ts,
		Characteristic: f.Characteristic,
		Payload:        f.Payload,
	}
}

// clamp enforces monotonic non-decreasing timestamps within the session.
func (it *Interpreter) clamp(ts time.Time) time.Time {
	if ts.Before(it.lastTS) {
		return it.lastTS
	}
	it.lastTS = ts
	return ts
}
