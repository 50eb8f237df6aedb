package pulse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/link"
	"github.com/srg/ringlink/internal/profile"
)

const (
	testButtonChar    = "ff31"
	testProximityChar = "ff32"
	testWindow        = 400 * time.Millisecond
	testLongPress     = 700 * time.Millisecond
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testProfile(t *testing.T) *profile.Profile {
	p := &profile.Profile{
		Name:          "test-ring",
		ButtonChar:    testButtonChar,
		ProximityChar: testProximityChar,
	}
	require.NoError(t, p.Normalize())
	return p
}

func newTestInterpreter(t *testing.T, overflow Overflow) *Interpreter {
	return NewInterpreter(testProfile(t), Config{
		DebounceWindow: testWindow,
		LongPress:      testLongPress,
		Overflow:       overflow,
	})
}

// press/release feed button edges as single status bytes.
func press(it *Interpreter, ts time.Time) []event.Semantic {
	return it.OnFrame(link.RawFrame{Characteristic: testButtonChar, Payload: []byte{0x01}, ReceivedAt: ts})
}

func release(it *Interpreter, ts time.Time) []event.Semantic {
	return it.OnFrame(link.RawFrame{Characteristic: testButtonChar, Payload: []byte{0x00}, ReceivedAt: ts})
}

// tap performs a short press+release pulse at ts.
func tap(t *testing.T, it *Interpreter, ts time.Time) {
	require.Empty(t, press(it, ts))
	require.Empty(t, release(it, ts.Add(30*time.Millisecond)))
}

// drain advances simulated time past every armed deadline, collecting
// whatever the interpreter finalizes.
func drain(it *Interpreter) []event.Semantic {
	var out []event.Semantic
	for {
		deadline, ok := it.NextDeadline()
		if !ok {
			return out
		}
		out = append(out, it.OnTick(deadline)...)
	}
}

// TestClickCountClassification verifies that N pulses spaced inside the
// debounce window produce exactly one event classified by count.
func TestClickCountClassification(t *testing.T) {
	tests := []struct {
		name    string
		taps    int
		spacing time.Duration
		want    event.Kind
	}{
		{"single", 1, 0, event.ButtonSingle},
		{"double 150ms apart", 2, 150 * time.Millisecond, event.ButtonDouble},
		{"triple 100ms apart", 3, 100 * time.Millisecond, event.ButtonTriple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newTestInterpreter(t, OverflowCap)

			ts := testStart
			for i := 0; i < tt.taps; i++ {
				tap(t, it, ts)
				ts = ts.Add(tt.spacing)
			}

			events := drain(it)
			require.Len(t, events, 1, "exactly one event per completed gesture")
			assert.Equal(t, tt.want, events[0].Kind)
			assert.Equal(t, testButtonChar, events[0].Characteristic)
		})
	}
}

// TestPulsesOutsideWindowAreSeparateGestures verifies that pulses spaced
// wider than the debounce window each finalize as their own single click.
func TestPulsesOutsideWindowAreSeparateGestures(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	var got []event.Kind
	ts := testStart
	for i := 0; i < 3; i++ {
		tap(t, it, ts)
		for _, ev := range drain(it) {
			got = append(got, ev.Kind)
		}
		ts = ts.Add(testWindow + 200*time.Millisecond)
	}

	assert.Equal(t, []event.Kind{event.ButtonSingle, event.ButtonSingle, event.ButtonSingle}, got)
}

// TestLatePressFinalizesLapsedWindow verifies that a press whose timestamp
// falls past an already-lapsed debounce window settles the previous gesture
// first instead of joining its count. Frames can sit queued across a window
// deadline, so the edge itself must honor the lapse even when no tick was
// delivered in between.
func TestLatePressFinalizesLapsedWindow(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	tap(t, it, testStart)

	// Well past the window, with no intervening tick.
	events := press(it, testStart.Add(500*time.Millisecond))
	require.Len(t, events, 1, "lapsed window must finalize before the new press counts")
	assert.Equal(t, event.ButtonSingle, events[0].Kind)
	assert.False(t, events[0].Timestamp.Before(testStart.Add(testWindow)))

	assert.Empty(t, release(it, testStart.Add(530*time.Millisecond)))

	rest := drain(it)
	require.Len(t, rest, 1)
	assert.Equal(t, event.ButtonSingle, rest[0].Kind, "the late pulse is its own gesture")
}

// TestDelayedReleasePastLongThreshold verifies that a release frame whose
// timestamp lands beyond the long-press threshold yields ButtonLong, the same
// outcome a timer tick at the threshold would have produced.
func TestDelayedReleasePastLongThreshold(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	require.Empty(t, press(it, testStart))

	events := release(it, testStart.Add(testLongPress+50*time.Millisecond))
	require.Len(t, events, 1)
	assert.Equal(t, event.ButtonLong, events[0].Kind)
	assert.False(t, events[0].Timestamp.Before(testStart.Add(testLongPress)))

	assert.Empty(t, drain(it))
}

// TestLongPressEmitsLongOnly verifies that a pulse held past the long
// threshold emits exactly one ButtonLong and no count-based event, even when
// clicks were counted before the hold began.
func TestLongPressEmitsLongOnly(t *testing.T) {
	t.Run("held 900ms", func(t *testing.T) {
		it := newTestInterpreter(t, OverflowCap)

		require.Empty(t, press(it, testStart))

		// The debounce window lapses at 400ms but the press is still held, so
		// nothing may finalize yet.
		deadline, ok := it.NextDeadline()
		require.True(t, ok)
		assert.Equal(t, testStart.Add(testLongPress), deadline, "long threshold is the only decision point while held")

		events := it.OnTick(testStart.Add(testLongPress))
		require.Len(t, events, 1)
		assert.Equal(t, event.ButtonLong, events[0].Kind)

		// The eventual release is not a new gesture.
		assert.Empty(t, release(it, testStart.Add(900*time.Millisecond)))
		assert.Empty(t, drain(it))
	})

	t.Run("click then hold discards the count", func(t *testing.T) {
		it := newTestInterpreter(t, OverflowCap)

		tap(t, it, testStart)
		holdStart := testStart.Add(100 * time.Millisecond)
		require.Empty(t, press(it, holdStart))

		events := it.OnTick(holdStart.Add(testLongPress))
		require.Len(t, events, 1)
		assert.Equal(t, event.ButtonLong, events[0].Kind)

		assert.Empty(t, release(it, holdStart.Add(time.Second)))
		assert.Empty(t, drain(it))
	})
}

// TestHoldShorterThanLongThreshold verifies deferred finalization: a press
// held past the debounce window but released before the long threshold
// finalizes its count at the release.
func TestHoldShorterThanLongThreshold(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	require.Empty(t, press(it, testStart))
	events := release(it, testStart.Add(550*time.Millisecond))

	require.Len(t, events, 1)
	assert.Equal(t, event.ButtonSingle, events[0].Kind)
	assert.Empty(t, drain(it))
}

// TestOverflowPolicy verifies the configurable count-above-three behavior.
func TestOverflowPolicy(t *testing.T) {
	fourTaps := func(t *testing.T, it *Interpreter) {
		ts := testStart
		for i := 0; i < 4; i++ {
			tap(t, it, ts)
			ts = ts.Add(100 * time.Millisecond)
		}
	}

	t.Run("cap classifies as triple", func(t *testing.T) {
		it := newTestInterpreter(t, OverflowCap)
		fourTaps(t, it)

		events := drain(it)
		require.Len(t, events, 1)
		assert.Equal(t, event.ButtonTriple, events[0].Kind)
		assert.Zero(t, it.OverflowDropped())
	})

	t.Run("drop emits nothing", func(t *testing.T) {
		it := newTestInterpreter(t, OverflowDrop)
		fourTaps(t, it)

		assert.Empty(t, drain(it))
		assert.EqualValues(t, 1, it.OverflowDropped())
	})
}

// TestResetDiscardsPartialGesture verifies the disconnect behavior: pending
// state is dropped without emission.
func TestResetDiscardsPartialGesture(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	tap(t, it, testStart)
	it.Reset()

	_, armed := it.NextDeadline()
	assert.False(t, armed)
	assert.Empty(t, drain(it))

	// The machine is usable again after the reset.
	tap(t, it, testStart.Add(5*time.Second))
	events := drain(it)
	require.Len(t, events, 1)
	assert.Equal(t, event.ButtonSingle, events[0].Kind)
}

// TestNonButtonFrames verifies proximity decoding and the RawNotify
// fallback for unmapped or malformed traffic.
func TestNonButtonFrames(t *testing.T) {
	tests := []struct {
		name    string
		char    string
		payload []byte
		want    event.Kind
	}{
		{"proximity enter", testProximityChar, []byte{0x01}, event.ProximityEnter},
		{"proximity exit", testProximityChar, []byte{0x00}, event.ProximityExit},
		{"proximity ascii", testProximityChar, []byte("enter"), event.ProximityEnter},
		{"malformed proximity", testProximityChar, []byte{0xde, 0xad}, event.RawNotify},
		{"unmapped characteristic", "abcd", []byte{0x01, 0x02}, event.RawNotify},
		{"zero-length payload on unmapped characteristic", "abcd", nil, event.RawNotify},
		{"malformed button payload", testButtonChar, []byte{0x07, 0x07, 0x07}, event.RawNotify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newTestInterpreter(t, OverflowCap)

			events := it.OnFrame(link.RawFrame{Characteristic: tt.char, Payload: tt.payload, ReceivedAt: testStart})
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Kind)
			if tt.want == event.RawNotify {
				assert.Equal(t, tt.payload, events[0].Payload)
			}
		})
	}
}

// TestTimestampsMonotonic verifies the per-session timestamp clamp.
func TestTimestampsMonotonic(t *testing.T) {
	it := newTestInterpreter(t, OverflowCap)

	first := it.OnFrame(link.RawFrame{Characteristic: "abcd", Payload: []byte{1}, ReceivedAt: testStart})
	// Delivery context handed us an older timestamp; it must be clamped.
	second := it.OnFrame(link.RawFrame{Characteristic: "abcd", Payload: []byte{2}, ReceivedAt: testStart.Add(-time.Second)})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.False(t, second[0].Timestamp.Before(first[0].Timestamp))
}

func TestParseOverflow(t *testing.T) {
	tests := []struct {
		in      string
		want    Overflow
		wantErr bool
	}{
		{"cap", OverflowCap, false},
		{"drop", OverflowDrop, false},
		{"", OverflowCap, false},
		{"repeat", "", true},
	}

	for _, tt := range tests {
		got, err := ParseOverflow(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		}
	}
}
