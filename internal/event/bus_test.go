package event

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func buttonEvent(kind Kind) Semantic {
	return Semantic{Kind: kind, Timestamp: time.Now(), Characteristic: "ff31"}
}

// TestBusDeliversInPublishOrder verifies per-subscriber FIFO delivery.
func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus(quietLogger())
	defer bus.Close()

	sub := bus.Subscribe("test", nil, 16)

	published := []Kind{ButtonSingle, ButtonDouble, ButtonLong, ButtonTriple}
	for _, k := range published {
		bus.Publish(buttonEvent(k))
	}

	var got []Kind
	for range published {
		select {
		case ev := <-sub.C():
			got = append(got, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	assert.Equal(t, published, got)
}

// TestBusFiltersByKind verifies that a kind filter suppresses non-matching
// events without affecting other subscribers.
func TestBusFiltersByKind(t *testing.T) {
	bus := NewBus(quietLogger())
	defer bus.Close()

	buttons := bus.Subscribe("buttons", MatchKinds(ButtonSingle, ButtonDouble), 16)
	all := bus.Subscribe("all", MatchAll, 16)

	bus.Publish(buttonEvent(ButtonSingle))
	bus.Publish(buttonEvent(ProximityEnter))
	bus.Publish(buttonEvent(ButtonDouble))
	bus.Close()

	var buttonKinds []Kind
	for ev := range buttons.C() {
		buttonKinds = append(buttonKinds, ev.Kind)
	}
	var allKinds []Kind
	for ev := range all.C() {
		allKinds = append(allKinds, ev.Kind)
	}

	assert.Equal(t, []Kind{ButtonSingle, ButtonDouble}, buttonKinds)
	assert.Equal(t, []Kind{ButtonSingle, ProximityEnter, ButtonDouble}, allKinds)
}

// TestBusDropsOldestForSlowSubscriber verifies the overflow policy: the
// subscriber keeps the newest events, the drop counters advance, and the
// publish call is unaffected.
func TestBusDropsOldestForSlowSubscriber(t *testing.T) {
	bus := NewBus(quietLogger())
	defer bus.Close()

	slow := bus.Subscribe("slow", nil, 2)
	fast := bus.Subscribe("fast", nil, 16)

	for i := 0; i < 6; i++ {
		bus.Publish(buttonEvent(ButtonSingle))
	}

	assert.EqualValues(t, 4, slow.Dropped())
	assert.EqualValues(t, 4, bus.Dropped())
	assert.Zero(t, fast.Dropped())
	assert.Equal(t, 2, slow.queue.Len())
	assert.Equal(t, 6, fast.queue.Len())
}

// TestBusUnsubscribeIsIdempotent verifies unsubscribe twice and
// unsubscribe-after-close are no-ops.
func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(quietLogger())

	sub := bus.Subscribe("once", nil, 4)
	sub.Unsubscribe()
	require.NotPanics(t, func() { sub.Unsubscribe() })

	bus.Close()
	require.NotPanics(t, func() { sub.Unsubscribe() })
	require.NotPanics(t, func() { bus.Close() })
}

// TestBusNoDeliveryAfterUnsubscribe verifies that once Unsubscribe returns,
// concurrent publishers cannot reach the subscriber anymore.
func TestBusNoDeliveryAfterUnsubscribe(t *testing.T) {
	bus := NewBus(quietLogger())
	defer bus.Close()

	sub := bus.Subscribe("leaver", nil, 1024)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.Publish(buttonEvent(ButtonSingle))
			}
		}
	}()

	// Let some publishes land first, then leave mid-stream.
	time.Sleep(10 * time.Millisecond)
	sub.Unsubscribe()

	// The channel was closed during Unsubscribe; drain whatever was queued
	// before it and verify the stream terminates.
	for range sub.C() {
	}

	close(stop)
	wg.Wait()

	// A fresh subscriber still receives events.
	fresh := bus.Subscribe("fresh", nil, 4)
	bus.Publish(buttonEvent(ButtonDouble))
	select {
	case ev := <-fresh.C():
		assert.Equal(t, ButtonDouble, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("fresh subscriber did not receive event")
	}
}

// TestBusSubscribeAfterClose returns a terminated subscription instead of
// panicking.
func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus(quietLogger())
	bus.Close()

	sub := bus.Subscribe("late", nil, 4)
	_, open := <-sub.C()
	assert.False(t, open)
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("button_quadruple")
	assert.Error(t, err)
}
