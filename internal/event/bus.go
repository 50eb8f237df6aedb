package event

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultQueueCapacity is used when Subscribe is called with capacity <= 0.
const DefaultQueueCapacity = 64

// Filter decides whether a subscriber receives an event.
type Filter func(Semantic) bool

// MatchAll accepts every event.
func MatchAll(Semantic) bool { return true }

// MatchKinds accepts events whose kind is in the given set.
func MatchKinds(kinds ...Kind) Filter {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(ev Semantic) bool {
		_, ok := set[ev.Kind]
		return ok
	}
}

// Subscription is one consumer's registration on the bus.
//
// Events are delivered through a bounded RingChannel: delivery to a
// subscriber is strictly serialized and FIFO relative to publish order, and a
// full queue drops the oldest queued event rather than blocking the
// publisher.
type Subscription struct {
	id     string
	name   string
	filter Filter
	queue  *RingChannel[Semantic]
	bus    *Bus
}

// ID returns the unique subscription handle identifier.
func (s *Subscription) ID() string { return s.id }

// Name returns the human-readable subscriber name used in logs.
func (s *Subscription) Name() string { return s.name }

// C returns the delivery channel. It is closed on Unsubscribe or bus Close.
func (s *Subscription) C() <-chan Semantic { return s.queue.C() }

// Dropped returns how many events this subscriber lost to queue overflow.
func (s *Subscription) Dropped() int64 { return s.queue.Dropped() }

// Unsubscribe removes the subscription and closes its channel. It is
// idempotent: calling it twice, or after the bus has shut down, is a no-op.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Bus is an ordered, filtered publish/subscribe fan-out for semantic events.
//
// Publish never blocks on a slow consumer; per-subscriber ordering is FIFO;
// no ordering is guaranteed across subscribers, nor across events published
// concurrently from different device sessions.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	order   []string // subscription ids in registration order, for stable fan-out
	closed  bool
	dropped atomic.Int64

	logger *logrus.Logger
}

// NewBus creates an event bus.
func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a consumer. A nil filter matches every event; a
// capacity <= 0 uses DefaultQueueCapacity. Subscribing on a closed bus
// returns a subscription whose channel is already closed.
func (b *Bus) Subscribe(name string, filter Filter, capacity int) *Subscription {
	if filter == nil {
		filter = MatchAll
	}
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	sub := &Subscription{
		id:     uuid.NewString(),
		name:   name,
		filter: filter,
		queue:  NewRingChannel[Semantic](capacity),
		bus:    b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.queue.Close()
		return sub
	}

	b.subs[sub.id] = sub
	b.order = append(b.order, sub.id)

	b.logger.WithFields(logrus.Fields{
		"subscriber": name,
		"capacity":   capacity,
	}).Debug("Subscriber registered")

	return sub
}

// Publish delivers ev to every subscriber whose filter matches. A full
// subscriber queue drops that subscriber's oldest queued event and increments
// the drop counters; other subscribers are unaffected. Publishing on a closed
// bus discards the event.
func (b *Bus) Publish(ev Semantic) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, id := range b.order {
		sub, ok := b.subs[id]
		if !ok || !sub.filter(ev) {
			continue
		}
		if sub.queue.Send(ev) {
			b.dropped.Add(1)
			b.logger.WithFields(logrus.Fields{
				"subscriber": sub.name,
				"kind":       ev.Kind.String(),
			}).Warn("Slow subscriber, dropped oldest queued event")
		}
	}
}

// Dropped returns the total number of events dropped across all subscribers.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down: all subscriber channels are closed, subsequent
// publishes are discarded and subsequent unsubscribes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		sub.queue.Close()
	}
	b.subs = nil
	b.order = nil
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	sub.queue.Close()

	b.logger.WithField("subscriber", sub.name).Debug("Subscriber removed")
}
