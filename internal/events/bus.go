package events

import (
	"sync"

	"go.uber.org/zap"
)

// evictAfter is the number of consecutive dropped events after which a
// subscriber is considered dead and removed from the bus.
const evictAfter = 256

// Bus fans typed events out to subscribers. Delivery is best-effort,
// at-most-once: a full subscriber buffer drops the event rather than
// blocking the publisher, and persistently slow subscribers are evicted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
	logger *zap.Logger
}

type subscriber struct {
	name        string
	ch          chan Event
	consecutive int
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a named subscriber with the given buffer size and
// returns its receive channel. Subscribing twice with the same name
// replaces the previous subscription.
func (b *Bus) Subscribe(name string, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.subs[name]; ok {
		close(prev.ch)
	}

	sub := &subscriber{
		name: name,
		ch:   make(chan Event, buffer),
	}
	b.subs[name] = sub
	SubscriberCount.Set(float64(len(b.subs)))

	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[name]
	if !ok {
		return
	}
	delete(b.subs, name)
	close(sub.ch)
	SubscriberCount.Set(float64(len(b.subs)))
}

// HasSubscriber reports whether a named subscriber is registered.
func (b *Bus) HasSubscriber(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[name]
	return ok
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	EventsPublishedTotal.WithLabelValues(string(e.Kind())).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for name, sub := range b.subs {
		select {
		case sub.ch <- e:
			sub.consecutive = 0
		default:
			sub.consecutive++
			EventsDroppedTotal.WithLabelValues(name).Inc()

			if sub.consecutive >= evictAfter {
				delete(b.subs, name)
				close(sub.ch)
				SubscriberCount.Set(float64(len(b.subs)))
				SubscribersEvictedTotal.Inc()
				b.logger.Warn("event-subscriber-evicted",
					zap.String("subscriber", name),
					zap.Int("consecutive-drops", sub.consecutive))
			}
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for name, sub := range b.subs {
		delete(b.subs, name)
		close(sub.ch)
	}
	SubscriberCount.Set(0)
}
