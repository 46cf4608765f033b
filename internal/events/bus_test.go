package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/pkg/types"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	a := bus.Subscribe("a", 4)
	b := bus.Subscribe("b", 4)

	bus.Publish(MarketAdded{Market: types.Market{ID: "mkt-1"}})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			added, ok := e.(MarketAdded)
			require.True(t, ok, "subscriber %s", name)
			assert.Equal(t, "mkt-1", added.Market.ID)
		default:
			t.Fatalf("subscriber %s did not receive the event", name)
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	slow := bus.Subscribe("slow", 1)
	fast := bus.Subscribe("fast", 8)

	bus.Publish(FeedReconnected{Source: "push"})
	bus.Publish(FeedReconnected{Source: "push"})
	bus.Publish(FeedReconnected{Source: "push"})

	assert.Len(t, slow, 1, "overflow must be dropped, not queued")
	assert.Len(t, fast, 3, "fast subscriber must see every event")
}

func TestBusEvictsPersistentlySlowSubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	slow := bus.Subscribe("slow", 1)
	bus.Publish(FeedReconnected{Source: "push"})

	for i := 0; i < evictAfter; i++ {
		bus.Publish(FeedReconnected{Source: "push"})
	}

	// Channel is closed on eviction: after draining the one buffered
	// event, the next receive reports closed.
	<-slow
	_, open := <-slow
	assert.False(t, open, "evicted subscriber channel must be closed")
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	ch := bus.Subscribe("a", 2)
	bus.Unsubscribe("a")

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(FeedDisconnected{Source: "push", Reason: "eof"})
}

func TestBusCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus(zaptest.NewLogger(t))
	ch := bus.Subscribe("a", 2)

	bus.Close()
	bus.Close()
	bus.Publish(FeedReconnected{Source: "poll"})

	_, open := <-ch
	assert.False(t, open)
}
