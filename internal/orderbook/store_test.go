package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyflip/updown-arb/pkg/clock"
	"github.com/polyflip/updown-arb/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	s := NewStore(Config{
		Clock:  mc,
		Logger: zaptest.NewLogger(t),
	})
	return s, mc
}

func snapshotUpdate(token string, seq uint64, ask types.Ticks, askSize float64) types.BookUpdate {
	return types.BookUpdate{
		TokenID:     token,
		HasBid:      true,
		HasAsk:      true,
		BestBid:     ask - 1,
		BestAsk:     ask,
		BestBidSize: askSize,
		BestAskSize: askSize,
		Seq:         seq,
		Snapshot:    true,
	}
}

func TestStoreApplySnapshotAndDelta(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("tok-up", "mkt-1")

	require.True(t, s.Apply(snapshotUpdate("tok-up", 10, 48, 100)))

	book, ok := s.Get("tok-up")
	require.True(t, ok)
	assert.Equal(t, types.Ticks(48), book.BestAsk)
	assert.Equal(t, uint64(10), book.Seq)
	assert.False(t, book.SourceStale)

	delta := snapshotUpdate("tok-up", 11, 47, 50)
	delta.Snapshot = false
	require.True(t, s.Apply(delta))

	book, _ = s.Get("tok-up")
	assert.Equal(t, types.Ticks(47), book.BestAsk)
	assert.Equal(t, uint64(11), book.Seq)
}

func TestStoreDropsOutOfOrderDeltas(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("tok-up", "mkt-1")
	require.True(t, s.Apply(snapshotUpdate("tok-up", 10, 48, 100)))

	for _, seq := range []uint64{10, 9, 5} {
		stale := snapshotUpdate("tok-up", seq, 40, 10)
		stale.Snapshot = false
		assert.False(t, s.Apply(stale), "seq %d must be dropped", seq)
	}

	book, _ := s.Get("tok-up")
	assert.Equal(t, types.Ticks(48), book.BestAsk, "book must keep the latest applied state")
	assert.Equal(t, uint64(10), book.Seq)
}

func TestStoreStaleBookRejectsDeltasUntilSnapshot(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("tok-up", "mkt-1")
	require.True(t, s.Apply(snapshotUpdate("tok-up", 10, 48, 100)))

	s.MarkStale([]string{"tok-up"})
	book, _ := s.Get("tok-up")
	assert.True(t, book.SourceStale)

	delta := snapshotUpdate("tok-up", 11, 47, 50)
	delta.Snapshot = false
	assert.False(t, s.Apply(delta), "deltas must not revive a stale book")

	// A fresh snapshot clears the flag even with a lower sequence, as
	// happens after a reconnect resets the feed's numbering.
	require.True(t, s.Apply(snapshotUpdate("tok-up", 2, 46, 80)))
	book, _ = s.Get("tok-up")
	assert.False(t, book.SourceStale)
	assert.Equal(t, uint64(2), book.Seq)
	assert.Equal(t, types.Ticks(46), book.BestAsk)
}

func TestStoreUntrackedTokenDropped(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	assert.False(t, s.Apply(snapshotUpdate("unknown", 1, 50, 10)))

	_, ok := s.Get("unknown")
	assert.False(t, ok)
}

func TestStoreFreshness(t *testing.T) {
	t.Parallel()

	s, mc := newTestStore(t)
	s.Track("tok-up", "mkt-1")
	require.True(t, s.Apply(snapshotUpdate("tok-up", 1, 48, 100)))

	book, _ := s.Get("tok-up")
	assert.True(t, book.Fresh(mc.Now(), 500*time.Millisecond))

	mc.Advance(600 * time.Millisecond)
	assert.False(t, book.Fresh(mc.Now(), 500*time.Millisecond))
	assert.Equal(t, 600*time.Millisecond, s.Age("tok-up"))
}

func TestStorePairConsistency(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("tok-up", "mkt-1")
	s.Track("tok-down", "mkt-1")
	require.True(t, s.Apply(snapshotUpdate("tok-up", 1, 48, 100)))
	require.True(t, s.Apply(snapshotUpdate("tok-down", 1, 45, 60)))

	up, down, ok := s.Pair("tok-up", "tok-down")
	require.True(t, ok)
	assert.Equal(t, types.Ticks(48), up.BestAsk)
	assert.Equal(t, types.Ticks(45), down.BestAsk)

	_, _, ok = s.Pair("tok-up", "missing")
	assert.False(t, ok)
}

func TestStoreMarkAllStale(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("a", "m1")
	s.Track("b", "m2")
	require.True(t, s.Apply(snapshotUpdate("a", 1, 48, 10)))
	require.True(t, s.Apply(snapshotUpdate("b", 1, 49, 10)))

	s.MarkAllStale()

	for _, tok := range []string{"a", "b"} {
		book, ok := s.Get(tok)
		require.True(t, ok)
		assert.True(t, book.SourceStale, "token %s", tok)
	}
}

func TestNotifierCoalesces(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	for i := 0; i < 50; i++ {
		n.Mark("mkt-1")
	}
	n.Mark("mkt-2")

	select {
	case <-n.Wait():
	default:
		t.Fatal("expected a pending signal")
	}

	dirty := n.Drain()
	assert.ElementsMatch(t, []string{"mkt-1", "mkt-2"}, dirty,
		"a burst of marks must collapse into one entry per market")
	assert.Nil(t, n.Drain(), "second drain must be empty")
}

func TestStoreApplySignalsNotifier(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	s.Track("tok-up", "mkt-1")
	require.True(t, s.Apply(snapshotUpdate("tok-up", 1, 48, 100)))

	select {
	case <-s.Notifier().Wait():
	default:
		t.Fatal("apply must signal the notifier")
	}
	assert.Equal(t, []string{"mkt-1"}, s.Notifier().Drain())
}
