package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyflip/updown-arb/pkg/types"
)

func testRef() TokenRef {
	return TokenRef{TokenID: "tok-up", MarketID: "mkt-1", TicksPerUnit: 100}
}

func TestDepthRebuildAndTop(t *testing.T) {
	t.Parallel()

	d := newDepth(testRef())
	require.NoError(t, d.rebuild(
		[]types.PriceLevel{{Price: "0.45", Size: "100"}, {Price: "0.47", Size: "20"}},
		[]types.PriceLevel{{Price: "0.50", Size: "30"}, {Price: "0.48", Size: "10"}},
	))

	u := d.top()
	assert.True(t, u.HasBid)
	assert.True(t, u.HasAsk)
	assert.Equal(t, types.Ticks(47), u.BestBid)
	assert.Equal(t, 20.0, u.BestBidSize)
	assert.Equal(t, types.Ticks(48), u.BestAsk)
	assert.Equal(t, 10.0, u.BestAskSize)
}

func TestDepthApplyChanges(t *testing.T) {
	t.Parallel()

	d := newDepth(testRef())
	require.NoError(t, d.rebuild(
		[]types.PriceLevel{{Price: "0.45", Size: "100"}},
		[]types.PriceLevel{{Price: "0.48", Size: "10"}},
	))

	// Remove the best ask and add a deeper one.
	require.NoError(t, d.applyChanges([]types.BookChange{
		{Side: "SELL", Price: "0.48", Size: "0"},
		{Side: "SELL", Price: "0.52", Size: "40"},
		{Side: "BUY", Price: "0.46", Size: "15"},
	}))

	u := d.top()
	assert.Equal(t, types.Ticks(52), u.BestAsk)
	assert.Equal(t, 40.0, u.BestAskSize)
	assert.Equal(t, types.Ticks(46), u.BestBid)
}

func TestDepthEmptySide(t *testing.T) {
	t.Parallel()

	d := newDepth(testRef())
	require.NoError(t, d.rebuild(nil, []types.PriceLevel{{Price: "0.48", Size: "10"}}))

	u := d.top()
	assert.False(t, u.HasBid)
	assert.True(t, u.HasAsk)
}

func TestDepthRejectsMalformedLevels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		price string
		size  string
	}{
		{"non-numeric price", "abc", "10"},
		{"zero price", "0", "10"},
		{"price above one", "1.5", "10"},
		{"non-numeric size", "0.5", "ten"},
		{"negative size", "0.5", "-1"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := newDepth(testRef())
			err := d.rebuild([]types.PriceLevel{{Price: tc.price, Size: tc.size}}, nil)
			assert.Error(t, err)
		})
	}
}

func TestDepthUnknownChangeSide(t *testing.T) {
	t.Parallel()

	d := newDepth(testRef())
	err := d.applyChanges([]types.BookChange{{Side: "HOLD", Price: "0.5", Size: "1"}})
	assert.Error(t, err)
}

func TestRestBookToUpdate(t *testing.T) {
	t.Parallel()

	u, err := restBookToUpdate(testRef(), types.RestBook{
		Bids: []types.PriceLevel{{Price: "0.44", Size: "50"}},
		Asks: []types.PriceLevel{{Price: "0.49", Size: "25"}},
		Seq:  77,
	})
	require.NoError(t, err)

	assert.True(t, u.Snapshot)
	assert.Equal(t, uint64(77), u.Seq)
	assert.Equal(t, types.Ticks(44), u.BestBid)
	assert.Equal(t, types.Ticks(49), u.BestAsk)
	assert.Equal(t, "tok-up", u.TokenID)
	assert.Equal(t, "mkt-1", u.MarketID)
}
