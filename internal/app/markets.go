package app

import (
	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/feed"
)

const marketSubscriber = "app-markets"

// trackMarkets keeps the feed's token set in sync with the registry
// and mirrors feed connectivity into the readiness probe. Every add or
// removal rebuilds the full ref list; the ingestor diffs internally,
// so a rebuild is cheap and can never leak a token.
func (a *App) trackMarkets() {
	defer a.wg.Done()

	ch := a.bus.Subscribe(marketSubscriber, 256)
	defer a.bus.Unsubscribe(marketSubscriber)

	for {
		select {
		case <-a.ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch e.(type) {
			case events.MarketAdded, events.MarketRemoved:
				a.ingestor.SetTokens(a.tokenRefs())
			case events.FeedReconnected:
				a.health.SetComponent("market-feed", true)
			case events.FeedDisconnected:
				a.health.SetComponent("market-feed", false)
			}
		}
	}
}

func (a *App) tokenRefs() []feed.TokenRef {
	list := a.markets.List()
	refs := make([]feed.TokenRef, 0, 2*len(list))
	for _, m := range list {
		refs = append(refs,
			feed.TokenRef{TokenID: m.UpTokenID, MarketID: m.ID, TicksPerUnit: m.TicksPerUnit},
			feed.TokenRef{TokenID: m.DownTokenID, MarketID: m.ID, TicksPerUnit: m.TicksPerUnit},
		)
	}
	return refs
}
