package execution

import (
	"context"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Venue submits and cancels orders. Implemented by the live order
// client and the dry-run simulator.
type Venue interface {
	Submit(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)
	Cancel(ctx context.Context, orderID string) error
}

// FillSource streams fill updates for acknowledged orders. Watch must
// be called with the venue order ID from the ack; Unwatch releases the
// channel.
type FillSource interface {
	Watch(orderID string) <-chan types.FillUpdate
	Unwatch(orderID string)
}
