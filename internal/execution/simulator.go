package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/types"
)

// Simulator is the dry-run Venue and FillSource in one: submissions ack
// instantly and fill in full after a configurable latency. Cancels that
// land before the fill win.
type Simulator struct {
	fillLatency time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	orders   map[string]*simOrder
	watchers map[string]chan types.FillUpdate
}

type simOrder struct {
	req       types.OrderRequest
	timer     *time.Timer
	filled    bool
	cancelled bool
	// pending holds updates that arrived before anyone watched; they
	// replay on Watch so a fast fill is never lost.
	pending []types.FillUpdate
}

// NewSimulator creates a dry-run venue.
func NewSimulator(fillLatency time.Duration, logger *zap.Logger) *Simulator {
	return &Simulator{
		fillLatency: fillLatency,
		logger:      logger,
		orders:      make(map[string]*simOrder),
		watchers:    make(map[string]chan types.FillUpdate),
	}
}

// Submit acks immediately and schedules a full fill.
func (s *Simulator) Submit(_ context.Context, req types.OrderRequest) (types.OrderAck, error) {
	orderID := uuid.NewString()

	s.mu.Lock()
	order := &simOrder{req: req}
	order.timer = time.AfterFunc(s.fillLatency, func() {
		s.fill(orderID)
	})
	s.orders[orderID] = order
	s.mu.Unlock()

	s.logger.Debug("sim-order-acked",
		zap.String("order-id", orderID),
		zap.String("client-id", req.ClientID),
		zap.Float64("price", req.Price()),
		zap.Float64("size", req.Size))

	return types.OrderAck{OrderID: orderID, Status: "live"}, nil
}

// Cancel stops the pending fill if it has not happened yet.
func (s *Simulator) Cancel(_ context.Context, orderID string) error {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok || order.filled || order.cancelled {
		s.mu.Unlock()
		return nil
	}
	order.cancelled = true
	order.timer.Stop()
	update := types.FillUpdate{
		OrderID:   orderID,
		Remaining: order.req.Size,
		Status:    types.FillStatusCancelled,
	}
	s.deliverLocked(orderID, order, update)
	s.mu.Unlock()
	return nil
}

// deliverLocked sends to the watcher or stashes for replay. Caller
// holds the mutex.
func (s *Simulator) deliverLocked(orderID string, order *simOrder, update types.FillUpdate) {
	if ch, ok := s.watchers[orderID]; ok {
		select {
		case ch <- update:
			return
		default:
		}
	}
	order.pending = append(order.pending, update)
}

func (s *Simulator) fill(orderID string) {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok || order.filled || order.cancelled {
		s.mu.Unlock()
		return
	}
	order.filled = true
	update := types.FillUpdate{
		OrderID:    orderID,
		FilledSize: order.req.Size,
		Price:      order.req.Price(),
		Remaining:  0,
		Status:     types.FillStatusMatched,
	}
	s.deliverLocked(orderID, order, update)
	s.mu.Unlock()
}

// Watch returns the fill stream for an order, replaying anything that
// fired before the watch was registered.
func (s *Simulator) Watch(orderID string) <-chan types.FillUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.watchers[orderID]; ok {
		return ch
	}
	ch := make(chan types.FillUpdate, watchBuffer)
	s.watchers[orderID] = ch

	if order, ok := s.orders[orderID]; ok {
		for _, update := range order.pending {
			ch <- update
		}
		order.pending = nil
	}
	return ch
}

// Unwatch drops the order's stream.
func (s *Simulator) Unwatch(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, orderID)
}
