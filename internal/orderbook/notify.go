package orderbook

import "sync"

// Notifier is a coalescing change signal keyed by market. Marking a
// market already in the dirty set is a no-op, so a burst of updates to
// one market collapses into a single wakeup: consumers always evaluate
// the latest book state and never queue intermediate states.
type Notifier struct {
	mu     sync.Mutex
	dirty  map[string]struct{}
	signal chan struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		dirty:  make(map[string]struct{}),
		signal: make(chan struct{}, 1),
	}
}

// Mark adds a market to the dirty set and signals waiters.
func (n *Notifier) Mark(marketID string) {
	n.mu.Lock()
	n.dirty[marketID] = struct{}{}
	depth := len(n.dirty)
	n.mu.Unlock()

	DirtyMarkets.Set(float64(depth))

	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// Wait returns the channel that fires when the dirty set becomes
// non-empty. A single receive may cover many marks; always follow a
// receive with Drain.
func (n *Notifier) Wait() <-chan struct{} {
	return n.signal
}

// Drain atomically takes and clears the dirty set.
func (n *Notifier) Drain() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.dirty) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.dirty))
	for id := range n.dirty {
		out = append(out, id)
	}
	n.dirty = make(map[string]struct{})
	DirtyMarkets.Set(0)
	return out
}
