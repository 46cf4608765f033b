package app

import (
	"sync"

	"github.com/polyflip/updown-arb/internal/events"
)

const statsSubscriber = "app-stats"

// sessionStats accumulates the run's headline numbers for the shutdown
// summary.
type sessionStats struct {
	mu            sync.Mutex
	opportunities int
	executions    int
	successes     int
	hedges        int
	invested      float64
	profit        float64
}

func (s *sessionStats) snapshot() (opportunities, executions, successes, hedges int, invested, profit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opportunities, s.executions, s.successes, s.hedges, s.invested, s.profit
}

// trackStats counts detections and execution outcomes off the bus.
func (a *App) trackStats() {
	defer a.wg.Done()

	ch := a.bus.Subscribe(statsSubscriber, 256)
	defer a.bus.Unsubscribe(statsSubscriber)

	for {
		select {
		case <-a.ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			a.stats.record(e)
		}
	}
}

func (s *sessionStats) record(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case events.OpportunityDetected:
		s.opportunities++
	case events.ExecutionCompleted:
		s.executions++
		s.invested += ev.Result.TotalCost
		if ev.Result.Success {
			s.successes++
			s.profit += ev.Result.RealizedProfit
		}
		if ev.Result.Hedged {
			s.hedges++
		}
	}
}
