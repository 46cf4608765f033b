package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
)

const sinkSubscriber = "storage-sink"

// Sink drains the event bus into storage. It persists detected
// opportunities, finished executions, and risk incidents; everything
// else on the bus is operational noise it ignores.
type Sink struct {
	store   Storage
	bus     *events.Bus
	logger  *zap.Logger
	timeout time.Duration
}

// SinkConfig configures a Sink.
type SinkConfig struct {
	Store        Storage
	Bus          *events.Bus
	Logger       *zap.Logger
	WriteTimeout time.Duration
}

// NewSink creates a storage sink.
func NewSink(cfg SinkConfig) *Sink {
	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Sink{
		store:   cfg.Store,
		bus:     cfg.Bus,
		logger:  cfg.Logger,
		timeout: timeout,
	}
}

// Run subscribes and persists until the context is cancelled or the
// bus closes. Writes are best effort: a failed insert is logged and
// the sink keeps draining so it never backs up the bus.
func (s *Sink) Run(ctx context.Context) {
	ch := s.bus.Subscribe(sinkSubscriber, 512)
	defer s.bus.Unsubscribe(sinkSubscriber)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.persist(ctx, e)
		}
	}
}

func (s *Sink) persist(ctx context.Context, e events.Event) {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var err error
	switch ev := e.(type) {
	case events.OpportunityDetected:
		opp := ev.Opportunity
		err = s.store.StoreOpportunity(wctx, &opp)
	case events.ExecutionCompleted:
		result := ev.Result
		err = s.store.StoreExecution(wctx, &result)
	case events.RiskIncident:
		incident := ev.Incident
		err = s.store.StoreIncident(wctx, &incident)
	default:
		return
	}

	if err != nil {
		RecordWriteErrorsTotal.WithLabelValues(string(e.Kind())).Inc()
		s.logger.Warn("storage-write-failed",
			zap.String("kind", string(e.Kind())),
			zap.Error(err))
		return
	}
	RecordsStoredTotal.WithLabelValues(string(e.Kind())).Inc()
}
