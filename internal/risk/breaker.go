package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/clock"
)

// Breaker halts all new executions after a run of consecutive failures.
// A success anywhere resets the count; while open, every acceptance is
// rejected until the cooldown passes.
type Breaker struct {
	mu        sync.Mutex
	failures  []time.Time
	openUntil time.Time

	limit    int
	window   time.Duration
	cooldown time.Duration

	clock  clock.Clock
	logger *zap.Logger
}

// BreakerConfig holds breaker tuning.
type BreakerConfig struct {
	FailureLimit int
	Window       time.Duration
	Cooldown     time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
}

// NewBreaker creates a circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Breaker{
		limit:    cfg.FailureLimit,
		window:   cfg.Window,
		cooldown: cfg.Cooldown,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// RecordFailure notes a failed execution. Returns true if this failure
// tripped the breaker open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	cutoff := now.Add(-b.window)

	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = append(kept, now)

	if len(b.failures) >= b.limit && now.After(b.openUntil) {
		b.openUntil = now.Add(b.cooldown)
		b.failures = b.failures[:0]
		BreakerState.Set(1)
		BreakerTripsTotal.Inc()
		b.logger.Warn("circuit-breaker-tripped",
			zap.Int("failure-limit", b.limit),
			zap.Duration("cooldown", b.cooldown))
		return true
	}
	return false
}

// RecordSuccess clears the failure history.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = b.failures[:0]
}

// Open reports whether the breaker currently blocks executions.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := b.clock.Now().Before(b.openUntil)
	if !open {
		BreakerState.Set(0)
	}
	return open
}
