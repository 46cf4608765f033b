package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the configuration for exponential backoff
// reconnection with full jitter: each wait is uniform over [0, backoff].
type ReconnectConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// ReconnectManager handles exponential backoff reconnection.
type ReconnectManager struct {
	config         ReconnectConfig
	logger         *zap.Logger
	currentBackoff time.Duration
	mu             sync.Mutex
}

// NewReconnectManager creates a new reconnection manager.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &ReconnectManager{
		config:         cfg,
		logger:         logger,
		currentBackoff: cfg.BaseDelay,
	}
}

// Reconnect retries connectFunc until it succeeds or the context is
// cancelled, sleeping a jittered exponential backoff between attempts.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connectFunc func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wait := rm.nextWait()

		rm.logger.Info("attempting-reconnection", zap.Duration("wait", wait))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connectFunc(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful")
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()

		rm.incrementBackoff()
	}
}

// Reset resets the backoff to the base delay.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.currentBackoff = rm.config.BaseDelay
}

// nextWait returns a full-jitter wait: uniform over [0, currentBackoff].
func (rm *ReconnectManager) nextWait() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.currentBackoff <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(rm.currentBackoff) + 1))
}

// incrementBackoff doubles the backoff, capped at MaxDelay.
func (rm *ReconnectManager) incrementBackoff() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	newBackoff := rm.currentBackoff * 2
	if newBackoff > rm.config.MaxDelay {
		rm.currentBackoff = rm.config.MaxDelay
	} else {
		rm.currentBackoff = newBackoff
	}
}
