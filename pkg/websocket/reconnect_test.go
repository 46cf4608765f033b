package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReconnectSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	rm := NewReconnectManager(ReconnectConfig{
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}, zaptest.NewLogger(t))

	attempts := 0
	err := rm.Reconnect(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("dial refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestReconnectStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	rm := NewReconnectManager(ReconnectConfig{
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rm.Reconnect(ctx, func(context.Context) error {
		return errors.New("always down")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	rm := NewReconnectManager(ReconnectConfig{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  300 * time.Millisecond,
	}, zaptest.NewLogger(t))

	rm.incrementBackoff()
	assert.Equal(t, 200*time.Millisecond, rm.currentBackoff)
	rm.incrementBackoff()
	assert.Equal(t, 300*time.Millisecond, rm.currentBackoff)
	rm.incrementBackoff()
	assert.Equal(t, 300*time.Millisecond, rm.currentBackoff, "capped at max delay")

	rm.Reset()
	assert.Equal(t, 100*time.Millisecond, rm.currentBackoff)
}

func TestNextWaitIsWithinBackoff(t *testing.T) {
	t.Parallel()

	rm := NewReconnectManager(ReconnectConfig{
		BaseDelay: 50 * time.Millisecond,
		MaxDelay:  time.Second,
	}, zaptest.NewLogger(t))

	for i := 0; i < 100; i++ {
		wait := rm.nextWait()
		assert.GreaterOrEqual(t, wait, time.Duration(0))
		assert.LessOrEqual(t, wait, 50*time.Millisecond)
	}
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	rm := NewReconnectManager(ReconnectConfig{}, zaptest.NewLogger(t))
	assert.Equal(t, 500*time.Millisecond, rm.config.BaseDelay)
	assert.Equal(t, 30*time.Second, rm.config.MaxDelay)
}
