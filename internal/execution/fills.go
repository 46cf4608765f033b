package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/pkg/types"
	"github.com/polyflip/updown-arb/pkg/websocket"
)

// watchBuffer is the per-order fill channel depth. Fill streams are a
// handful of updates per order; overflow is dropped and counted.
const watchBuffer = 16

// controlWriteTimeout bounds ping writes on the user channel.
const controlWriteTimeout = 5 * time.Second

// UserFeed is the live FillSource: a WebSocket subscription to the
// venue's per-user channel, routing fill updates to per-order watchers.
type UserFeed struct {
	cfg       UserFeedConfig
	logger    *zap.Logger
	reconnect *websocket.ReconnectManager

	mu       sync.Mutex
	watchers map[string]chan types.FillUpdate
}

// UserFeedConfig holds user feed configuration.
type UserFeedConfig struct {
	URL          string
	APIKey       string
	Passphrase   string
	DialTimeout  time.Duration
	PingInterval time.Duration
	IdleTimeout  time.Duration
	Reconnect    websocket.ReconnectConfig
	Logger       *zap.Logger
}

// NewUserFeed creates a user fill feed.
func NewUserFeed(cfg UserFeedConfig) *UserFeed {
	return &UserFeed{
		cfg:       cfg,
		logger:    cfg.Logger,
		reconnect: websocket.NewReconnectManager(cfg.Reconnect, cfg.Logger),
		watchers:  make(map[string]chan types.FillUpdate),
	}
}

// Watch returns the fill stream for an order.
func (f *UserFeed) Watch(orderID string) <-chan types.FillUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.watchers[orderID]; ok {
		return ch
	}
	ch := make(chan types.FillUpdate, watchBuffer)
	f.watchers[orderID] = ch
	return ch
}

// Unwatch drops the order's stream.
func (f *UserFeed) Unwatch(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watchers, orderID)
}

// Start connects and routes fills until the context is cancelled. As
// with the market feed, only the very first dial is immediate; every
// re-dial after a teardown waits a jittered backoff first.
func (f *UserFeed) Start(ctx context.Context) error {
	conn, err := f.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("user-feed-dial-failed", zap.Error(err))
		if conn, err = f.redial(ctx); err != nil {
			return err
		}
	}

	for {
		f.logger.Info("user-feed-connected", zap.String("url", f.cfg.URL))
		f.run(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("user-feed-disconnected")
		if conn, err = f.redial(ctx); err != nil {
			return err
		}
	}
}

func (f *UserFeed) redial(ctx context.Context) (*gws.Conn, error) {
	var conn *gws.Conn
	err := f.reconnect.Reconnect(ctx, func(rctx context.Context) error {
		var derr error
		conn, derr = f.dial(rctx)
		return derr
	})
	return conn, err
}

func (f *UserFeed) dial(ctx context.Context) (*gws.Conn, error) {
	dialer := gws.Dialer{HandshakeTimeout: f.cfg.DialTimeout}
	header := map[string][]string{
		"POLY_API_KEY":    {f.cfg.APIKey},
		"POLY_PASSPHRASE": {f.cfg.Passphrase},
	}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	return conn, nil
}

func (f *UserFeed) run(ctx context.Context, conn *gws.Conn) {
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	go func() {
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteControl(gws.PingMessage, nil, time.Now().Add(controlWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.IdleTimeout))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.IdleTimeout)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var fill types.FillUpdate
		if err := json.Unmarshal(data, &fill); err != nil {
			f.logger.Warn("user-feed-frame-malformed", zap.Error(err))
			continue
		}
		f.dispatch(fill)
	}
}

func (f *UserFeed) dispatch(fill types.FillUpdate) {
	f.mu.Lock()
	ch, ok := f.watchers[fill.OrderID]
	f.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- fill:
	default:
		FillsDroppedTotal.Inc()
		f.logger.Warn("fill-update-dropped", zap.String("order-id", fill.OrderID))
	}
}
