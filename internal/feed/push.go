package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/events"
	"github.com/polyflip/updown-arb/internal/orderbook"
	"github.com/polyflip/updown-arb/pkg/types"
	"github.com/polyflip/updown-arb/pkg/websocket"
)

// maxConsecutiveParseErrors is the malformed-frame budget before the
// connection is considered corrupt and torn down.
const maxConsecutiveParseErrors = 3

// controlWriteTimeout bounds ping/subscribe writes.
const controlWriteTimeout = 5 * time.Second

// PushConfig holds push ingestor configuration.
type PushConfig struct {
	URL          string
	DialTimeout  time.Duration
	PingInterval time.Duration
	IdleTimeout  time.Duration
	Reconnect    websocket.ReconnectConfig

	Store  *orderbook.Store
	Bus    *events.Bus
	Logger *zap.Logger
}

// PushIngestor maintains a market-data WebSocket subscription and feeds
// normalized top-of-book updates into the store. On any teardown every
// tracked book is marked stale until the resubscribed snapshots land.
type PushIngestor struct {
	cfg       PushConfig
	store     *orderbook.Store
	bus       *events.Bus
	logger    *zap.Logger
	reconnect *websocket.ReconnectManager

	mu     sync.Mutex
	refs   map[string]TokenRef
	depths map[string]*depth
	conn   *gws.Conn

	writeMu sync.Mutex
}

// NewPushIngestor creates a push ingestor.
func NewPushIngestor(cfg PushConfig) *PushIngestor {
	return &PushIngestor{
		cfg:       cfg,
		store:     cfg.Store,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		reconnect: websocket.NewReconnectManager(cfg.Reconnect, cfg.Logger),
		refs:      make(map[string]TokenRef),
		depths:    make(map[string]*depth),
	}
}

// SetTokens replaces the tracked token set and resubscribes if a
// connection is live.
func (p *PushIngestor) SetTokens(refs []TokenRef) {
	p.mu.Lock()

	next := make(map[string]TokenRef, len(refs))
	for _, ref := range refs {
		next[ref.TokenID] = ref
		p.store.Track(ref.TokenID, ref.MarketID)
	}
	for tok := range p.refs {
		if _, keep := next[tok]; !keep {
			delete(p.depths, tok)
			p.store.Untrack(tok)
		}
	}
	p.refs = next
	conn := p.conn
	p.mu.Unlock()

	if conn != nil {
		if err := p.subscribe(conn); err != nil {
			p.logger.Warn("push-resubscribe-failed", zap.Error(err))
		}
	}
}

// Start connects and reads until the context is cancelled, reconnecting
// with jittered backoff on every teardown. Only the very first dial is
// immediate: every re-dial after a teardown goes through the backoff
// manager, which waits one jittered delay before its first attempt.
func (p *PushIngestor) Start(ctx context.Context) error {
	conn, err := p.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("push-dial-failed", zap.Error(err))
		if conn, err = p.redial(ctx); err != nil {
			return err
		}
	}

	for {
		ConnectedGauge.Set(1)
		p.bus.Publish(events.FeedReconnected{Source: "push", At: time.Now()})
		p.logger.Info("push-connected", zap.String("url", p.cfg.URL))

		reason := p.run(ctx, conn)

		ConnectedGauge.Set(0)
		DisconnectsTotal.WithLabelValues(reason).Inc()
		p.store.MarkAllStale()
		p.bus.Publish(events.FeedDisconnected{Source: "push", Reason: reason, At: time.Now()})
		p.logger.Warn("push-disconnected", zap.String("reason", reason))

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if conn, err = p.redial(ctx); err != nil {
			return err
		}
	}
}

func (p *PushIngestor) redial(ctx context.Context) (*gws.Conn, error) {
	var conn *gws.Conn
	err := p.reconnect.Reconnect(ctx, func(rctx context.Context) error {
		var derr error
		conn, derr = p.dial(rctx)
		return derr
	})
	return conn, err
}

func (p *PushIngestor) dial(ctx context.Context) (*gws.Conn, error) {
	dialer := gws.Dialer{HandshakeTimeout: p.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.cfg.URL, err)
	}
	return conn, nil
}

// run owns one connection. Returns the teardown reason.
func (p *PushIngestor) run(ctx context.Context, conn *gws.Conn) string {
	p.mu.Lock()
	p.conn = conn
	// Depths are rebuilt from the post-subscribe snapshots.
	p.depths = make(map[string]*depth)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
		conn.Close()
	}()

	if err := p.subscribe(conn); err != nil {
		p.logger.Warn("push-subscribe-failed", zap.Error(err))
		return "subscribe_failed"
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	go p.pingLoop(conn, stop)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.cfg.IdleTimeout))
	})

	parseErrs := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(p.cfg.IdleTimeout)); err != nil {
			return "transport"
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "shutdown"
			}
			return "transport"
		}

		if err := p.handleMessage(data); err != nil {
			parseErrs++
			ParseErrorsTotal.Inc()
			p.logger.Warn("push-frame-malformed",
				zap.Error(err),
				zap.Int("consecutive", parseErrs))
			if parseErrs >= maxConsecutiveParseErrors {
				return "protocol"
			}
			continue
		}
		parseErrs = 0
	}
}

func (p *PushIngestor) pingLoop(conn *gws.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.writeMu.Lock()
			err := conn.WriteControl(gws.PingMessage, nil, time.Now().Add(controlWriteTimeout))
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (p *PushIngestor) subscribe(conn *gws.Conn) error {
	p.mu.Lock()
	tokens := make([]string, 0, len(p.refs))
	for tok := range p.refs {
		tokens = append(tokens, tok)
	}
	p.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}

	frame := types.SubscribeFrame{Type: "subscribe", Tokens: tokens}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode subscribe frame: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
	return conn.WriteMessage(gws.TextMessage, payload)
}

func (p *PushIngestor) handleMessage(data []byte) error {
	var frame types.MarketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	FramesReceivedTotal.WithLabelValues(frame.Type).Inc()

	switch frame.Type {
	case types.FrameHeartbeat, types.FrameTrade:
		return nil
	case types.FrameSnapshot:
		return p.applySnapshot(frame)
	case types.FrameDelta:
		return p.applyDelta(frame)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func (p *PushIngestor) applySnapshot(frame types.MarketFrame) error {
	p.mu.Lock()
	ref, ok := p.refs[frame.Token]
	if !ok {
		p.mu.Unlock()
		// Late frame for a token we stopped tracking. Not a protocol error.
		return nil
	}
	d := newDepth(ref)
	if err := d.rebuild(frame.Bids, frame.Asks); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("snapshot for %s: %w", frame.Token, err)
	}
	p.depths[frame.Token] = d
	u := d.top()
	p.mu.Unlock()

	u.Seq = frame.Seq
	u.Snapshot = true
	p.store.Apply(u)
	return nil
}

func (p *PushIngestor) applyDelta(frame types.MarketFrame) error {
	p.mu.Lock()
	d, ok := p.depths[frame.Token]
	if !ok {
		p.mu.Unlock()
		// No snapshot yet on this connection; the store would reject the
		// delta anyway.
		return nil
	}
	if err := d.applyChanges(frame.Changes); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("delta for %s: %w", frame.Token, err)
	}
	u := d.top()
	p.mu.Unlock()

	u.Seq = frame.Seq
	p.store.Apply(u)
	return nil
}
