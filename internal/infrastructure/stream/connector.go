package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/logger"
	"fraud-stream-dashboard/internal/infrastructure/metrics"
)

// Handler consumes raw payloads delivered by the connector, one at a time.
type Handler interface {
	HandleMessage(ctx context.Context, payload []byte)
}

// Conn is the subset of the websocket connection the connector reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer establishes websocket connections. Swapped out in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Swapped for a fake in tests so the backoff
// schedule can be asserted without real timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wsDialer struct {
	handshakeTimeout time.Duration
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Connector owns the single logical connection to the fraud feed. It recovers
// from drops with bounded exponential backoff and exposes the connection
// state for status display.
//
// At most one socket is live at a time: every successful dial bumps a
// generation counter and the read loop of a superseded socket sees the stale
// generation and exits without touching state or scheduling retries.
type Connector struct {
	url         string
	maxRetries  int
	backoffBase time.Duration

	dialer  Dialer
	clock   Clock
	handler Handler
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      entity.ConnectionState
	conn       Conn
	generation uint64
	retries    int
	retryTimer Timer
	closed     bool
}

// NewConnector creates a connector for the configured feed endpoint.
func NewConnector(cfg *config.StreamConfig, handler Handler, m *metrics.Metrics, log *logger.Logger) *Connector {
	return &Connector{
		url:         cfg.URL,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		dialer:      &wsDialer{handshakeTimeout: cfg.HandshakeTimeout},
		clock:       realClock{},
		handler:     handler,
		logger:      log.WithComponent("stream-connector"),
		metrics:     m,
		state:       entity.StateDisconnected,
	}
}

// State returns the current connection state
func (c *Connector) State() entity.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open establishes a connection to the feed. A successful open resets the
// retry counter and invalidates any previous socket. A failed open counts as
// a connection loss and schedules the next retry.
func (c *Connector) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("connector is closed")
	}
	c.setStateLocked(entity.StateConnecting)
	c.mu.Unlock()

	c.logger.Info("Connecting to feed", zap.String("url", c.url))

	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if conn != nil {
			conn.Close()
		}
		return fmt.Errorf("connector is closed")
	}

	if err != nil {
		c.logger.Warn("Feed connection failed", zap.Error(err))
		c.setStateLocked(entity.StateDisconnected)
		c.scheduleReconnectLocked(ctx)
		return err
	}

	// A newer socket supersedes whatever was live before.
	if c.conn != nil {
		c.conn.Close()
	}
	c.generation++
	c.conn = conn
	c.retries = 0
	c.setStateLocked(entity.StateConnected)

	go c.readLoop(ctx, conn, c.generation)

	c.logger.Info("Connected to feed")
	return nil
}

// readLoop delivers messages until the socket dies. The loop exit is the
// single place a reconnect gets scheduled, so an error and the close it
// causes cannot double-book retry timers.
func (c *Connector) readLoop(ctx context.Context, conn Conn, generation uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.closed || generation != c.generation {
				// Superseded or torn down; nothing to recover.
				c.mu.Unlock()
				return
			}
			c.logger.Warn("Feed connection lost", zap.Error(err))
			c.conn = nil
			c.setStateLocked(entity.StateDisconnected)
			c.scheduleReconnectLocked(ctx)
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		stale := c.closed || generation != c.generation
		c.mu.Unlock()
		if stale {
			return
		}

		if isStatusOnly(payload) {
			c.logger.Debug("Feed status message", zap.ByteString("payload", payload))
			continue
		}

		c.handler.HandleMessage(ctx, payload)
	}
}

// scheduleReconnectLocked books the next retry, or gives up for good once the
// ceiling is hit. Caller holds c.mu.
func (c *Connector) scheduleReconnectLocked(ctx context.Context) {
	if c.retries >= c.maxRetries {
		c.logger.Error("Reconnect ceiling reached, giving up",
			zap.Int("retries", c.retries))
		return
	}

	delay := c.backoffBase << c.retries
	c.retries++

	c.logger.Info("Scheduling reconnect",
		zap.Duration("delay", delay),
		zap.Int("attempt", c.retries))
	if c.metrics != nil {
		c.metrics.ReconnectsTotal.Inc()
	}

	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.Open(ctx)
	})
}

// Close tears the connector down: the pending retry timer is canceled and the
// socket closed, on every exit path.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.generation++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(entity.StateDisconnected)
	c.logger.Info("Connector closed")
	return err
}

func (c *Connector) setStateLocked(state entity.ConnectionState) {
	c.state = state
	if c.metrics != nil {
		c.metrics.SetConnectionState(state)
	}
}

// isStatusOnly reports whether payload is a bare status/greeting message
// carrying no transaction or prediction data.
func isStatusOnly(payload []byte) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return false
	}
	if len(raw) != 1 {
		return false
	}
	_, ok := raw["message"]
	return ok
}
