package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/logger"
)

// --- test doubles ---

type recordingHandler struct {
	ch chan []byte
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ch: make(chan []byte, 16)}
}

func (h *recordingHandler) HandleMessage(_ context.Context, payload []byte) {
	h.ch <- payload
}

type fakeConn struct {
	msgs   chan []byte
	once   sync.Once
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-c.msgs
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, msg, nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.closed = true
		close(c.msgs)
	})
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int // fail this many dials before succeeding
	dials    int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	c.funcs = append(c.funcs, f)
	timer := &fakeTimer{}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	f := c.funcs[i]
	c.mu.Unlock()
	f()
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

func newTestConnector(dialer Dialer, clock Clock, handler Handler) *Connector {
	c := NewConnector(&config.StreamConfig{
		URL:         "ws://feed.test/ws/fraud_detection/",
		MaxRetries:  5,
		BackoffBase: time.Second,
	}, handler, nil, logger.NewNop())
	c.dialer = dialer
	c.clock = clock
	return c
}

func waitForPayload(t *testing.T, h *recordingHandler) []byte {
	t.Helper()
	select {
	case p := <-h.ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

// --- tests ---

func TestBackoffSchedule(t *testing.T) {
	clk := &fakeClock{}
	dialer := &fakeDialer{failures: 100}
	c := newTestConnector(dialer, clk, newRecordingHandler())

	err := c.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, entity.StateDisconnected, c.State())

	// Each fired retry fails and books the next one, doubling the delay.
	for i := 0; i < 5; i++ {
		require.Len(t, clk.scheduled(), i+1)
		clk.fire(i)
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	assert.Equal(t, want, clk.scheduled())

	// The fifth retry already failed above; the ceiling is reached and no
	// further attempt may be booked.
	assert.Len(t, clk.scheduled(), 5)
	assert.Equal(t, entity.StateDisconnected, c.State())
}

func TestSuccessfulOpenResetsRetries(t *testing.T) {
	clk := &fakeClock{}
	dialer := &fakeDialer{failures: 1}
	c := newTestConnector(dialer, clk, newRecordingHandler())

	require.Error(t, c.Open(context.Background()))
	require.Equal(t, []time.Duration{time.Second}, clk.scheduled())

	// The booked retry succeeds.
	clk.fire(0)
	assert.Equal(t, entity.StateConnected, c.State())

	// Dropping the fresh connection must restart the schedule at the base
	// delay, proving the counter was reset.
	dialer.mu.Lock()
	conn := dialer.conns[0]
	dialer.mu.Unlock()
	conn.Close()

	require.Eventually(t, func() bool {
		return len(clk.scheduled()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Second, clk.scheduled()[1])
	assert.Equal(t, entity.StateDisconnected, c.State())
}

func TestMessageDelivery(t *testing.T) {
	clk := &fakeClock{}
	dialer := &fakeDialer{}
	handler := newRecordingHandler()
	c := newTestConnector(dialer, clk, handler)

	require.NoError(t, c.Open(context.Background()))
	assert.Equal(t, entity.StateConnected, c.State())

	conn := dialer.conns[0]
	conn.msgs <- []byte(`{"message": "Connected to WebSocket"}`)
	conn.msgs <- []byte(`{"predictions": {"logistic": 1}, "transaction": {"Amount": 5}}`)

	// The status-only greeting is dropped at the connector; only the data
	// payload reaches the handler.
	payload := waitForPayload(t, handler)
	assert.Contains(t, string(payload), "predictions")
	assert.Empty(t, handler.ch)
}

func TestCloseCancelsPendingRetry(t *testing.T) {
	clk := &fakeClock{}
	dialer := &fakeDialer{failures: 100}
	c := newTestConnector(dialer, clk, newRecordingHandler())

	require.Error(t, c.Open(context.Background()))
	require.Len(t, clk.timers, 1)

	require.NoError(t, c.Close())
	assert.True(t, clk.timers[0].stopped)
	assert.Equal(t, entity.StateDisconnected, c.State())

	// Even if the timer had already fired, the open is a no-op after Close.
	before := dialer.dials
	clk.fire(0)
	assert.Equal(t, before, dialer.dials)
}

func TestReopenSupersedesPreviousSocket(t *testing.T) {
	clk := &fakeClock{}
	dialer := &fakeDialer{}
	c := newTestConnector(dialer, clk, newRecordingHandler())

	require.NoError(t, c.Open(context.Background()))
	require.NoError(t, c.Open(context.Background()))
	require.Len(t, dialer.conns, 2)

	// The first socket was closed by the second open, and its read loop must
	// exit without booking a reconnect.
	assert.True(t, dialer.conns[0].closed)
	assert.Eventually(t, func() bool {
		return c.State() == entity.StateConnected
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, clk.scheduled())
}

func TestIsStatusOnly(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"greeting", `{"message": "Connected to WebSocket"}`, true},
		{"status plus data", `{"message": "hi", "prediction": {}}`, false},
		{"data message", `{"predictions": {}, "transaction": {}}`, false},
		{"empty object", `{}`, false},
		{"not json", `hello`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isStatusOnly([]byte(tt.payload)))
		})
	}
}

// TestConnectorAgainstWebsocketServer runs the connector against a real
// websocket endpoint.
func TestConnectorAgainstWebsocketServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		greeting := `{"message": "Connected to WebSocket"}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(greeting)))

		data := `{"predictions": {"logistic": 0, "xgboost": 1}, "transaction": {"Amount": 42}}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(data)))
	}))
	defer server.Close()

	clk := &fakeClock{}
	handler := newRecordingHandler()
	c := NewConnector(&config.StreamConfig{
		URL:              "ws" + strings.TrimPrefix(server.URL, "http"),
		HandshakeTimeout: 5 * time.Second,
		MaxRetries:       5,
		BackoffBase:      time.Second,
	}, handler, nil, logger.NewNop())
	c.clock = clk
	defer c.Close()

	require.NoError(t, c.Open(context.Background()))
	assert.Equal(t, entity.StateConnected, c.State())

	payload := waitForPayload(t, handler)
	assert.Contains(t, string(payload), `"Amount": 42`)

	// The server hangs up after the data message; the connector must fall to
	// disconnected and book the first retry.
	require.Eventually(t, func() bool {
		return c.State() == entity.StateDisconnected && len(clk.scheduled()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Second, clk.scheduled()[0])
}
