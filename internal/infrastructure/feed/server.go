package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/infrastructure/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// feedMessage is the combined wire shape emitted for every scored transaction.
type feedMessage struct {
	Predictions *entity.Prediction  `json:"predictions"`
	Transaction *entity.Transaction `json:"transaction"`
}

// greeting is sent once per connection before any data message.
type greeting struct {
	Message string `json:"message"`
}

// Server is the websocket feed endpoint. Every connected dashboard receives
// the same stream of scored transactions; a client may also submit its own
// transaction for on-demand scoring and gets the result back on its socket.
type Server struct {
	source   TransactionSource
	scorer   *Scorer
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newFeedClient(conn *websocket.Conn) *feedClient {
	return &feedClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// shutdown signals the client's pumps to exit. The send channel is never
// closed: a closed done channel is the only teardown signal, so a concurrent
// trySend can never panic.
func (c *feedClient) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues a payload without ever blocking or panicking: a shut-down
// client or a full buffer just drops it.
func (c *feedClient) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// NewServer creates a feed server over the given transaction source
func NewServer(source TransactionSource, scorer *Scorer, log *logger.Logger) *Server {
	return &Server{
		source:  source,
		scorer:  scorer,
		logger:  log.WithComponent("feed-server"),
		clients: make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP routes for the feed endpoint
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws/fraud_detection/", s.handleWebSocket)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

// Start begins scoring and broadcasting transactions from the source.
func (s *Server) Start(ctx context.Context) error {
	if err := s.source.Start(ctx); err != nil {
		return err
	}
	go s.broadcastLoop()
	s.logger.Info("Feed server started")
	return nil
}

// Stop stops the source and disconnects every client.
func (s *Server) Stop() error {
	err := s.source.Stop()

	s.mu.Lock()
	for c := range s.clients {
		c.shutdown()
		delete(s.clients, c)
	}
	s.mu.Unlock()

	s.logger.Info("Feed server stopped")
	return err
}

func (s *Server) broadcastLoop() {
	for tx := range s.source.Transactions() {
		payload, err := json.Marshal(feedMessage{
			Predictions: s.scorer.Score(tx),
			Transaction: tx,
		})
		if err != nil {
			s.logger.Error("Failed to marshal feed message", zap.Error(err))
			continue
		}
		s.broadcast(payload)
	}
}

func (s *Server) broadcast(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.trySend(payload) {
			// Slow consumer; drop it rather than stall the feed.
			c.shutdown()
			delete(s.clients, c)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := newFeedClient(conn)

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("Dashboard connected", zap.String("remote", conn.RemoteAddr().String()))

	// Connection confirmation precedes all data messages.
	if msg, err := json.Marshal(greeting{Message: "Connected to WebSocket"}); err == nil {
		client.trySend(msg)
	}

	go s.writePump(client)
	go s.readPump(client)
}

// readPump consumes client messages; a submitted transaction gets scored and
// answered on the submitting socket only.
func (s *Server) readPump(c *feedClient) {
	defer s.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Unexpected websocket close", zap.Error(err))
			}
			return
		}

		var req struct {
			Transaction *entity.Transaction `json:"transaction"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.Transaction == nil {
			s.logger.Debug("Ignoring client message", zap.ByteString("payload", data))
			continue
		}

		payload, err := json.Marshal(feedMessage{
			Predictions: s.scorer.Score(req.Transaction),
			Transaction: req.Transaction,
		})
		if err != nil {
			continue
		}
		c.trySend(payload)
	}
}

func (s *Server) writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) dropClient(c *feedClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.shutdown()
	c.conn.Close()
}
