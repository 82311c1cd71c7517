package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/logger"
)

// NATSSource feeds the server with transactions published on a NATS subject,
// for deployments where a real ingest pipeline replaces the simulator.
type NATSSource struct {
	config *config.NATSConfig
	logger *logger.Logger
	conn   *nats.Conn
	sub    *nats.Subscription
	out    chan *entity.Transaction

	// mu fences message callbacks against Stop: a callback holds the read
	// side across its send, so out cannot be closed under it.
	mu      sync.RWMutex
	stopped bool
}

// NewNATSSource creates a NATS-backed transaction source
func NewNATSSource(cfg *config.NATSConfig, log *logger.Logger) *NATSSource {
	return &NATSSource{
		config: cfg,
		logger: log.WithComponent("nats-source"),
		out:    make(chan *entity.Transaction, cfg.MaxPendingMessages),
	}
}

// Start connects to NATS and subscribes to the transaction subject
func (n *NATSSource) Start(ctx context.Context) error {
	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("fraud-stream-feed"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n.conn = conn

	sub, err := conn.QueueSubscribe(n.config.Subject, n.config.ConsumerGroup, n.handleMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", n.config.Subject, err)
	}
	n.sub = sub

	n.logger.Info("Subscribed to transaction subject",
		zap.String("subject", n.config.Subject),
		zap.String("queue_group", n.config.ConsumerGroup))
	return nil
}

// handleMessage decodes one published transaction and queues it for scoring.
// Messages racing a Stop are dropped, never sent on the closed channel.
func (n *NATSSource) handleMessage(msg *nats.Msg) {
	var tx entity.Transaction
	if err := json.Unmarshal(msg.Data, &tx); err != nil {
		n.logger.Error("Failed to unmarshal transaction", zap.Error(err))
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		return
	}

	select {
	case n.out <- &tx:
		n.logger.Debug("Queued transaction", zap.String("transaction_id", tx.TransactionID))
	default:
		n.logger.Warn("Transaction channel full, dropping message",
			zap.String("transaction_id", tx.TransactionID))
	}
}

// Transactions returns the channel transactions are delivered on
func (n *NATSSource) Transactions() <-chan *entity.Transaction {
	return n.out
}

// Stop unsubscribes and closes the NATS connection. The out channel is closed
// only after the stopped flag is set under the write lock, which waits out any
// callback still holding the read side.
func (n *NATSSource) Stop() error {
	if n.sub != nil {
		n.sub.Unsubscribe()
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}

	n.mu.Lock()
	if !n.stopped {
		n.stopped = true
		close(n.out)
	}
	n.mu.Unlock()

	n.logger.Info("Disconnected from NATS")
	return nil
}
