package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/domain/repository"
	domain_service "fraud-stream-dashboard/internal/domain/service"
	"fraud-stream-dashboard/internal/infrastructure/logger"
	"fraud-stream-dashboard/internal/infrastructure/metrics"
)

// combinedVolumeMultiplier scales the volume contribution of combined
// {predictions, transaction} messages into the display unit. Single-prediction
// messages contribute the raw amount; the mismatch is observed upstream
// behavior and is kept as-is.
const combinedVolumeMultiplier = 10

// envelope covers every payload shape the feed emits. Exactly one of
// Predictions/Prediction is set on data messages; status messages carry only
// Message.
type envelope struct {
	Message     string              `json:"message"`
	Predictions *entity.Prediction  `json:"predictions"`
	Prediction  *entity.Prediction  `json:"prediction"`
	Transaction *entity.Transaction `json:"transaction"`
}

// ReconcilerService implements the Reconciler interface. It normalizes raw
// feed payloads into event-log entries and keeps the aggregate statistics,
// processing one message completely before the next.
type ReconcilerService struct {
	eventLog repository.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu    sync.RWMutex
	stats entity.AggregateStats
}

// NewReconcilerService creates a new reconciler service
func NewReconcilerService(
	eventLog repository.EventLog,
	m *metrics.Metrics,
	log *logger.Logger,
) domain_service.Reconciler {
	return &ReconcilerService{
		eventLog: eventLog,
		logger:   log.WithComponent("reconciler"),
		metrics:  m,
	}
}

// HandleMessage processes one raw payload from the stream connector.
// Dispatch order: combined {predictions, transaction} first, then
// single-prediction {prediction, transaction?}, then drop.
func (s *ReconcilerService) HandleMessage(ctx context.Context, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.drop("undecodable payload", zap.Error(err))
		return
	}

	switch {
	case env.Predictions != nil:
		s.appendPair(env.Transaction, env.Predictions, combinedVolumeMultiplier)

	case env.Prediction != nil:
		if env.Transaction != nil {
			s.appendPair(env.Transaction, env.Prediction, 1)
		} else {
			// A bare prediction still extends the prediction log; the
			// transaction log and aggregates stay untouched.
			s.eventLog.AppendPrediction(env.Prediction)
			s.logger.Debug("Appended unpaired prediction")
		}

	case env.Message != "":
		s.logger.Debug("Ignoring status message", zap.String("message", env.Message))

	default:
		s.drop("unrecognized payload shape")
	}
}

// appendPair appends one (transaction, prediction) record and folds it into
// the aggregates.
func (s *ReconcilerService) appendPair(tx *entity.Transaction, p *entity.Prediction, volumeMultiplier float64) {
	s.eventLog.AppendPair(tx, p)

	fraud := domain_service.IsFraud(p)

	s.mu.Lock()
	s.stats.Total++
	if fraud {
		s.stats.Flagged++
	}
	s.stats.RecentVolume += tx.AmountValue() * volumeMultiplier
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.EventsTotal.Inc()
		if fraud {
			s.metrics.FlaggedTotal.Inc()
		}
	}

	s.logger.Debug("Appended event",
		zap.String("transaction_id", transactionID(tx)),
		zap.Bool("fraud", fraud))
}

func (s *ReconcilerService) drop(reason string, fields ...zap.Field) {
	if s.metrics != nil {
		s.metrics.DroppedTotal.Inc()
	}
	s.logger.Debug("Dropping message: "+reason, fields...)
}

// Stats returns a copy of the current aggregate statistics
func (s *ReconcilerService) Stats() entity.AggregateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Events returns a snapshot of the event log with derived flags. The two logs
// can differ in length when unpaired predictions arrived; the snapshot spans
// the longer one.
func (s *ReconcilerService) Events() []entity.Event {
	n := s.eventLog.PredictionCount()
	if txCount := s.eventLog.TransactionCount(); txCount > n {
		n = txCount
	}

	threshold, hasThreshold := domain_service.AnomalyThreshold(s.eventLog.Amounts())

	events := make([]entity.Event, 0, n)
	for i := 0; i < n; i++ {
		tx := s.eventLog.TransactionAt(i)
		p := s.eventLog.PredictionAt(i)
		events = append(events, entity.Event{
			Index:       i,
			Transaction: tx,
			Prediction:  p,
			Fraud:       domain_service.IsFraud(p),
			Anomaly:     hasThreshold && tx != nil && tx.Amount != nil && *tx.Amount > threshold,
		})
	}
	return events
}

// EventAt returns the detail view for the event at log position i
func (s *ReconcilerService) EventAt(i int) (*entity.EventDetail, bool) {
	n := s.eventLog.PredictionCount()
	if txCount := s.eventLog.TransactionCount(); txCount > n {
		n = txCount
	}
	if i < 0 || i >= n {
		return nil, false
	}

	tx := s.eventLog.TransactionAt(i)
	p := s.eventLog.PredictionAt(i)
	threshold, hasThreshold := domain_service.AnomalyThreshold(s.eventLog.Amounts())

	return &entity.EventDetail{
		Event: entity.Event{
			Index:       i,
			Transaction: tx,
			Prediction:  p,
			Fraud:       domain_service.IsFraud(p),
			Anomaly:     hasThreshold && tx != nil && tx.Amount != nil && *tx.Amount > threshold,
		},
		DisplayFraud: domain_service.IsDisplayFraud(tx, p),
	}, true
}

func transactionID(tx *entity.Transaction) string {
	if tx == nil {
		return ""
	}
	return tx.TransactionID
}
