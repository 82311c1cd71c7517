package storage

import (
	"sync"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/domain/repository"
)

// MemoryEventLog is the session-scoped, append-only event store. All state
// lives in memory and is discarded with the session; the dashboard has no
// persistence requirement.
type MemoryEventLog struct {
	mu           sync.RWMutex
	transactions []*entity.Transaction
	predictions  []*entity.Prediction
}

// NewMemoryEventLog creates an empty event log
func NewMemoryEventLog() repository.EventLog {
	return &MemoryEventLog{}
}

// AppendPair appends a transaction and its prediction at the same position
func (l *MemoryEventLog) AppendPair(tx *entity.Transaction, p *entity.Prediction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = append(l.transactions, tx)
	l.predictions = append(l.predictions, p)
}

// AppendPrediction appends a prediction with no paired transaction
func (l *MemoryEventLog) AppendPrediction(p *entity.Prediction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.predictions = append(l.predictions, p)
}

// TransactionCount returns the number of stored transactions
func (l *MemoryEventLog) TransactionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.transactions)
}

// PredictionCount returns the number of stored predictions
func (l *MemoryEventLog) PredictionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.predictions)
}

// TransactionAt returns the transaction at position i, or nil when out of range
func (l *MemoryEventLog) TransactionAt(i int) *entity.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.transactions) {
		return nil
	}
	return l.transactions[i]
}

// PredictionAt returns the prediction at position i, or nil when out of range
func (l *MemoryEventLog) PredictionAt(i int) *entity.Prediction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.predictions) {
		return nil
	}
	return l.predictions[i]
}

// Amounts returns the numeric amounts of stored transactions in log order
func (l *MemoryEventLog) Amounts() []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	amounts := make([]float64, 0, len(l.transactions))
	for _, tx := range l.transactions {
		if tx != nil && tx.Amount != nil {
			amounts = append(amounts, *tx.Amount)
		}
	}
	return amounts
}
