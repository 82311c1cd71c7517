package repository

import (
	"fraud-stream-dashboard/internal/domain/entity"
)

// EventLog defines the interface for the append-only event store backing the
// dashboard session. Transactions and predictions are parallel sequences that
// normally grow in lockstep; partial feed messages may append to only one
// side, so the two lengths are reported independently.
type EventLog interface {
	// AppendPair appends a transaction and its prediction at the same position
	AppendPair(tx *entity.Transaction, p *entity.Prediction)

	// AppendPrediction appends a prediction with no paired transaction
	AppendPrediction(p *entity.Prediction)

	// TransactionCount returns the number of stored transactions
	TransactionCount() int

	// PredictionCount returns the number of stored predictions
	PredictionCount() int

	// TransactionAt returns the transaction at position i, or nil when out of range
	TransactionAt(i int) *entity.Transaction

	// PredictionAt returns the prediction at position i, or nil when out of range
	PredictionAt(i int) *entity.Prediction

	// Amounts returns the numeric amounts of stored transactions in log order,
	// skipping transactions without one
	Amounts() []float64
}
