package service

import (
	"context"

	"fraud-stream-dashboard/internal/domain/entity"
)

// Reconciler defines the interface for folding raw feed payloads into the
// event log and aggregate statistics, and for the read-only snapshots the
// presentation layer renders from.
type Reconciler interface {
	// HandleMessage processes one raw payload from the stream connector.
	// Unrecognized shapes are dropped without error; the reconciler finishes
	// one message completely before the connector delivers the next.
	HandleMessage(ctx context.Context, payload []byte)

	// Stats returns a copy of the current aggregate statistics
	Stats() entity.AggregateStats

	// Events returns a snapshot of the event log with derived flags
	Events() []entity.Event

	// EventAt returns the detail view for the event at log position i
	EventAt(i int) (*entity.EventDetail, bool)
}
