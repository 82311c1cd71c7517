package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-stream-dashboard/internal/infrastructure/logger"
	"fraud-stream-dashboard/internal/infrastructure/metrics"
	"fraud-stream-dashboard/internal/infrastructure/storage"
)

func newTestReconciler(t *testing.T) (*ReconcilerService, *storage.MemoryEventLog) {
	t.Helper()
	eventLog := storage.NewMemoryEventLog().(*storage.MemoryEventLog)
	rec := NewReconcilerService(eventLog, metrics.NewMetrics(), logger.NewNop()).(*ReconcilerService)
	return rec, eventLog
}

func TestHandleMessage_StatusMessageIgnored(t *testing.T) {
	rec, eventLog := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{"message": "Connected to WebSocket"}`))

	assert.Equal(t, 0, eventLog.TransactionCount())
	assert.Equal(t, 0, eventLog.PredictionCount())
	assert.Zero(t, rec.Stats())
}

func TestHandleMessage_CombinedShape(t *testing.T) {
	rec, eventLog := newTestReconciler(t)

	payload := []byte(`{
		"predictions": {"logistic": 0, "random_forest": 0, "xgboost": 1},
		"transaction": {"Amount": 50}
	}`)
	rec.HandleMessage(context.Background(), payload)

	assert.Equal(t, 1, eventLog.TransactionCount())
	assert.Equal(t, 1, eventLog.PredictionCount())

	stats := rec.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Flagged)
	assert.Equal(t, 500.0, stats.RecentVolume) // 50 * 10
}

func TestHandleMessage_SingleShape(t *testing.T) {
	rec, _ := newTestReconciler(t)

	payload := []byte(`{
		"prediction": {"logistic": 0, "random_forest": 0, "xgboost": 0},
		"transaction": {"Amount": 200}
	}`)
	rec.HandleMessage(context.Background(), payload)
	rec.HandleMessage(context.Background(), payload)

	stats := rec.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Flagged)
	assert.Equal(t, 400.0, stats.RecentVolume) // raw amount, no multiplier
}

func TestHandleMessage_BarePrediction(t *testing.T) {
	rec, eventLog := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{"prediction": {"logistic": 1}}`))

	assert.Equal(t, 0, eventLog.TransactionCount())
	assert.Equal(t, 1, eventLog.PredictionCount())
	assert.Zero(t, rec.Stats())
}

func TestHandleMessage_UnknownShapesDropped(t *testing.T) {
	rec, eventLog := newTestReconciler(t)

	payloads := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"something": "else"}`),
		[]byte(`{"transaction": {"Amount": 99}}`),
		[]byte(`[1, 2, 3]`),
	}
	for _, p := range payloads {
		rec.HandleMessage(context.Background(), p)
	}

	assert.Equal(t, 0, eventLog.TransactionCount())
	assert.Equal(t, 0, eventLog.PredictionCount())
	assert.Zero(t, rec.Stats())
}

func TestHandleMessage_MissingAmountContributesZero(t *testing.T) {
	rec, _ := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{
		"predictions": {"logistic": 1},
		"transaction": {"transaction_id": "tx-1"}
	}`))

	stats := rec.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Flagged)
	assert.Equal(t, 0.0, stats.RecentVolume)
}

func TestEvents_SnapshotWithFlags(t *testing.T) {
	rec, _ := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{
		"predictions": {"logistic": 1},
		"transaction": {"transaction_id": "tx-1", "Amount": 10}
	}`))
	rec.HandleMessage(context.Background(), []byte(`{
		"predictions": {"logistic": 0, "random_forest": 0, "xgboost": 0},
		"transaction": {"transaction_id": "tx-2", "Amount": 20}
	}`))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Index)
	assert.True(t, events[0].Fraud)
	assert.False(t, events[1].Fraud)
	assert.Equal(t, "tx-2", events[1].Transaction.TransactionID)
}

func TestEvents_SpansUnpairedPredictions(t *testing.T) {
	rec, _ := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{"prediction": {"logistic": 1}}`))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Transaction)
	assert.True(t, events[0].Fraud)
	assert.False(t, events[0].Anomaly)
}

func TestEventAt_DetailView(t *testing.T) {
	rec, _ := newTestReconciler(t)

	rec.HandleMessage(context.Background(), []byte(`{
		"predictions": {"logistic": 0, "random_forest": 0, "xgboost": 0},
		"transaction": {"transaction_id": "tx-9", "Amount": 5000, "Class": 1}
	}`))

	detail, ok := rec.EventAt(0)
	require.True(t, ok)
	assert.Equal(t, "tx-9", detail.Transaction.TransactionID)
	// The negative prediction wins over every display heuristic.
	assert.False(t, detail.Fraud)
	assert.False(t, detail.DisplayFraud)

	_, ok = rec.EventAt(1)
	assert.False(t, ok)
	_, ok = rec.EventAt(-1)
	assert.False(t, ok)
}

func TestEvents_AnomalyFlag(t *testing.T) {
	rec, _ := newTestReconciler(t)

	// Nine small amounts and one large one: threshold is 703, so only the
	// 1000 flags.
	for i := 0; i < 9; i++ {
		rec.HandleMessage(context.Background(), []byte(`{
			"predictions": {"logistic": 0},
			"transaction": {"Amount": 10}
		}`))
	}
	rec.HandleMessage(context.Background(), []byte(`{
		"predictions": {"logistic": 0},
		"transaction": {"Amount": 1000}
	}`))

	events := rec.Events()
	require.Len(t, events, 10)
	for i := 0; i < 9; i++ {
		assert.False(t, events[i].Anomaly)
	}
	assert.True(t, events[9].Anomaly)
}
