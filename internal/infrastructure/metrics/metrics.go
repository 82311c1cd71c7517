package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fraud-stream-dashboard/internal/domain/entity"
)

// Metrics holds the prometheus collectors for the dashboard core.
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal     prometheus.Counter
	FlaggedTotal    prometheus.Counter
	DroppedTotal    prometheus.Counter
	ReconnectsTotal prometheus.Counter
	ConnectionState prometheus.Gauge
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_dashboard_events_total",
			Help: "Accepted events folded into the event log",
		}),
		FlaggedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_dashboard_flagged_total",
			Help: "Events classified as fraudulent",
		}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_dashboard_dropped_messages_total",
			Help: "Feed messages dropped for unrecognized shape",
		}),
		ReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_dashboard_reconnects_total",
			Help: "Reconnect attempts scheduled after connection loss",
		}),
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraud_dashboard_connection_state",
			Help: "Feed connection state (0 disconnected, 1 connecting, 2 connected)",
		}),
	}
}

// SetConnectionState records the connector state on the gauge.
func (m *Metrics) SetConnectionState(state entity.ConnectionState) {
	if m == nil {
		return
	}
	switch state {
	case entity.StateConnected:
		m.ConnectionState.Set(2)
	case entity.StateConnecting:
		m.ConnectionState.Set(1)
	default:
		m.ConnectionState.Set(0)
	}
}
