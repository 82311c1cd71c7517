package entity

// AggregateStats is the running summary derived from the event log. It only
// ever grows; a new session starts from the zero value.
type AggregateStats struct {
	Total        int     `json:"total"`
	Flagged      int     `json:"flagged"`
	RecentVolume float64 `json:"recent_volume"`
}

// Event is one normalized (transaction, prediction) pair as exposed to
// presentation collaborators. Either side may be nil when the feed delivered
// a partial message.
type Event struct {
	Index       int          `json:"index"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Prediction  *Prediction  `json:"prediction,omitempty"`
	Fraud       bool         `json:"fraud"`
	Anomaly     bool         `json:"anomaly"`
}

// EventDetail is the response to "select transaction at log position i".
type EventDetail struct {
	Event
	DisplayFraud bool `json:"display_fraud"`
}
