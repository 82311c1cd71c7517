package entity

import (
	"encoding/json"
	"strings"
)

// Transaction represents one financial event received from the fraud feed.
// Every field is optional on the wire; absent fields stay nil/zero and must
// never fault downstream processing.
type Transaction struct {
	TransactionID string
	Time          *float64
	Amount        *float64
	Class         *int
	// Features holds the opaque model inputs (V1..V28). Only the
	// classification fallback path reads them.
	Features map[string]float64
}

// Feature returns the named feature value and whether it was present.
func (t *Transaction) Feature(name string) (float64, bool) {
	if t == nil || t.Features == nil {
		return 0, false
	}
	v, ok := t.Features[name]
	return v, ok
}

// AmountValue returns the amount, or 0 when absent.
func (t *Transaction) AmountValue() float64 {
	if t == nil || t.Amount == nil {
		return 0
	}
	return *t.Amount
}

// transactionFields mirrors the fixed wire fields of a transaction.
type transactionFields struct {
	TransactionID string   `json:"transaction_id,omitempty"`
	Time          *float64 `json:"Time,omitempty"`
	Amount        *float64 `json:"Amount,omitempty"`
	Class         *int     `json:"Class,omitempty"`
}

// UnmarshalJSON decodes the fixed fields and collects the V* feature columns,
// which arrive flattened at the top level of the transaction object.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var fields transactionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.TransactionID = fields.TransactionID
	t.Time = fields.Time
	t.Amount = fields.Amount
	t.Class = fields.Class
	t.Features = nil

	for key, val := range raw {
		if !isFeatureKey(key) {
			continue
		}
		var f float64
		if err := json.Unmarshal(val, &f); err != nil {
			// Non-numeric feature values are dropped, not fatal.
			continue
		}
		if t.Features == nil {
			t.Features = make(map[string]float64)
		}
		t.Features[key] = f
	}

	return nil
}

// MarshalJSON re-flattens the feature columns next to the fixed fields so the
// wire shape matches what the feed emits.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.Features)+4)
	if t.TransactionID != "" {
		out["transaction_id"] = t.TransactionID
	}
	if t.Time != nil {
		out["Time"] = *t.Time
	}
	if t.Amount != nil {
		out["Amount"] = *t.Amount
	}
	if t.Class != nil {
		out["Class"] = *t.Class
	}
	for key, val := range t.Features {
		out[key] = val
	}
	return json.Marshal(out)
}

// isFeatureKey reports whether key names a model feature column (V1..Vn).
func isFeatureKey(key string) bool {
	if len(key) < 2 || !strings.HasPrefix(key, "V") {
		return false
	}
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Prediction holds the per-model binary votes for the transaction at the same
// log position. Absent votes count as non-fraud.
type Prediction struct {
	Logistic     *int     `json:"logistic,omitempty"`
	RandomForest *int     `json:"random_forest,omitempty"`
	XGBoost      *int     `json:"xgboost,omitempty"`
	FraudScore   *float64 `json:"fraud_score,omitempty"`
}
