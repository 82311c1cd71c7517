package service

import (
	"fraud-stream-dashboard/internal/domain/entity"
)

// Thresholds for the display-only fallback predicate. They mirror the skew the
// upstream feed applies to fraudulent transactions.
const (
	fallbackFeature       = "V1"
	fallbackFeatureFloor  = -3.0
	fallbackAmountCeiling = 1000.0
)

// IsFraud is the single source of truth for the fraud flag: true iff at least
// one of the three model votes equals 1. A nil prediction is never fraud.
// Aggregate counting, alert membership and chart coloring all go through here.
func IsFraud(p *entity.Prediction) bool {
	if p == nil {
		return false
	}
	return voteSet(p.Logistic) || voteSet(p.RandomForest) || voteSet(p.XGBoost)
}

func voteSet(v *int) bool {
	return v != nil && *v == 1
}

// IsDisplayFraud is the broader predicate used only for table and alert
// display. When a prediction exists it defers to IsFraud unconditionally; the
// ground-truth label, feature and amount heuristics apply only to positions
// with no prediction at all.
func IsDisplayFraud(tx *entity.Transaction, p *entity.Prediction) bool {
	if p != nil {
		return IsFraud(p)
	}
	if tx == nil {
		return false
	}
	if tx.Class != nil && *tx.Class == 1 {
		return true
	}
	if v, ok := tx.Feature(fallbackFeature); ok && v < fallbackFeatureFloor {
		return true
	}
	return tx.Amount != nil && *tx.Amount > fallbackAmountCeiling
}
