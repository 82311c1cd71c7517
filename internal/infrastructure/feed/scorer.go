package feed

import (
	"math"
	"math/rand"

	"fraud-stream-dashboard/internal/domain/entity"
)

// Score thresholds per model family. The three binary votes come from the
// same underlying score, which is why a transaction that trips the logistic
// model does not necessarily trip the stricter ones.
const (
	logisticThreshold     = 0.5
	randomForestThreshold = 0.6
	xgboostThreshold      = 0.7
	maxReportedScore      = 0.99
)

// Scorer stands in for the external model ensemble: it derives a fraud score
// from a few feature heuristics plus noise and thresholds it into the three
// per-model votes.
type Scorer struct {
	rng *rand.Rand
}

// NewScorer creates a scorer with the given noise source
func NewScorer(rng *rand.Rand) *Scorer {
	return &Scorer{rng: rng}
}

// Score produces the prediction for one transaction.
func (s *Scorer) Score(tx *entity.Transaction) *entity.Prediction {
	score := 0.0
	if v, ok := tx.Feature("V1"); ok && v < -5 {
		score += 0.3
	}
	if v, ok := tx.Feature("V3"); ok && v < -5 {
		score += 0.2
	}
	if tx.Amount != nil && *tx.Amount > 1000 {
		score += 0.2
	}
	score += s.rng.Float64() * 0.3

	reported := math.Min(math.Round(score*100)/100, maxReportedScore)

	return &entity.Prediction{
		Logistic:     vote(score > logisticThreshold),
		RandomForest: vote(score > randomForestThreshold),
		XGBoost:      vote(score > xgboostThreshold),
		FraudScore:   &reported,
	}
}

func vote(positive bool) *int {
	v := 0
	if positive {
		v = 1
	}
	return &v
}
