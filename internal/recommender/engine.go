package recommender

import (
	"fmt"

	"github.com/google/uuid"
)

// Weights are the coefficients of the final score:
// total = cf*CF + direct*Self + categoryBoost*Category.
type Weights struct {
	CF       float64
	Self     float64
	Category float64
}

type Config struct {
	Metric Metric
	// Threshold discards neighbors whose similarity is at or below it.
	Threshold float64
	// UserBasedWeight and ItemBasedWeight combine the two CF sub-scores.
	UserBasedWeight float64
	ItemBasedWeight float64
	Weights         Weights
}

func DefaultConfig() Config {
	return Config{
		Metric:          MetricCosine,
		Threshold:       0.1,
		UserBasedWeight: 0.5,
		ItemBasedWeight: 0.5,
		Weights: Weights{
			CF:       0.5,
			Self:     2.0,
			Category: 0.2,
		},
	}
}

// Engine scores activities for one user at a time. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Metric != MetricCosine && cfg.Metric != MetricPearson {
		return nil, fmt.Errorf("unsupported similarity metric: %q", cfg.Metric)
	}
	return &Engine{cfg: cfg}, nil
}

// Recommend runs profile lookup, collaborative filtering and aggregation for
// one user. A user with no ratings and no responses gets an empty result.
func (e *Engine) Recommend(userID uuid.UUID, s *Snapshot, limit int) []ScoredActivity {
	profile := s.Profile(userID)
	if len(profile) == 0 {
		return []ScoredActivity{}
	}

	cf := e.CollaborativeScores(userID, s)
	return e.Aggregate(cf.Combined, s.RatingsByUser[userID], profile.CategoryInterest(), s.Activities, limit)
}
