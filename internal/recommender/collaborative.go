package recommender

import (
	"github.com/google/uuid"
)

// CFScores keeps the user-based and item-based contributions apart; Combined
// is their weighted sum and is what the aggregator consumes.
type CFScores struct {
	UserBased map[uuid.UUID]float64
	ItemBased map[uuid.UUID]float64
	Combined  map[uuid.UUID]float64
}

// CollaborativeScores computes both neighborhoods for target.
func (e *Engine) CollaborativeScores(target uuid.UUID, s *Snapshot) CFScores {
	userBased := e.UserBased(target, s)
	itemBased := e.ItemBased(target, s)

	combined := make(map[uuid.UUID]float64, len(userBased)+len(itemBased))
	for id, score := range userBased {
		combined[id] += score * e.cfg.UserBasedWeight
	}
	for id, score := range itemBased {
		combined[id] += score * e.cfg.ItemBasedWeight
	}

	return CFScores{
		UserBased: userBased,
		ItemBased: itemBased,
		Combined:  combined,
	}
}

// UserBased adds similarity*rating from every sufficiently similar user to
// each activity that user rated and the target has not.
func (e *Engine) UserBased(target uuid.UUID, s *Snapshot) map[uuid.UUID]float64 {
	scores := make(map[uuid.UUID]float64)

	mine := s.Profiles[target]
	if len(mine) == 0 {
		return scores
	}
	myRatings := s.RatingsByUser[target]

	for _, otherID := range s.users {
		if otherID == target {
			continue
		}

		sim := Similarity(e.cfg.Metric, Vector[FeatureKey](mine), Vector[FeatureKey](s.Profiles[otherID]), CompareFeatureKeys)
		if sim <= e.cfg.Threshold {
			continue
		}

		theirs := s.RatingsByUser[otherID]
		for _, activityID := range sortedKeys(theirs, CompareIDs) {
			if _, rated := myRatings[activityID]; rated {
				continue
			}
			scores[activityID] += sim * theirs[activityID]
		}
	}

	return scores
}

// ItemBased scores each activity the target has not rated by its similarity
// to the activities the target did rate, weighted by the target's own rating.
func (e *Engine) ItemBased(target uuid.UUID, s *Snapshot) map[uuid.UUID]float64 {
	scores := make(map[uuid.UUID]float64)

	myRatings := s.RatingsByUser[target]
	if len(myRatings) == 0 {
		return scores
	}

	for _, baseID := range sortedKeys(myRatings, CompareIDs) {
		baseVector := s.RatingsByActivity[baseID]

		for _, otherID := range s.activities {
			if otherID == baseID {
				continue
			}
			if _, rated := myRatings[otherID]; rated {
				continue
			}

			sim := Similarity(e.cfg.Metric, baseVector, s.RatingsByActivity[otherID], CompareIDs)
			if sim <= e.cfg.Threshold {
				continue
			}
			scores[otherID] += sim * myRatings[baseID]
		}
	}

	return scores
}
