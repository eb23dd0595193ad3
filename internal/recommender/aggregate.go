package recommender

import (
	"sort"

	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/pkg/models"
)

// ScoredActivity is one aggregated, ranked candidate.
type ScoredActivity struct {
	Activity           models.Activity
	Rank               int
	Total              float64
	CFScore            float64
	DirectRating       float64
	CategoryBoost      float64
	MatchingCategories []string
}

// Aggregate walks the whole catalog, combines the CF score, the user's own
// rating and the category boost, drops non-positive totals and ranks the rest.
// Ties keep catalog order. limit <= 0 returns every positive activity.
func (e *Engine) Aggregate(
	cf map[uuid.UUID]float64,
	direct Vector[uuid.UUID],
	categoryInterest map[string]float64,
	activities []models.Activity,
	limit int,
) []ScoredActivity {
	w := e.cfg.Weights
	results := make([]ScoredActivity, 0, len(activities))

	for _, activity := range activities {
		boost, matching := categoryBoost(activity.Categories, categoryInterest)
		scored := ScoredActivity{
			Activity:           activity,
			CFScore:            cf[activity.ID],
			DirectRating:       direct[activity.ID],
			CategoryBoost:      boost,
			MatchingCategories: matching,
		}
		scored.Total = scored.CFScore*w.CF + scored.DirectRating*w.Self + scored.CategoryBoost*w.Category

		if scored.Total <= 0 {
			continue
		}
		results = append(results, scored)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Total > results[j].Total
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}

// categoryBoost sums the user's interest over an activity's distinct tags and
// reports the tags (as written on the activity) that carried positive interest.
func categoryBoost(tags []string, interest map[string]float64) (float64, []string) {
	var boost float64
	matching := []string{}
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		key := CategoryKey(tag).ID
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}

		weight := interest[key]
		boost += weight
		if weight > 0 {
			matching = append(matching, tag)
		}
	}

	return boost, matching
}
