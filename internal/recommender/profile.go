package recommender

import (
	"cmp"

	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/pkg/models"
)

// FeatureKind separates the two signal types a profile carries.
type FeatureKind uint8

const (
	RatingFeature FeatureKind = iota + 1
	CategoryFeature
)

func (k FeatureKind) String() string {
	switch k {
	case RatingFeature:
		return "rating"
	case CategoryFeature:
		return "category"
	default:
		return "unknown"
	}
}

// FeatureKey identifies one slot of a profile. A rating for activity X and
// interest in category Y can never share a slot because Kind differs.
type FeatureKey struct {
	Kind FeatureKind
	ID   string
}

func ActivityKey(activityID uuid.UUID) FeatureKey {
	return FeatureKey{Kind: RatingFeature, ID: activityID.String()}
}

func CategoryKey(category string) FeatureKey {
	return FeatureKey{Kind: CategoryFeature, ID: models.CanonicalCategory(category)}
}

func (k FeatureKey) String() string {
	return k.Kind.String() + ":" + k.ID
}

// CompareFeatureKeys orders keys by kind, then by id.
func CompareFeatureKeys(a, b FeatureKey) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Profile is one user's sparse feature vector.
type Profile Vector[FeatureKey]

// CategoryInterest returns the accumulated questionnaire score per canonical category.
func (p Profile) CategoryInterest() map[string]float64 {
	interest := make(map[string]float64)
	for key, weight := range p {
		if key.Kind == CategoryFeature {
			interest[key.ID] = weight
		}
	}
	return interest
}

// Ratings returns the explicit rating per activity.
func (p Profile) Ratings() Vector[uuid.UUID] {
	ratings := make(Vector[uuid.UUID])
	for key, weight := range p {
		if key.Kind != RatingFeature {
			continue
		}
		if id, err := uuid.Parse(key.ID); err == nil {
			ratings[id] = weight
		}
	}
	return ratings
}

// BuildProfiles folds rating and response records into per-user profiles.
// Responses whose question is unknown, or whose category is blank, are skipped.
// Weights are summed, so the result does not depend on record order.
func BuildProfiles(
	ratings []models.Rating,
	responses []models.Response,
	questionCategory map[int64]string,
) map[uuid.UUID]Profile {
	profiles := make(map[uuid.UUID]Profile)

	profileFor := func(userID uuid.UUID) Profile {
		p, ok := profiles[userID]
		if !ok {
			p = make(Profile)
			profiles[userID] = p
		}
		return p
	}

	for _, r := range ratings {
		profileFor(r.UserID)[ActivityKey(r.ActivityID)] += float64(r.Rating)
	}

	for _, r := range responses {
		category, ok := questionCategory[r.QuestionID]
		if !ok {
			continue
		}
		key := CategoryKey(category)
		if key.ID == "" {
			continue
		}
		profileFor(r.UserID)[key] += float64(r.Score)
	}

	return profiles
}
