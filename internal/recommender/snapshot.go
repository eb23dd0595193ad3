package recommender

import (
	"slices"

	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/pkg/models"
)

// Snapshot is the immutable input shared by every per-user pipeline of a run.
// Nothing mutates it after NewSnapshot returns.
type Snapshot struct {
	Activities []models.Activity

	// Profiles holds one feature vector per user that has any signal.
	Profiles map[uuid.UUID]Profile
	// RatingsByUser is user -> activity -> rating.
	RatingsByUser map[uuid.UUID]Vector[uuid.UUID]
	// RatingsByActivity is activity -> user -> rating.
	RatingsByActivity map[uuid.UUID]Vector[uuid.UUID]

	// DanglingRatings counts ratings dropped because their activity is not in the catalog.
	DanglingRatings int

	users      []uuid.UUID
	activities []uuid.UUID
}

// NewSnapshot indexes raw records. Ratings that reference an activity missing
// from the catalog are excluded from every index.
func NewSnapshot(
	activities []models.Activity,
	questions []models.Question,
	ratings []models.Rating,
	responses []models.Response,
) *Snapshot {
	catalog := make(map[uuid.UUID]struct{}, len(activities))
	for _, a := range activities {
		catalog[a.ID] = struct{}{}
	}

	s := &Snapshot{
		Activities:        activities,
		RatingsByUser:     make(map[uuid.UUID]Vector[uuid.UUID]),
		RatingsByActivity: make(map[uuid.UUID]Vector[uuid.UUID]),
	}

	kept := make([]models.Rating, 0, len(ratings))
	for _, r := range ratings {
		if _, ok := catalog[r.ActivityID]; !ok {
			s.DanglingRatings++
			continue
		}
		kept = append(kept, r)

		byUser, ok := s.RatingsByUser[r.UserID]
		if !ok {
			byUser = make(Vector[uuid.UUID])
			s.RatingsByUser[r.UserID] = byUser
		}
		byUser[r.ActivityID] += float64(r.Rating)

		byActivity, ok := s.RatingsByActivity[r.ActivityID]
		if !ok {
			byActivity = make(Vector[uuid.UUID])
			s.RatingsByActivity[r.ActivityID] = byActivity
		}
		byActivity[r.UserID] += float64(r.Rating)
	}

	questionCategory := make(map[int64]string, len(questions))
	for _, q := range questions {
		questionCategory[q.ID] = q.Category
	}

	s.Profiles = BuildProfiles(kept, responses, questionCategory)

	for id := range s.Profiles {
		s.users = append(s.users, id)
	}
	slices.SortFunc(s.users, CompareIDs)

	for id := range s.RatingsByActivity {
		s.activities = append(s.activities, id)
	}
	slices.SortFunc(s.activities, CompareIDs)

	return s
}

// Profile returns the user's profile, or nil when the user has no signal.
func (s *Snapshot) Profile(userID uuid.UUID) Profile {
	return s.Profiles[userID]
}
