package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/pkg/models"
)

// GraphRatingStore reads ratings stored as (:User)-[:RATED]->(:Activity) edges.
type GraphRatingStore struct {
	driver neo4j.DriverWithContext
	logger *logrus.Logger
}

func NewGraphRatingStore(driver neo4j.DriverWithContext, logger *logrus.Logger) *GraphRatingStore {
	return &GraphRatingStore{
		driver: driver,
		logger: logger,
	}
}

func (s *GraphRatingStore) FetchRatings(ctx context.Context) ([]models.Rating, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User)-[r:RATED]->(a:Activity)
		WHERE r.rating IS NOT NULL
		RETURN u.user_id AS user_id, a.activity_id AS activity_id, r.rating AS rating
		ORDER BY user_id, activity_id`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating graph: %w", err)
	}

	var ratings []models.Rating
	skipped := 0
	for result.Next(ctx) {
		rating, err := ratingFromValues(result.Record().Values)
		if err != nil {
			skipped++
			continue
		}
		ratings = append(ratings, rating)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rating graph: %w", err)
	}

	if skipped > 0 {
		s.logger.WithField("skipped", skipped).Warn("Skipped malformed RATED edges")
	}

	return ratings, nil
}

// ratingFromValues converts one (user_id, activity_id, rating) record.
// Neo4j returns integers as int64 and may hold ratings as floats.
func ratingFromValues(values []any) (models.Rating, error) {
	if len(values) != 3 {
		return models.Rating{}, fmt.Errorf("expected 3 values, got %d", len(values))
	}

	userStr, ok := values[0].(string)
	if !ok {
		return models.Rating{}, fmt.Errorf("user_id is %T, not string", values[0])
	}
	userID, err := uuid.Parse(userStr)
	if err != nil {
		return models.Rating{}, fmt.Errorf("invalid user_id: %w", err)
	}

	activityStr, ok := values[1].(string)
	if !ok {
		return models.Rating{}, fmt.Errorf("activity_id is %T, not string", values[1])
	}
	activityID, err := uuid.Parse(activityStr)
	if err != nil {
		return models.Rating{}, fmt.Errorf("invalid activity_id: %w", err)
	}

	var rating int
	switch v := values[2].(type) {
	case int64:
		rating = int(v)
	case float64:
		rating = int(v)
	default:
		return models.Rating{}, fmt.Errorf("rating is %T, not numeric", values[2])
	}

	return models.Rating{UserID: userID, ActivityID: activityID, Rating: rating}, nil
}
