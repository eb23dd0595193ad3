package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/pkg/models"
)

var ErrUserNotFound = errors.New("user not found")

// Source supplies the raw records a recommendation run consumes.
type Source interface {
	FetchUsers(ctx context.Context, nonAdminOnly bool) ([]models.User, error)
	FetchRatings(ctx context.Context) ([]models.Rating, error)
	FetchResponses(ctx context.Context) ([]models.Response, error)
	FetchQuestions(ctx context.Context) ([]models.Question, error)
	FetchActivities(ctx context.Context) ([]models.Activity, error)
}

type RatingSource interface {
	FetchRatings(ctx context.Context) ([]models.Rating, error)
}

// HistorySource serves the read-only views around a single user.
type HistorySource interface {
	FetchCategories(ctx context.Context) ([]string, error)
	FetchUserHistory(ctx context.Context, userID uuid.UUID) (*models.UserHistory, error)
}

// CompositeSource reads ratings from a dedicated backend and everything else
// from the embedded Source.
type CompositeSource struct {
	Source
	Ratings RatingSource
}

func (c *CompositeSource) FetchRatings(ctx context.Context) ([]models.Rating, error) {
	return c.Ratings.FetchRatings(ctx)
}
