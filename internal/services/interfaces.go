package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/pkg/models"
)

// RecommendationServiceInterface is what the HTTP layer needs from RecommendationService.
type RecommendationServiceInterface interface {
	Latest(ctx context.Context) (*models.RecommendationResponse, error)
	Regenerate(ctx context.Context) ([]models.UserRecommendations, error)
	InvalidateResults(ctx context.Context)
}

// RegenerationQueue accepts asynchronous regeneration requests.
type RegenerationQueue interface {
	PublishRegeneration(ctx context.Context, req messaging.RegenerationRequest) error
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// JobTracker exposes regeneration job state to the HTTP layer.
type JobTracker interface {
	CreateJob(ctx context.Context, jobID uuid.UUID, requestedBy string) (*JobProgress, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*JobProgress, error)
	FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error
}
