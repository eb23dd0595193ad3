package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/internal/services"
	"github.com/temcen/ekskulrec/pkg/models"
)

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) Latest(ctx context.Context) (*models.RecommendationResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecommendationResponse), args.Error(1)
}

func (m *MockRecommendationService) Regenerate(ctx context.Context) ([]models.UserRecommendations, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserRecommendations), args.Error(1)
}

func (m *MockRecommendationService) InvalidateResults(ctx context.Context) {
	m.Called(ctx)
}

type MockRegenerationQueue struct {
	mock.Mock
}

func (m *MockRegenerationQueue) PublishRegeneration(ctx context.Context, req messaging.RegenerationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type MockHistorySource struct {
	mock.Mock
}

func (m *MockHistorySource) FetchCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockHistorySource) FetchUserHistory(ctx context.Context, userID uuid.UUID) (*models.UserHistory, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserHistory), args.Error(1)
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) *services.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(*services.HealthStatus)
}

type MockJobTracker struct {
	mock.Mock
}

func (m *MockJobTracker) CreateJob(ctx context.Context, jobID uuid.UUID, requestedBy string) (*services.JobProgress, error) {
	args := m.Called(ctx, jobID, requestedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobProgress), args.Error(1)
}

func (m *MockJobTracker) GetJob(ctx context.Context, jobID uuid.UUID) (*services.JobProgress, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobProgress), args.Error(1)
}

func (m *MockJobTracker) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	args := m.Called(ctx, jobID, errorMessage)
	return args.Error(0)
}
