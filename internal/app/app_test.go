package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/handlers"
	"github.com/temcen/ekskulrec/internal/middleware"
	"github.com/temcen/ekskulrec/internal/services"
	"github.com/temcen/ekskulrec/internal/store"
	"github.com/temcen/ekskulrec/internal/validation"
	"github.com/temcen/ekskulrec/pkg/models"
)

type stubRecommendations struct{}

func (stubRecommendations) Latest(context.Context) (*models.RecommendationResponse, error) {
	return &models.RecommendationResponse{Users: []models.UserRecommendations{}, GeneratedAt: time.Now()}, nil
}

func (stubRecommendations) Regenerate(context.Context) ([]models.UserRecommendations, error) {
	return []models.UserRecommendations{}, nil
}

func (stubRecommendations) InvalidateResults(context.Context) {}

type stubHistory struct{}

func (stubHistory) FetchCategories(context.Context) ([]string, error) {
	return []string{"Olahraga"}, nil
}

func (stubHistory) FetchUserHistory(context.Context, uuid.UUID) (*models.UserHistory, error) {
	return nil, store.ErrUserNotFound
}

type stubHealth struct{}

func (stubHealth) CheckHealth(context.Context) *services.HealthStatus {
	return &services.HealthStatus{Status: "healthy", Services: map[string]string{}}
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	validator, err := validation.NewSchemaValidator()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Monitoring.Enabled = true

	h := &handlers.Handlers{
		Health:         handlers.NewHealthHandler(logger, stubHealth{}),
		Recommendation: handlers.NewRecommendationHandler(stubRecommendations{}, nil, nil, validator, logger),
		Category:       handlers.NewCategoryHandler(stubHistory{}, logger),
		User:           handlers.NewUserHandler(logger, stubHistory{}),
	}
	return newRouter(cfg, logger, h, middleware.NewValidationMiddleware(validator))
}

func TestRouter_Routes(t *testing.T) {
	router := testRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/recommendations", "", http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations/generate", "", http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations/generate", `{"requested_by":"admin"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations/generate", `{"unexpected":true}`, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/recommendations/jobs/" + uuid.New().String(), "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/categories", "", http.StatusOK},
		{http.MethodGet, "/api/v1/users/" + uuid.New().String() + "/history", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/users/not-a-uuid/history", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/content", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	logger := setupLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "text"
	logger = setupLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
