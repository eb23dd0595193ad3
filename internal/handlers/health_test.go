package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/ekskulrec/internal/services"
)

func TestHealthHandler_Check(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status   string
		expected int
	}{
		{status: "healthy", expected: http.StatusOK},
		{status: "degraded", expected: http.StatusOK},
		{status: "unhealthy", expected: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			checker := new(MockHealthChecker)
			checker.On("CheckHealth", mock.Anything).Return(&services.HealthStatus{
				Status:    tt.status,
				Timestamp: time.Now(),
				Services:  map[string]string{"postgresql": "healthy"},
			})

			router := gin.New()
			router.GET("/health", NewHealthHandler(testLogger(), checker).Check)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expected, w.Code)
			assert.Contains(t, w.Body.String(), tt.status)
		})
	}
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/metrics", Metrics())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
