package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/services"
)

type HealthHandler struct {
	logger  *logrus.Logger
	checker services.HealthChecker
}

func NewHealthHandler(logger *logrus.Logger, checker services.HealthChecker) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		checker: checker,
	}
}

// Check reports backend health. A degraded service still answers 200 since
// recommendations only need PostgreSQL.
func (h *HealthHandler) Check(c *gin.Context) {
	status := h.checker.CheckHealth(c.Request.Context())

	code := http.StatusOK
	switch status.Status {
	case "healthy":
	case "degraded":
		h.logger.WithField("services", status.Services).Warn("Health check degraded")
	case "unhealthy":
		code = http.StatusServiceUnavailable
		h.logger.WithField("services", status.Services).Error("Health check failed")
	default:
		code = http.StatusInternalServerError
	}

	c.JSON(code, status)
}
