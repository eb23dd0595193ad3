package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/store"
)

type CategoryHandler struct {
	history store.HistorySource
	logger  *logrus.Logger
}

func NewCategoryHandler(history store.HistorySource, logger *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{
		history: history,
		logger:  logger,
	}
}

// List returns the distinct questionnaire categories.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.history.FetchCategories(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch categories")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "CATEGORIES_FETCH_FAILED",
				"message": "Failed to fetch categories",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}
