package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/store"
)

type UserHandler struct {
	logger  *logrus.Logger
	history store.HistorySource
}

func NewUserHandler(logger *logrus.Logger, history store.HistorySource) *UserHandler {
	return &UserHandler{
		logger:  logger,
		history: history,
	}
}

// History returns a user's questionnaire answers and activity ratings.
func (h *UserHandler) History(c *gin.Context) {
	userIDStr := c.Param("userId")
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user ID format",
			},
		})
		return
	}

	history, err := h.history.FetchUserHistory(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User not found",
				},
			})
			return
		}

		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to fetch user history")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "HISTORY_FETCH_FAILED",
				"message": "Failed to fetch user history",
			},
		})
		return
	}

	c.JSON(http.StatusOK, history)
}
