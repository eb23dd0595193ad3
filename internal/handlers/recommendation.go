package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/internal/services"
	"github.com/temcen/ekskulrec/internal/validation"
	"github.com/temcen/ekskulrec/pkg/models"
)

type RecommendationHandler struct {
	service services.RecommendationServiceInterface
	// queue is nil when messaging is disabled; generation then runs inline.
	queue services.RegenerationQueue
	// jobs is nil when queued jobs are not tracked.
	jobs services.JobTracker
	// responses, when set, checks outgoing payloads against their schema.
	responses *validation.SchemaValidator
	logger    *logrus.Logger
}

func NewRecommendationHandler(
	service services.RecommendationServiceInterface,
	queue services.RegenerationQueue,
	jobs services.JobTracker,
	responses *validation.SchemaValidator,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		service:   service,
		queue:     queue,
		jobs:      jobs,
		responses: responses,
		logger:    logger,
	}
}

type generateRequest struct {
	RequestedBy string `json:"requested_by"`
}

// List returns the ranked recommendations of every non-admin user.
func (h *RecommendationHandler) List(c *gin.Context) {
	result, err := h.service.Latest(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATION_GENERATION_FAILED",
				"message": "Failed to generate recommendations",
			},
		})
		return
	}

	if h.responses != nil {
		if check := h.responses.Validate(validation.RecommendationsSchema, result.Users); !check.Valid {
			h.logger.WithError(check.Err()).Warn("Recommendation response does not match schema")
		}
	}

	c.JSON(http.StatusOK, result)
}

// Generate triggers a fresh run: queued when messaging is enabled, inline otherwise.
func (h *RecommendationHandler) Generate(c *gin.Context) {
	// The body is optional; an empty one means an anonymous request.
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST_BODY",
				"message": "Invalid request body",
			},
		})
		return
	}

	if h.queue != nil {
		jobID := uuid.New()
		if h.jobs != nil {
			if _, err := h.jobs.CreateJob(c.Request.Context(), jobID, body.RequestedBy); err != nil {
				h.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to record regeneration job")
			}
		}

		// A queued run supersedes whatever is cached; readers recompute until it lands.
		h.service.InvalidateResults(c.Request.Context())

		req := messaging.RegenerationRequest{
			JobID:       jobID,
			RequestedAt: time.Now().UTC(),
			RequestedBy: body.RequestedBy,
		}
		if err := h.queue.PublishRegeneration(c.Request.Context(), req); err != nil {
			h.logger.WithError(err).Error("Failed to enqueue regeneration")
			if h.jobs != nil {
				if jobErr := h.jobs.FailJob(c.Request.Context(), jobID, "failed to enqueue"); jobErr != nil {
					h.logger.WithError(jobErr).WithField("job_id", jobID).Warn("Failed to record job failure")
				}
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{
					"code":    "QUEUE_UNAVAILABLE",
					"message": "Failed to schedule recommendation generation",
				},
			})
			return
		}

		c.JSON(http.StatusAccepted, models.GenerateResponse{
			Success: true,
			Message: "Recommendation generation scheduled",
			JobID:   &jobID,
		})
		return
	}

	users, err := h.service.Regenerate(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATION_GENERATION_FAILED",
				"message": "Failed to generate recommendations",
			},
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"users":        len(users),
		"requested_by": body.RequestedBy,
	}).Info("Recommendations regenerated on request")

	c.JSON(http.StatusOK, models.GenerateResponse{
		Success: true,
		Message: "Recommendations generated",
		Users:   len(users),
	})
}

// Job reports the state of a queued regeneration.
func (h *RecommendationHandler) Job(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_JOB_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	if h.jobs == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "Job not found",
			},
		})
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "JOB_NOT_FOUND",
					"message": "Job not found",
				},
			})
			return
		}

		h.logger.WithError(err).WithField("job_id", jobID).Error("Failed to get job status")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "JOB_STATUS_FAILED",
				"message": "Failed to get job status",
			},
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
