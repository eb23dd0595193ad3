package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/services"
	"github.com/temcen/ekskulrec/internal/validation"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Category       *CategoryHandler
	User           *UserHandler
}

// New builds the HTTP handlers. responses may be nil to skip outgoing schema checks.
func New(logger *logrus.Logger, svc *services.Services, responses *validation.SchemaValidator) *Handlers {
	var queue services.RegenerationQueue
	if svc.MessageBus != nil {
		queue = svc.MessageBus
	}

	var jobs services.JobTracker
	if svc.Jobs != nil {
		jobs = svc.Jobs
	}

	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.Recommendation, queue, jobs, responses, logger),
		Category:       NewCategoryHandler(svc.History, logger),
		User:           NewUserHandler(logger, svc.History),
	}
}
