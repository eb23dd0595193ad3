package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/database"
	"github.com/temcen/ekskulrec/internal/handlers"
	"github.com/temcen/ekskulrec/internal/middleware"
	"github.com/temcen/ekskulrec/internal/services"
	"github.com/temcen/ekskulrec/internal/validation"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	cancelWorkers context.CancelFunc
	workers       sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	svc, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	validator, err := validation.NewSchemaValidator()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	// Outgoing payloads are only checked outside production.
	var responses *validation.SchemaValidator
	if cfg.Server.Mode != "production" {
		responses = validator
	}

	app.handlers = handlers.New(app.logger, svc, responses)
	app.router = newRouter(cfg, app.logger, app.handlers, middleware.NewValidationMiddleware(validator))

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches background workers: the regeneration consumer when
// messaging is enabled, and the connection pool sampler.
func (a *App) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancelWorkers = cancel

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		a.services.Health.CollectPoolMetrics(ctx, 30*time.Second)
	}()

	if bus := a.services.MessageBus; bus != nil {
		a.workers.Add(2)
		go func() {
			defer a.workers.Done()
			a.services.Metrics.CollectConsumerStats(ctx, bus, 15*time.Second)
		}()
		go func() {
			defer a.workers.Done()
			err := bus.ConsumeRegenerations(ctx, a.services.Recommendation.HandleRegeneration)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).Error("Regeneration consumer stopped")
			}
		}()
		a.logger.Info("Regeneration consumer started")
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}

	done := make(chan struct{})
	go func() {
		a.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Background workers did not stop before the shutdown deadline")
	}

	var errs []error
	if a.services.MessageBus != nil {
		if err := a.services.MessageBus.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing message bus")
			errs = append(errs, err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func newRouter(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers, vm *middleware.ValidationMiddleware) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg))

	router.GET("/health", h.Health.Check)

	if cfg.Monitoring.Enabled {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, handlers.Metrics())
	}

	api := router.Group("/api/v1")
	{
		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("", h.Recommendation.List)
			recommendations.POST("/generate", vm.ValidateGenerateRequest(), h.Recommendation.Generate)
			recommendations.GET("/jobs/:jobId", h.Recommendation.Job)
		}

		api.GET("/categories", h.Category.List)

		users := api.Group("/users")
		{
			users.GET("/:userId/history", vm.RequireUUIDParam("userId"), h.User.History)
		}
	}

	return router
}
