package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/database"
	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/internal/recommender"
	"github.com/temcen/ekskulrec/internal/store"
	"github.com/temcen/ekskulrec/internal/validation"
)

type Services struct {
	Health         *HealthService
	Metrics        *MetricsCollector
	Jobs           *JobManager
	MessageBus     *messaging.MessageBus
	History        store.HistorySource
	References     *ReferenceCache
	Recommendation *RecommendationService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	engineCfg, err := EngineConfig(cfg.Recommendation)
	if err != nil {
		return nil, err
	}
	engine, err := recommender.NewEngine(engineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation engine: %w", err)
	}

	pg := store.NewPostgresStore(db.PG, logger)
	var source store.Source = pg
	if cfg.Store.RatingsBackend == "neo4j" {
		if db.Neo4j == nil {
			return nil, fmt.Errorf("ratings backend neo4j requires neo4j.enabled")
		}
		source = &store.CompositeSource{
			Source:  pg,
			Ratings: store.NewGraphRatingStore(db.Neo4j, logger),
		}
	}

	metrics := NewMetricsCollector(logger)
	references := NewReferenceCache(source, cfg.Recommendation.Caching.ReferenceTTL, nil, metrics, logger)

	svc := &Services{
		Health:     NewHealthService(logger, db),
		Metrics:    metrics,
		History:    pg,
		References: references,
	}

	var publisher EventPublisher
	if cfg.Kafka.Enabled {
		validator, err := validation.NewSchemaValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to load message schemas: %w", err)
		}
		bus, err := messaging.NewMessageBus(cfg, validator, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create message bus: %w", err)
		}
		svc.MessageBus = bus
		publisher = bus
	}

	var cache ResultCache
	if db.Redis != nil {
		cache = db.Redis
	}

	svc.Recommendation = NewRecommendationService(
		source, references, engine, cache, publisher, cfg.Recommendation, metrics, logger,
	)

	// Job state lives in Redis; without it queued jobs are not tracked.
	if cache != nil && svc.MessageBus != nil {
		svc.Jobs = NewJobManager(cache, logger)
		svc.Recommendation.jobs = svc.Jobs
	}

	return svc, nil
}

// EngineConfig translates the recommendation section of the config.
func EngineConfig(cfg config.RecommendationConfig) (recommender.Config, error) {
	metric, err := recommender.ParseMetric(cfg.Similarity.Metric)
	if err != nil {
		return recommender.Config{}, err
	}

	return recommender.Config{
		Metric:          metric,
		Threshold:       cfg.Similarity.Threshold,
		UserBasedWeight: cfg.Weights.UserBased,
		ItemBasedWeight: cfg.Weights.ItemBased,
		Weights: recommender.Weights{
			CF:       cfg.Weights.CollaborativeFilter,
			Self:     cfg.Weights.SelfRating,
			Category: cfg.Weights.CategoryBoost,
		},
	}, nil
}
