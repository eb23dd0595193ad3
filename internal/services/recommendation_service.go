package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/internal/recommender"
	"github.com/temcen/ekskulrec/internal/store"
	"github.com/temcen/ekskulrec/pkg/models"
)

const resultsCacheKey = "recommendations:all"

// ResultCache is the subset of a Redis client used for generated results.
type ResultCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type EventPublisher interface {
	PublishGenerated(ctx context.Context, event messaging.RecommendationsGenerated) error
}

type RecommendationService struct {
	source     store.Source
	references *ReferenceCache
	engine     *recommender.Engine
	cache      ResultCache
	publisher  EventPublisher
	jobs       *JobManager
	cfg        config.RecommendationConfig
	metrics    *MetricsCollector
	logger     *logrus.Logger
	now        func() time.Time
}

func NewRecommendationService(
	source store.Source,
	references *ReferenceCache,
	engine *recommender.Engine,
	cache ResultCache,
	publisher EventPublisher,
	cfg config.RecommendationConfig,
	metrics *MetricsCollector,
	logger *logrus.Logger,
) *RecommendationService {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &RecommendationService{
		source:     source,
		references: references,
		engine:     engine,
		cache:      cache,
		publisher:  publisher,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateAll returns recommendations for every non-admin user, served from
// the result cache when a recent run is available.
func (s *RecommendationService) GenerateAll(ctx context.Context) ([]models.UserRecommendations, error) {
	resp, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Latest is GenerateAll with the run timestamp and cache provenance attached.
func (s *RecommendationService) Latest(ctx context.Context) (*models.RecommendationResponse, error) {
	if cached := s.cached(ctx); cached != nil {
		s.metrics.RecordRun("cache_hit", 0, len(cached.Users))
		return cached, nil
	}
	return s.run(ctx, nil)
}

// Regenerate always computes a fresh run and replaces the cached result.
func (s *RecommendationService) Regenerate(ctx context.Context) ([]models.UserRecommendations, error) {
	resp, err := s.run(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// HandleRegeneration processes a queued regeneration request.
func (s *RecommendationService) HandleRegeneration(ctx context.Context, req messaging.RegenerationRequest) error {
	jobID := req.JobID
	s.trackJob(jobID, func(jm *JobManager) error { return jm.StartAttempt(ctx, jobID) })

	resp, err := s.run(ctx, &jobID)
	if err != nil {
		s.trackJob(jobID, func(jm *JobManager) error { return jm.FailJob(ctx, jobID, err.Error()) })
		return err
	}

	s.trackJob(jobID, func(jm *JobManager) error { return jm.CompleteJob(ctx, jobID, len(resp.Users)) })
	return nil
}

// trackJob applies a job state change when tracking is enabled. Tracking
// failures are logged and never fail the run.
func (s *RecommendationService) trackJob(jobID uuid.UUID, change func(*JobManager) error) {
	if s.jobs == nil {
		return
	}
	if err := change(s.jobs); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to update job state")
	}
}

func (s *RecommendationService) run(ctx context.Context, jobID *uuid.UUID) (*models.RecommendationResponse, error) {
	start := s.now()
	runID := uuid.New()

	users, err := s.generate(ctx)
	if err != nil {
		s.metrics.RecordRun("error", 0, 0)
		s.logger.WithError(err).WithField("run_id", runID).Error("Recommendation run failed")
		return nil, err
	}

	duration := s.now().Sub(start)
	s.metrics.RecordRun("success", duration, len(users))

	resp := &models.RecommendationResponse{
		Users:       users,
		GeneratedAt: start.UTC(),
	}
	s.store(ctx, resp)

	total := 0
	for _, u := range users {
		total += len(u.Recommendations)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":          runID,
		"users":           len(users),
		"recommendations": total,
		"duration_ms":     duration.Milliseconds(),
	}).Info("Recommendations generated")

	if s.publisher != nil {
		event := messaging.RecommendationsGenerated{
			RunID:           runID,
			JobID:           jobID,
			GeneratedAt:     resp.GeneratedAt,
			Users:           len(users),
			Recommendations: total,
			DurationMs:      duration.Milliseconds(),
		}
		if err := s.publisher.PublishGenerated(ctx, event); err != nil {
			s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to publish generated event")
		}
	}

	return resp, nil
}

// generate performs one full run. Any fetch failure aborts the run; nothing
// partial is returned.
func (s *RecommendationService) generate(ctx context.Context) ([]models.UserRecommendations, error) {
	var (
		users     []models.User
		ratings   []models.Rating
		responses []models.Response
		refs      *ReferenceData
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if users, err = s.source.FetchUsers(gctx, true); err != nil {
			return fmt.Errorf("failed to fetch users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if ratings, err = s.source.FetchRatings(gctx); err != nil {
			return fmt.Errorf("failed to fetch ratings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if responses, err = s.source.FetchResponses(gctx); err != nil {
			return fmt.Errorf("failed to fetch responses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		refs, err = s.references.Get(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load recommendation input: %w", err)
	}

	snapshot := recommender.NewSnapshot(refs.Activities, refs.Questions, ratings, responses)
	if snapshot.DanglingRatings > 0 {
		s.logger.WithField("dropped", snapshot.DanglingRatings).Warn("Ignoring ratings for activities missing from the catalog")
	}

	out := make([]models.UserRecommendations, len(users))
	for lo := 0; lo < len(users); lo += s.cfg.BatchSize {
		hi := min(lo+s.cfg.BatchSize, len(users))

		batch, bctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			i := i
			batch.Go(func() error {
				if err := bctx.Err(); err != nil {
					return err
				}
				out[i] = s.recommendFor(users[i], snapshot)
				return nil
			})
		}
		if err := batch.Wait(); err != nil {
			return nil, fmt.Errorf("recommendation run interrupted: %w", err)
		}
	}

	return out, nil
}

func (s *RecommendationService) recommendFor(user models.User, snapshot *recommender.Snapshot) models.UserRecommendations {
	scored := s.engine.Recommend(user.ID, snapshot, s.cfg.TopN)

	recs := make([]models.Recommendation, 0, len(scored))
	for _, sa := range scored {
		recs = append(recs, models.Recommendation{
			Rank:               sa.Rank,
			ActivityID:         sa.Activity.ID,
			ActivityName:       sa.Activity.Name,
			ConfidenceScore:    Confidence(sa.Total, s.cfg.ConfidenceScale),
			RawScore:           sa.Total,
			MatchingCategories: sa.MatchingCategories,
			IsBest:             sa.Rank == 1,
		})
	}

	return models.UserRecommendations{
		UserID:          user.ID,
		Name:            user.Name,
		Handle:          user.Handle,
		PhotoURL:        user.PhotoURL,
		Recommendations: recs,
	}
}

// Confidence maps a raw score onto [0, 1], saturating at scale.
func Confidence(raw, scale float64) float64 {
	if scale <= 0 || raw <= 0 {
		return 0
	}
	return math.Min(raw/scale, 1)
}

func (s *RecommendationService) cached(ctx context.Context) *models.RecommendationResponse {
	if s.cache == nil || s.cfg.Caching.ResultsTTL <= 0 {
		return nil
	}

	raw, err := s.cache.Get(ctx, resultsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).Warn("Result cache read failed")
		}
		s.metrics.RecordResultLookup(false)
		return nil
	}

	var resp models.RecommendationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.WithError(err).Warn("Discarding undecodable cached recommendations")
		s.metrics.RecordResultLookup(false)
		return nil
	}

	s.metrics.RecordResultLookup(true)
	resp.CacheHit = true
	return &resp
}

func (s *RecommendationService) store(ctx context.Context, resp *models.RecommendationResponse) {
	if s.cache == nil || s.cfg.Caching.ResultsTTL <= 0 {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode recommendations for cache")
		return
	}
	if err := s.cache.Set(ctx, resultsCacheKey, data, s.cfg.Caching.ResultsTTL).Err(); err != nil {
		s.logger.WithError(err).Warn("Result cache write failed")
	}
}

// InvalidateResults drops the cached result so the next read recomputes.
func (s *RecommendationService) InvalidateResults(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, resultsCacheKey).Err(); err != nil {
		s.logger.WithError(err).Warn("Result cache delete failed")
	}
}
