package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/messaging"
	"github.com/temcen/ekskulrec/internal/recommender"
	"github.com/temcen/ekskulrec/pkg/models"
)

type fixture struct {
	futsal, musik, basket models.Activity
	siti, budi, rina      models.User
	activities            []models.Activity
	questions             []models.Question
	users                 []models.User
	ratings               []models.Rating
	responses             []models.Response
}

func newFixture() fixture {
	photo := "https://cdn.sekolah.example/avatar/siti.png"
	f := fixture{
		futsal: models.Activity{ID: uuid.New(), Name: "Futsal", Categories: []string{"Olahraga"}},
		musik:  models.Activity{ID: uuid.New(), Name: "Paduan Suara", Categories: []string{"Seni"}},
		basket: models.Activity{ID: uuid.New(), Name: "Basket", Categories: []string{"Olahraga"}},
		siti:   models.User{ID: uuid.New(), Name: "Siti Aminah", Handle: "siti", PhotoURL: &photo},
		budi:   models.User{ID: uuid.New(), Name: "Budi Santoso", Handle: "budi"},
		rina:   models.User{ID: uuid.New(), Name: "Rina", Handle: "rina"},
	}
	f.activities = []models.Activity{f.futsal, f.musik, f.basket}
	f.questions = []models.Question{{ID: 1, Text: "Saya suka olahraga tim", Category: "Olahraga"}}
	f.users = []models.User{f.siti, f.budi, f.rina}
	f.ratings = []models.Rating{
		{UserID: f.siti.ID, ActivityID: f.futsal.ID, Rating: 5},
		{UserID: f.budi.ID, ActivityID: f.futsal.ID, Rating: 5},
		{UserID: f.budi.ID, ActivityID: f.basket.ID, Rating: 4},
	}
	f.responses = []models.Response{{UserID: f.siti.ID, QuestionID: 1, Score: 3}}
	return f
}

func (f fixture) source() *MockSource {
	source := &MockSource{}
	source.On("FetchUsers", mock.Anything, true).Return(f.users, nil)
	source.On("FetchRatings", mock.Anything).Return(f.ratings, nil)
	source.On("FetchResponses", mock.Anything).Return(f.responses, nil)
	source.On("FetchActivities", mock.Anything).Return(f.activities, nil)
	source.On("FetchQuestions", mock.Anything).Return(f.questions, nil)
	return source
}

func testRecommendationConfig() config.RecommendationConfig {
	return config.RecommendationConfig{
		Similarity: config.SimilarityConfig{Metric: "cosine", Threshold: 0.1},
		Weights: config.WeightConfig{
			CollaborativeFilter: 0.5,
			SelfRating:          2.0,
			CategoryBoost:       0.2,
			UserBased:           0.5,
			ItemBased:           0.5,
		},
		TopN:            3,
		BatchSize:       5,
		ConfidenceScale: 10,
		Caching: config.CachingConfig{
			ReferenceTTL: 5 * time.Minute,
			ResultsTTL:   2 * time.Minute,
		},
	}
}

func newTestService(t *testing.T, source *MockSource, cfg config.RecommendationConfig, cache ResultCache, publisher EventPublisher) *RecommendationService {
	t.Helper()

	engineCfg, err := EngineConfig(cfg)
	require.NoError(t, err)
	engine, err := recommender.NewEngine(engineCfg)
	require.NoError(t, err)

	logger := quietLogger()
	metrics := NewMetricsCollector(logger)
	refs := NewReferenceCache(source, cfg.Caching.ReferenceTTL, nil, metrics, logger)
	return NewRecommendationService(source, refs, engine, cache, publisher, cfg, metrics, logger)
}

func byUser(out []models.UserRecommendations) map[uuid.UUID]models.UserRecommendations {
	m := make(map[uuid.UUID]models.UserRecommendations, len(out))
	for _, u := range out {
		m[u.UserID] = u
	}
	return m
}

func TestRecommendationService_GenerateAll(t *testing.T) {
	f := newFixture()
	svc := newTestService(t, f.source(), testRecommendationConfig(), nil, nil)

	out, err := svc.GenerateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Output follows the user fetch order.
	assert.Equal(t, f.siti.ID, out[0].UserID)
	assert.Equal(t, "Siti Aminah", out[0].Name)
	assert.Equal(t, "siti", out[0].Handle)
	require.NotNil(t, out[0].PhotoURL)
	assert.Equal(t, "https://cdn.sekolah.example/avatar/siti.png", *out[0].PhotoURL)
	assert.Nil(t, out[1].PhotoURL)

	users := byUser(out)

	siti := users[f.siti.ID].Recommendations
	require.Len(t, siti, 2)
	assert.Equal(t, f.futsal.ID, siti[0].ActivityID)
	assert.Equal(t, "Futsal", siti[0].ActivityName)
	assert.Equal(t, 1, siti[0].Rank)
	assert.True(t, siti[0].IsBest)
	assert.InDelta(t, 10.6, siti[0].RawScore, 1e-9)
	assert.Equal(t, 1.0, siti[0].ConfidenceScore)
	assert.Equal(t, []string{"Olahraga"}, siti[0].MatchingCategories)

	// Basket arrives through both neighborhoods plus the sports interest.
	assert.Equal(t, f.basket.ID, siti[1].ActivityID)
	assert.Equal(t, 2, siti[1].Rank)
	assert.False(t, siti[1].IsBest)
	assert.InDelta(t, siti[1].RawScore/10, siti[1].ConfidenceScore, 1e-12)
	assert.Greater(t, siti[1].RawScore, 0.6)

	budi := users[f.budi.ID].Recommendations
	require.Len(t, budi, 2)
	assert.Equal(t, f.futsal.ID, budi[0].ActivityID)
	assert.InDelta(t, 10.0, budi[0].RawScore, 1e-9)
	assert.Equal(t, f.basket.ID, budi[1].ActivityID)
	assert.InDelta(t, 8.0, budi[1].RawScore, 1e-9)
	assert.InDelta(t, 0.8, budi[1].ConfidenceScore, 1e-9)
	assert.Empty(t, budi[1].MatchingCategories)
	assert.NotNil(t, budi[1].MatchingCategories)

	rina := users[f.rina.ID].Recommendations
	assert.NotNil(t, rina)
	assert.Empty(t, rina)
}

func TestRecommendationService_RankInvariants(t *testing.T) {
	f := newFixture()
	cfg := testRecommendationConfig()
	cfg.TopN = 1
	svc := newTestService(t, f.source(), cfg, nil, nil)

	out, err := svc.Regenerate(context.Background())
	require.NoError(t, err)

	for _, u := range out {
		assert.LessOrEqual(t, len(u.Recommendations), 1)
		for i, rec := range u.Recommendations {
			assert.Equal(t, i+1, rec.Rank)
			assert.Equal(t, i == 0, rec.IsBest)
			assert.Greater(t, rec.RawScore, 0.0)
			assert.GreaterOrEqual(t, rec.ConfidenceScore, 0.0)
			assert.LessOrEqual(t, rec.ConfidenceScore, 1.0)
		}
	}
}

func TestRecommendationService_Idempotent(t *testing.T) {
	f := newFixture()
	source := f.source()
	svc := newTestService(t, source, testRecommendationConfig(), nil, nil)

	first, err := svc.Regenerate(context.Background())
	require.NoError(t, err)
	second, err := svc.Regenerate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	source.AssertNumberOfCalls(t, "FetchUsers", 2)
	source.AssertNumberOfCalls(t, "FetchActivities", 1)
}

func TestRecommendationService_BatchSizeDoesNotChangeResults(t *testing.T) {
	f := newFixture()
	for i := 0; i < 12; i++ {
		u := models.User{ID: uuid.New(), Name: fmt.Sprintf("Siswa %d", i), Handle: fmt.Sprintf("siswa%d", i)}
		f.users = append(f.users, u)
		f.ratings = append(f.ratings, models.Rating{UserID: u.ID, ActivityID: f.activities[i%3].ID, Rating: 1 + i%5})
		f.responses = append(f.responses, models.Response{UserID: u.ID, QuestionID: 1, Score: i % 4})
	}

	var outputs [][]models.UserRecommendations
	for _, size := range []int{1, 5, 100} {
		cfg := testRecommendationConfig()
		cfg.BatchSize = size
		out, err := newTestService(t, f.source(), cfg, nil, nil).Regenerate(context.Background())
		require.NoError(t, err)
		require.Len(t, out, len(f.users))
		outputs = append(outputs, out)
	}

	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestRecommendationService_FetchFailureIsFatal(t *testing.T) {
	f := newFixture()
	source := &MockSource{}
	source.On("FetchUsers", mock.Anything, true).Return(f.users, nil).Maybe()
	source.On("FetchRatings", mock.Anything).Return(nil, errors.New("relation \"ratings\" does not exist"))
	source.On("FetchResponses", mock.Anything).Return(f.responses, nil).Maybe()
	source.On("FetchActivities", mock.Anything).Return(f.activities, nil).Maybe()
	source.On("FetchQuestions", mock.Anything).Return(f.questions, nil).Maybe()

	publisher := &MockPublisher{}
	cache := newMemoryCache()
	svc := newTestService(t, source, testRecommendationConfig(), cache, publisher)

	out, err := svc.GenerateAll(context.Background())
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch ratings")

	publisher.AssertNotCalled(t, "PublishGenerated", mock.Anything, mock.Anything)
	assert.Empty(t, cache.values)
}

func TestRecommendationService_DanglingRatingsIgnored(t *testing.T) {
	f := newFixture()
	f.ratings = append(f.ratings, models.Rating{UserID: f.rina.ID, ActivityID: uuid.New(), Rating: 5})
	svc := newTestService(t, f.source(), testRecommendationConfig(), nil, nil)

	out, err := svc.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, byUser(out)[f.rina.ID].Recommendations)
}

func TestRecommendationService_ResultCache(t *testing.T) {
	f := newFixture()
	source := f.source()
	cache := newMemoryCache()
	svc := newTestService(t, source, testRecommendationConfig(), cache, nil)

	fresh, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, fresh.CacheHit)
	assert.Equal(t, 2*time.Minute, cache.ttls[resultsCacheKey])

	cached, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)
	assert.Equal(t, fresh.Users, cached.Users)
	assert.True(t, fresh.GeneratedAt.Equal(cached.GeneratedAt))
	source.AssertNumberOfCalls(t, "FetchUsers", 1)

	// Regenerate bypasses the cached copy.
	_, err = svc.Regenerate(context.Background())
	require.NoError(t, err)
	source.AssertNumberOfCalls(t, "FetchUsers", 2)

	svc.InvalidateResults(context.Background())
	assert.Empty(t, cache.values)
}

func TestRecommendationService_CacheFailureIsIgnored(t *testing.T) {
	f := newFixture()
	cache := newMemoryCache()
	cache.readErr = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	svc := newTestService(t, f.source(), testRecommendationConfig(), cache, nil)

	out, err := svc.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestRecommendationService_PublishesAfterFreshRun(t *testing.T) {
	f := newFixture()
	publisher := &MockPublisher{}
	publisher.On("PublishGenerated", mock.Anything, mock.MatchedBy(func(e messaging.RecommendationsGenerated) bool {
		return e.Users == 3 && e.Recommendations == 4 && e.RunID != uuid.Nil
	})).Return(errors.New("broker unavailable")).Once()

	cache := newMemoryCache()
	svc := newTestService(t, f.source(), testRecommendationConfig(), cache, publisher)

	// A failed publish does not fail the run.
	_, err := svc.GenerateAll(context.Background())
	require.NoError(t, err)

	// Served from cache, so nothing new is announced.
	_, err = svc.GenerateAll(context.Background())
	require.NoError(t, err)

	publisher.AssertExpectations(t)
}

func TestRecommendationService_HandleRegeneration(t *testing.T) {
	f := newFixture()
	jobID := uuid.New()
	publisher := &MockPublisher{}
	publisher.On("PublishGenerated", mock.Anything, mock.MatchedBy(func(e messaging.RecommendationsGenerated) bool {
		return e.JobID != nil && *e.JobID == jobID
	})).Return(nil).Once()

	svc := newTestService(t, f.source(), testRecommendationConfig(), nil, publisher)

	err := svc.HandleRegeneration(context.Background(), messaging.RegenerationRequest{JobID: jobID})
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestRecommendationService_CancelledContext(t *testing.T) {
	f := newFixture()
	source := &MockSource{}
	source.On("FetchUsers", mock.Anything, true).Return(nil, context.Canceled).Maybe()
	source.On("FetchRatings", mock.Anything).Return(nil, context.Canceled).Maybe()
	source.On("FetchResponses", mock.Anything).Return(nil, context.Canceled).Maybe()
	source.On("FetchActivities", mock.Anything).Return(f.activities, nil).Maybe()
	source.On("FetchQuestions", mock.Anything).Return(f.questions, nil).Maybe()

	svc := newTestService(t, source, testRecommendationConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Regenerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		raw, scale, want float64
	}{
		{raw: 5, scale: 10, want: 0.5},
		{raw: 10, scale: 10, want: 1},
		{raw: 25, scale: 10, want: 1},
		{raw: 0, scale: 10, want: 0},
		{raw: 3, scale: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%v", tt.raw, tt.scale), func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.raw, tt.scale), 1e-12)
		})
	}
}

func TestEngineConfig_RejectsUnknownMetric(t *testing.T) {
	cfg := testRecommendationConfig()
	cfg.Similarity.Metric = "jaccard"

	_, err := EngineConfig(cfg)
	assert.Error(t, err)
}
