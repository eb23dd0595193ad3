package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/store"
	"github.com/temcen/ekskulrec/pkg/models"
)

// ReferenceData is the slow-changing part of a run's input. Values are
// shared between readers and must not be modified.
type ReferenceData struct {
	Activities []models.Activity
	Questions  []models.Question
	LoadedAt   time.Time
}

// ReferenceCache keeps the activity catalog and question bank for a TTL.
// Readers never block each other; a refresh builds a new ReferenceData and
// swaps the pointer.
type ReferenceCache struct {
	source  store.Source
	ttl     time.Duration
	now     func() time.Time
	metrics *MetricsCollector
	logger  *logrus.Logger

	current atomic.Pointer[ReferenceData]
	refresh sync.Mutex
}

func NewReferenceCache(source store.Source, ttl time.Duration, now func() time.Time, metrics *MetricsCollector, logger *logrus.Logger) *ReferenceCache {
	if now == nil {
		now = time.Now
	}
	return &ReferenceCache{
		source:  source,
		ttl:     ttl,
		now:     now,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns cached reference data, reloading it once it is older than the TTL.
func (c *ReferenceCache) Get(ctx context.Context) (*ReferenceData, error) {
	if data := c.fresh(); data != nil {
		c.record(true)
		return data, nil
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	// Another caller may have refreshed while we waited.
	if data := c.fresh(); data != nil {
		c.record(true)
		return data, nil
	}
	c.record(false)

	activities, err := c.source.FetchActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	questions, err := c.source.FetchQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}

	data := &ReferenceData{
		Activities: activities,
		Questions:  questions,
		LoadedAt:   c.now(),
	}
	c.current.Store(data)

	c.logger.WithFields(logrus.Fields{
		"activities": len(activities),
		"questions":  len(questions),
	}).Debug("Reference data refreshed")

	return data, nil
}

func (c *ReferenceCache) fresh() *ReferenceData {
	data := c.current.Load()
	if data == nil || c.now().Sub(data.LoadedAt) >= c.ttl {
		return nil
	}
	return data
}

func (c *ReferenceCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordReferenceLookup(hit)
	}
}
