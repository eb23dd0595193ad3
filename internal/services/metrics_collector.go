package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/messaging"
)

// MetricsCollector holds the Prometheus instruments of a generation run.
type MetricsCollector struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	usersScored    prometheus.Gauge
	referenceCache *prometheus.CounterVec
	resultCache    *prometheus.CounterVec
	consumerLag    prometheus.Gauge
	consumerOffset prometheus.Gauge
	consumerEvents *prometheus.CounterVec
}

// ConsumerStatsSource reports regeneration consumer counters.
type ConsumerStatsSource interface {
	Stats() messaging.ConsumerStats
}

func NewMetricsCollector(logger *logrus.Logger) *MetricsCollector {
	return &MetricsCollector{
		runs: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_runs_total",
			Help: "Recommendation generation runs by result",
		}, []string{"result"})),
		runDuration: register(logger, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_run_duration_seconds",
			Help:    "Wall time of a full recommendation run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		})),
		usersScored: register(logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recommendation_users_scored",
			Help: "Users scored by the most recent run",
		})),
		referenceCache: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_reference_cache_requests_total",
			Help: "Activity and question cache lookups by outcome",
		}, []string{"outcome"})),
		resultCache: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_result_cache_requests_total",
			Help: "Generated result cache lookups by outcome",
		}, []string{"outcome"})),
		consumerLag: register(logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recommendation_regeneration_consumer_lag",
			Help: "Regeneration requests waiting behind the consumer offset",
		})),
		consumerOffset: register(logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recommendation_regeneration_consumer_offset",
			Help: "Current offset of the regeneration consumer",
		})),
		consumerEvents: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_regeneration_consumer_events_total",
			Help: "Regeneration consumer reads by kind",
		}, []string{"kind"})),
	}
}

// register adds c to the default registry. When an equal collector is
// already registered, that one is returned so repeated construction keeps
// reporting into the same series.
func register[C prometheus.Collector](logger *logrus.Logger, c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
			return c
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

func (m *MetricsCollector) RecordRun(result string, duration time.Duration, users int) {
	m.runs.WithLabelValues(result).Inc()
	if result == "success" {
		m.runDuration.Observe(duration.Seconds())
		m.usersScored.Set(float64(users))
	}
}

func (m *MetricsCollector) RecordReferenceLookup(hit bool) {
	m.referenceCache.WithLabelValues(outcome(hit)).Inc()
}

func (m *MetricsCollector) RecordResultLookup(hit bool) {
	m.resultCache.WithLabelValues(outcome(hit)).Inc()
}

func (m *MetricsCollector) RecordConsumerStats(stats messaging.ConsumerStats) {
	m.consumerLag.Set(float64(stats.Lag))
	m.consumerOffset.Set(float64(stats.Offset))
	m.consumerEvents.WithLabelValues("message").Add(float64(stats.Messages))
	m.consumerEvents.WithLabelValues("error").Add(float64(stats.Errors))
}

// CollectConsumerStats samples source every interval until ctx is done.
func (m *MetricsCollector) CollectConsumerStats(ctx context.Context, source ConsumerStatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RecordConsumerStats(source.Stats())
		}
	}
}

func outcome(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
