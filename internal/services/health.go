package services

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/database"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthService struct {
	logger *logrus.Logger
	db     *database.Database

	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	timeout     time.Duration

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

// NewHealthService checks PostgreSQL as critical and, when configured,
// Redis and Neo4j as non-critical.
func NewHealthService(logger *logrus.Logger, db *database.Database) *HealthService {
	critical := map[string]HealthCheck{}
	nonCritical := map[string]HealthCheck{}

	if db != nil {
		if db.PG != nil {
			critical["postgresql"] = func(ctx context.Context) error { return db.PG.Ping(ctx) }
		}
		if db.Redis != nil {
			nonCritical["redis"] = func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() }
		}
		if db.Neo4j != nil {
			nonCritical["neo4j"] = db.Neo4j.VerifyConnectivity
		}
	}

	hs := newHealthService(logger, critical, nonCritical)
	hs.db = db
	return hs
}

func newHealthService(logger *logrus.Logger, critical, nonCritical map[string]HealthCheck) *HealthService {
	return &HealthService{
		logger:      logger,
		critical:    critical,
		nonCritical: nonCritical,
		timeout:     5 * time.Second,
		healthCheckStatus: register(logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"})),
		lastHealthCheck: register(logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_timestamp",
			Help: "Timestamp of last health check",
		}, []string{"service"})),
		dbConnectionMetrics: register(logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "database_connection_pool_usage",
			Help: "PostgreSQL connection pool state",
		}, []string{"database", "state"})),
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, name := range sortedNames(s.critical) {
		if err := s.runCheck(ctx, s.critical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for _, name := range sortedNames(s.nonCritical) {
		if err := s.runCheck(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}

func (s *HealthService) runCheck(ctx context.Context, check HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

// CollectPoolMetrics samples PostgreSQL pool usage until ctx is done.
func (s *HealthService) CollectPoolMetrics(ctx context.Context, interval time.Duration) {
	if s.db == nil || s.db.PG == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.db.PG.Stat()
			s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
			s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
			s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))
			s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
		}
	}
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}

func sortedNames(checks map[string]HealthCheck) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
