package database

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/ekskulrec/internal/config"
)

func TestRedisOptions(t *testing.T) {
	cfg := config.RedisConfig{
		URL:        "localhost:6379",
		MaxRetries: 3,
		PoolSize:   5,
		Timeout:    2 * time.Second,
	}

	opts, err := redisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 5, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	cfg.URL = "redis://:secret@cache.internal:6380/2"
	opts, err = redisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 3, opts.MaxRetries)

	cfg.URL = "redis://cache.internal:6380/not-a-db"
	_, err = redisOptions(cfg)
	assert.Error(t, err)
}

func TestClose_NoConnections(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := &Database{logger: logger}
	assert.NoError(t, db.Close())
}
