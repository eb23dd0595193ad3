package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Store          StoreConfig          `mapstructure:"store"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=development production test"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections" validate:"min=1"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// PingTimeout bounds the startup connectivity check of every backend.
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// RedisConfig describes the warm cache holding generated recommendation lists.
type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url" validate:"required_if=Enabled true"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0"`
	PoolSize   int           `mapstructure:"pool_size" validate:"min=1"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url" validate:"required_if=Enabled true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size" validate:"min=1"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Topics        struct {
		Regeneration    string `mapstructure:"regeneration"`
		RegenerationDLQ string `mapstructure:"regeneration_dlq"`
		Generated       string `mapstructure:"generated"`
	} `mapstructure:"topics"`
}

type StoreConfig struct {
	// RatingsBackend selects where rating records are read from.
	RatingsBackend string `mapstructure:"ratings_backend" validate:"oneof=postgres neo4j"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type RecommendationConfig struct {
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Weights    WeightConfig     `mapstructure:"weights"`
	TopN       int              `mapstructure:"top_n" validate:"min=1"`
	BatchSize  int              `mapstructure:"batch_size" validate:"min=1"`
	// ConfidenceScale is the raw score that maps to a confidence of 1.
	ConfidenceScale float64       `mapstructure:"confidence_scale" validate:"gt=0"`
	Caching         CachingConfig `mapstructure:"caching"`
}

type SimilarityConfig struct {
	Metric    string  `mapstructure:"metric" validate:"oneof=cosine pearson"`
	Threshold float64 `mapstructure:"threshold" validate:"gte=-1,lte=1"`
}

type WeightConfig struct {
	CollaborativeFilter float64 `mapstructure:"collaborative_filtering" validate:"gte=0"`
	SelfRating          float64 `mapstructure:"self_rating" validate:"gte=0"`
	CategoryBoost       float64 `mapstructure:"category_boost" validate:"gte=0"`
	UserBased           float64 `mapstructure:"user_based" validate:"gte=0"`
	ItemBased           float64 `mapstructure:"item_based" validate:"gte=0"`
}

type CachingConfig struct {
	ReferenceTTL time.Duration `mapstructure:"reference_ttl" validate:"gt=0"`
	ResultsTTL   time.Duration `mapstructure:"results_ttl" validate:"gte=0"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks struct-tag constraints on the loaded configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")

	// Database defaults
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_time", "15m")
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.ping_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 5)
	v.SetDefault("redis.timeout", "5s")

	// Neo4j defaults
	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.pool_size", 10)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.consumer_group", "recommendation-generators")
	v.SetDefault("kafka.topics.regeneration", "recommendation-regeneration")
	v.SetDefault("kafka.topics.regeneration_dlq", "recommendation-regeneration-dlq")
	v.SetDefault("kafka.topics.generated", "recommendations-generated")

	// Store defaults
	v.SetDefault("store.ratings_backend", "postgres")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Recommendation defaults
	v.SetDefault("recommendation.similarity.metric", "cosine")
	v.SetDefault("recommendation.similarity.threshold", 0.1)
	v.SetDefault("recommendation.weights.collaborative_filtering", 0.5)
	v.SetDefault("recommendation.weights.self_rating", 2.0)
	v.SetDefault("recommendation.weights.category_boost", 0.2)
	v.SetDefault("recommendation.weights.user_based", 0.5)
	v.SetDefault("recommendation.weights.item_based", 0.5)
	v.SetDefault("recommendation.top_n", 3)
	v.SetDefault("recommendation.batch_size", 5)
	v.SetDefault("recommendation.confidence_scale", 10.0)

	// Caching defaults
	v.SetDefault("recommendation.caching.reference_ttl", "5m")
	v.SetDefault("recommendation.caching.results_ttl", "2m")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
}
