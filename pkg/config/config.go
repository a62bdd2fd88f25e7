// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Index, Ingest, Kafka, Redis, Postgres, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexConfig controls the shape of the in-memory index: shard layout, row
// table geometry, and n-gram extraction.
type IndexConfig struct {
	ShardCount        int           `yaml:"shardCount"`
	ShardCapacity     uint32        `yaml:"shardCapacity"`
	TermRowCount      uint32        `yaml:"termRowCount"`
	RowsPerTerm       int           `yaml:"rowsPerTerm"`
	FactRowCount      uint32        `yaml:"factRowCount"`
	MaxGramSize       int           `yaml:"maxGramSize"`
	UseLargePages     bool          `yaml:"useLargePages"`
	DocumentCacheSize int           `yaml:"documentCacheSize"`
	RecycleInterval   time.Duration `yaml:"recycleInterval"`
}

// IngestConfig controls the ingestion daemon: statistics output, group
// rotation, and retention-driven group expiry.
type IngestConfig struct {
	StatisticsDir     string        `yaml:"statisticsDir"`
	GroupRotation     time.Duration `yaml:"groupRotation"`
	GroupRetention    time.Duration `yaml:"groupRetention"`
	CatalogEnabled    bool          `yaml:"catalogEnabled"`
	InvalidateEnabled bool          `yaml:"invalidateEnabled"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	DocumentDelete string `yaml:"documentDelete"`
}

// RedisConfig holds Redis connection parameters for query-cache
// invalidation.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// catalog.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects geometry that the index core cannot honor.
func (c *Config) Validate() error {
	if c.Index.ShardCount <= 0 {
		return fmt.Errorf("index.shardCount must be positive, got %d", c.Index.ShardCount)
	}
	if c.Index.ShardCapacity == 0 {
		return fmt.Errorf("index.shardCapacity must be positive")
	}
	if c.Index.TermRowCount == 0 {
		return fmt.Errorf("index.termRowCount must be positive")
	}
	if c.Index.RowsPerTerm <= 0 {
		return fmt.Errorf("index.rowsPerTerm must be positive, got %d", c.Index.RowsPerTerm)
	}
	if c.Index.MaxGramSize <= 0 {
		return fmt.Errorf("index.maxGramSize must be positive, got %d", c.Index.MaxGramSize)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			ShardCount:        4,
			ShardCapacity:     4096,
			TermRowCount:      2048,
			RowsPerTerm:       3,
			FactRowCount:      64,
			MaxGramSize:       2,
			UseLargePages:     false,
			DocumentCacheSize: 256,
			RecycleInterval:   100 * time.Millisecond,
		},
		Ingest: IngestConfig{
			StatisticsDir:  "data/statistics",
			GroupRotation:  5 * time.Minute,
			GroupRetention: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bitfunnel-ingest",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				DocumentDelete: "document-delete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bitfunnel",
			User:            "bitfunnel",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads BF_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BF_INDEX_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.ShardCount = n
		}
	}
	if v := os.Getenv("BF_INDEX_SHARD_CAPACITY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Index.ShardCapacity = uint32(n)
		}
	}
	if v := os.Getenv("BF_INDEX_MAX_GRAM_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.MaxGramSize = n
		}
	}
	if v := os.Getenv("BF_INDEX_USE_LARGE_PAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.UseLargePages = b
		}
	}
	if v := os.Getenv("BF_INGEST_STATISTICS_DIR"); v != "" {
		cfg.Ingest.StatisticsDir = v
	}
	if v := os.Getenv("BF_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BF_KAFKA_CONSUMER_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("BF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BF_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BF_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BF_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BF_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BF_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BF_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BF_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BF_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
