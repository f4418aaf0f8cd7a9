// Package config loads service configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "dtro/pkg/platform/strings"
)

// RedisConfig holds connection settings for the record cache. An empty URL
// disables Redis entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig holds the change-feed broker settings. No brokers disables
// publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FeatureFlags gates API surfaces per deployment: a publication instance
// serves reads only, a submission instance serves writes only.
type FeatureFlags struct {
	DtroRead  bool
	DtroWrite bool
}

// Config is the full service configuration.
type Config struct {
	Addr             string
	DatabaseURL      string
	SchemaDir        string
	RulesDir         string
	StorageDir       string
	SearchServiceURL string
	WriteToFileOnly  bool
	JWTSigningKey    string

	Redis    RedisConfig
	Kafka    KafkaConfig
	Features FeatureFlags
}

// FromEnv builds a Config from DTRO_-prefixed environment variables, with
// development defaults where a value is safe to assume.
func FromEnv() Config {
	return Config{
		Addr:             envOr("DTRO_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DTRO_DATABASE_URL"),
		SchemaDir:        envOr("DTRO_SCHEMA_DIR", "schemas"),
		RulesDir:         os.Getenv("DTRO_RULES_DIR"),
		StorageDir:       envOr("DTRO_STORAGE_DIR", "data"),
		SearchServiceURL: envOr("DTRO_SEARCH_SERVICE_URL", "http://localhost:8080"),
		WriteToFileOnly:  envBool("DTRO_WRITE_TO_FILE_ONLY", false),
		JWTSigningKey:    envOr("DTRO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("DTRO_REDIS_URL"),
			PoolSize:     envInt("DTRO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DTRO_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("DTRO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DTRO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DTRO_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("DTRO_REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: envList("DTRO_KAFKA_BROKERS"),
			Topic:   envOr("DTRO_KAFKA_TOPIC", "dtro.changes"),
		},
		Features: FeatureFlags{
			DtroRead:  envBool("DTRO_FEATURE_READ", true),
			DtroWrite: envBool("DTRO_FEATURE_WRITE", true),
		},
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := platformstrings.DedupeAndTrim(strings.Split(value, ","))
	if len(items) == 0 {
		return nil
	}
	return items
}
