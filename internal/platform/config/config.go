package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string

	// FaceMatchThreshold is the default maximum distance for a face match
	// when the caller does not supply one.
	FaceMatchThreshold float64
	// ReplayCacheTTL bounds how long idempotent replay entries stay hot in
	// Redis. The ledger store remains the source of truth.
	ReplayCacheTTL time.Duration
}

// RedisConfig holds connection settings for the optional replay cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the optional audit mirror.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("PALISADE_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("PALISADE_DATABASE_URL"),
		JWTSigningKey:      envOr("PALISADE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		FaceMatchThreshold: envFloat("PALISADE_FACE_MATCH_THRESHOLD", 0.6),
		ReplayCacheTTL:     envDuration("PALISADE_REPLAY_CACHE_TTL", 24*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("PALISADE_REDIS_URL"),
			PoolSize:     envInt("PALISADE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PALISADE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PALISADE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PALISADE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PALISADE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			AuditTopic: envOr("PALISADE_AUDIT_TOPIC", "palisade.audit"),
		},
	}
	if brokers := os.Getenv("PALISADE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
