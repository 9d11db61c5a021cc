package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sequencer backends.
const (
	StoreMongo = "mongo"
	StoreSQL   = "sql"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// Store selects the sequencer backend: "mongo" or "sql".
	Store string

	// MongoURI and MongoDatabase locate the content database.
	MongoURI      string
	MongoDatabase string

	// SequenceDSN is a postgres:// URL or sqlite:<path>, used when Store is "sql".
	SequenceDSN string

	// JWTSecret signs and verifies session tokens.
	JWTSecret string

	// ClientURL is the web client origin allowed by CORS.
	ClientURL string

	// RedisAddr enables rate limiting of interaction writes when set.
	RedisAddr          string
	RateLimitPerMinute int

	// KafkaBrokers enables publishing interaction events when set.
	KafkaBrokers []string
	KafkaTopic   string

	// OTELEndpoint enables trace export when set.
	OTELEndpoint string

	// FeedStageTimeout bounds each stage of feed assembly.
	FeedStageTimeout time.Duration
}

// Load reads configuration from the environment, optionally layered over a
// novelle.yaml in the working directory or ./config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("novelle")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("port", 5000)
	v.SetDefault("store", StoreMongo)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "novelle")
	v.SetDefault("sequence_dsn", "sqlite:novelle-sequences.db")
	v.SetDefault("client_url", "http://localhost:5173")
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("kafka_topic", "novelle.interactions")
	v.SetDefault("feed_stage_timeout", "5s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		Store:              strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		MongoURI:           v.GetString("mongo_uri"),
		MongoDatabase:      v.GetString("mongo_database"),
		SequenceDSN:        v.GetString("sequence_dsn"),
		JWTSecret:          v.GetString("jwt_secret"),
		ClientURL:          v.GetString("client_url"),
		RedisAddr:          v.GetString("redis_addr"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		KafkaBrokers:       splitList(v.GetString("kafka_brokers")),
		KafkaTopic:         v.GetString("kafka_topic"),
		OTELEndpoint:       v.GetString("otel_exporter_otlp_endpoint"),
		FeedStageTimeout:   v.GetDuration("feed_stage_timeout"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	switch cfg.Store {
	case StoreMongo, StoreSQL:
	default:
		return nil, fmt.Errorf("invalid STORE %q: want %q or %q", cfg.Store, StoreMongo, StoreSQL)
	}
	if cfg.FeedStageTimeout <= 0 {
		return nil, fmt.Errorf("invalid FEED_STAGE_TIMEOUT: %s", cfg.FeedStageTimeout)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
