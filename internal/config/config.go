package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/playperu/cityhunt/internal/validate"
)

type Config struct {
	HTTPAddr    string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath      string     `env:"DB_PATH" envDefault:"data/hunt.db"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	CatalogPath string     `env:"CATALOG_PATH"`

	// GraderMode selects the photo and semantic grader: "mock" or "remote".
	GraderMode    string        `env:"GRADER_MODE" envDefault:"mock"`
	GraderURL     string        `env:"GRADER_URL"`
	GraderAPIKey  string        `env:"GRADER_API_KEY"`
	GraderTimeout time.Duration `env:"GRADER_TIMEOUT" envDefault:"10s"`

	// Optional sinks. Empty disables them.
	RedisURL     string   `env:"REDIS_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"hunt-scores"`

	// HostKeyHash is the bcrypt hash of the key hosts present to create
	// sessions. Empty leaves session creation open.
	HostKeyHash string `env:"HOST_KEY_HASH"`

	Thresholds validate.Thresholds `envPrefix:"THRESHOLD_"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	switch cfg.GraderMode {
	case "mock":
	case "remote":
		if cfg.GraderURL == "" {
			return nil, fmt.Errorf("GRADER_URL is required when GRADER_MODE=remote")
		}
	default:
		return nil, fmt.Errorf("unknown GRADER_MODE %q", cfg.GraderMode)
	}
	return &cfg, nil
}
