// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds every setting of the server.
type Config struct {
	Addr string `env:"TEAMTAB_ADDR" envDefault:":8080"`

	Store       string `env:"TEAMTAB_STORE"        envDefault:"sqlite"`
	DBPath      string `env:"TEAMTAB_DB_PATH"      envDefault:"./data/teamtab.db"`
	PostgresDSN string `env:"TEAMTAB_POSTGRES_DSN"`

	// JWTSecret enables bearer-token auth. Empty disables auth (dev only).
	JWTSecret string `env:"TEAMTAB_JWT_SECRET"`

	RedisAddr       string        `env:"TEAMTAB_REDIS_ADDR"`
	BalanceCacheTTL time.Duration `env:"TEAMTAB_BALANCE_CACHE_TTL" envDefault:"10m"`

	KafkaBrokers []string `env:"TEAMTAB_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"TEAMTAB_KAFKA_TOPIC"   envDefault:"teamtab.ledger-changes"`
	KafkaGroup   string   `env:"TEAMTAB_KAFKA_GROUP"`

	// InstanceID tags events this instance publishes. Generated when empty.
	InstanceID string `env:"TEAMTAB_INSTANCE_ID"`

	LogLevel string `env:"TEAMTAB_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"TEAMTAB_LOG_JSON"  envDefault:"false"`
}

// Load reads an optional .env file from the working directory, then
// parses the environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations that env parsing cannot express.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store) {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("TEAMTAB_DB_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("TEAMTAB_POSTGRES_DSN is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown TEAMTAB_STORE %q (want sqlite, postgres or memory)", c.Store)
	}
	if c.BalanceCacheTTL < 0 {
		return errors.New("TEAMTAB_BALANCE_CACHE_TTL must not be negative")
	}
	return nil
}

// AuthEnabled reports whether requests must carry a bearer token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// KafkaEnabled reports whether change events are bridged through Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
