package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBSource       string        `env:"DB_SOURCE,required,notEmpty"`
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	DBMaxTxRetries int           `env:"DB_MAX_TX_RETRIES" envDefault:"3"`
	AutoMigrate    bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	RedisURL       string        `env:"REDIS_URL"`
	BalanceTTL     time.Duration `env:"BALANCE_CACHE_TTL" envDefault:"30s"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"creatorpay.ledger"`
	OutboxInterval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"2s"`
	OutboxBatch    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxRetries  int           `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	brokers := cfg.KafkaBrokers[:0]
	for _, b := range cfg.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	cfg.KafkaBrokers = brokers

	if cfg.DBMaxTxRetries < 0 {
		return nil, fmt.Errorf("DB_MAX_TX_RETRIES must not be negative")
	}
	if cfg.OutboxBatch <= 0 || cfg.OutboxRetries <= 0 || cfg.OutboxInterval <= 0 {
		return nil, fmt.Errorf("outbox interval, batch size and retries must be positive")
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
