package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the server binary needs. All values come from
// the environment, optionally seeded from a .env file. Empty PostgresDSN
// selects the in-memory store; empty KafkaBrokers disables event publishing.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresDSN  string
	KafkaBrokers []string
	KafkaTopic   string

	PriceSource string // "static" or "yahoo"

	SubscriptionPeriod time.Duration
	AutoInvestPeriod   time.Duration

	NotificationWorkers int
	BcryptCost          int
}

func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "transactions.completed"),
		PriceSource:         getEnv("PRICE_SOURCE", "static"),
		SubscriptionPeriod:  30 * time.Second,
		AutoInvestPeriod:    30 * time.Second,
		NotificationWorkers: 3,
		BcryptCost:          10,
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.SubscriptionPeriod, err = getDuration("SUBSCRIPTION_PERIOD", cfg.SubscriptionPeriod); err != nil {
		return nil, err
	}
	if cfg.AutoInvestPeriod, err = getDuration("AUTO_INVEST_PERIOD", cfg.AutoInvestPeriod); err != nil {
		return nil, err
	}
	if cfg.NotificationWorkers, err = getInt("NOTIFICATION_WORKERS", cfg.NotificationWorkers); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return nil, err
	}

	if cfg.PriceSource != "static" && cfg.PriceSource != "yahoo" {
		return nil, fmt.Errorf("unknown PRICE_SOURCE %q", cfg.PriceSource)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
