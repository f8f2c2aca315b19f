package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the API reads at startup.
type Config struct {
	Port           string
	DatabaseURL    string
	MigrationsPath string
	LogLevel       string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string

	WalletBaseURL string
	WalletAPIKey  string

	PollInterval      time.Duration
	CatalogCacheTTL   time.Duration
	LowStockLimit     int
	StoreTimezone     *time.Location
	StoreTimezoneName string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("APP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "file://migrations"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "pos.sales"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		WalletBaseURL:     os.Getenv("WALLET_BASE_URL"),
		WalletAPIKey:      os.Getenv("WALLET_API_KEY"),
		StoreTimezoneName: getEnv("STORE_TIMEZONE", "UTC"),
	}

	var err error
	if cfg.PollInterval, err = getDuration("PAYMENT_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LowStockLimit, err = getInt("LOW_STOCK_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.StoreTimezone, err = time.LoadLocation(cfg.StoreTimezoneName); err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEZONE %q: %w", cfg.StoreTimezoneName, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("PAYMENT_POLL_INTERVAL must be positive"))
	}
	if c.LowStockLimit < 0 {
		errs = append(errs, errors.New("LOW_STOCK_LIMIT cannot be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
