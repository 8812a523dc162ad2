package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`

	Store    string `env:"STORE" envDefault:"memory"`
	MySQLDSN string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`

	// Empty RedisAddr disables the read cache.
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass       string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"900"`

	ReceiptsBase    string        `env:"RECEIPTS_BASE_URL"`
	ReceiptsKey     string        `env:"RECEIPTS_API_KEY"`
	ReceiptsRPS     int           `env:"RECEIPTS_RPS" envDefault:"5"`
	ReceiptsTimeout time.Duration `env:"RECEIPTS_TIMEOUT" envDefault:"20s"`

	JWTSecret string `env:"JWT_SECRET"`

	// Empty KafkaBrokers disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"business-reviews.events"`

	AuditWorkers int `env:"AUDIT_WORKERS" envDefault:"8"`
	MaxPageSize  int `env:"MAX_PAGE_SIZE" envDefault:"100"`
}

func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSeconds) * time.Second }

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if c.Store != StoreMemory && c.Store != StoreMySQL {
		return Config{}, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreMySQL, c.Store)
	}
	if c.ReceiptsBase == "" {
		log.Warn().Msg("RECEIPTS_BASE_URL is empty; receipts cannot be verified")
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c, nil
}
