package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver определяет бэкенд хранилища заказов.
type StorageDriver string

const (
	// StorageDriverMemory — in-memory хранилище для разработки и тестов.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres — PostgreSQL для production.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес публичного API (checkout, orders, webhooks).
	HTTPAddr string
	// OpsAddr — адрес служебного сервера: /metrics, /healthz, /livez.
	OpsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	CatalogBaseURL string
	CartBaseURL    string
	AccountBaseURL string

	PayhostBaseURL       string
	PayhostAPIKey        string
	PayhostWebhookSecret string

	// KafkaBrokers — список брокеров через запятую; пусто = без Kafka.
	KafkaBrokers string

	// Currency — валюта всех заказов сервиса (ISO 4217).
	Currency string

	CompensationPollInterval time.Duration
	CompensationBatchSize    int
	CompensationMaxAttempts  int
	CompensationRetryDelay   time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                 ":8080",
		OpsAddr:                  ":9090",
		StorageDriver:            StorageDriverMemory,
		PostgresAutoMigrate:      true,
		CatalogBaseURL:           "http://localhost:8081",
		CartBaseURL:              "http://localhost:8082",
		AccountBaseURL:           "http://localhost:8083",
		PayhostBaseURL:           "https://api.payhost.example",
		Currency:                 "RUB",
		CompensationPollInterval: 5 * time.Second,
		CompensationBatchSize:    50,
		CompensationMaxAttempts:  3,
		CompensationRetryDelay:   100 * time.Millisecond,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения с префиксом CHECKOUT_.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	setString := func(key string, target *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}

	setString("CHECKOUT_HTTP_ADDR", &cfg.HTTPAddr)
	setString("CHECKOUT_OPS_ADDR", &cfg.OpsAddr)
	setString("CHECKOUT_POSTGRES_DSN", &cfg.PostgresDSN)
	setString("CHECKOUT_CATALOG_URL", &cfg.CatalogBaseURL)
	setString("CHECKOUT_CART_URL", &cfg.CartBaseURL)
	setString("CHECKOUT_ACCOUNT_URL", &cfg.AccountBaseURL)
	setString("CHECKOUT_PAYHOST_URL", &cfg.PayhostBaseURL)
	setString("CHECKOUT_PAYHOST_API_KEY", &cfg.PayhostAPIKey)
	setString("CHECKOUT_PAYHOST_WEBHOOK_SECRET", &cfg.PayhostWebhookSecret)
	setString("CHECKOUT_KAFKA_BROKERS", &cfg.KafkaBrokers)
	setString("CHECKOUT_CURRENCY", &cfg.Currency)

	if v := strings.TrimSpace(os.Getenv("CHECKOUT_STORAGE_DRIVER")); v != "" {
		driver := StorageDriver(strings.ToLower(v))
		if driver != StorageDriverMemory && driver != StorageDriverPostgres {
			return Config{}, fmt.Errorf("unsupported storage driver: %s", v)
		}
		cfg.StorageDriver = driver
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_AUTO_MIGRATE")); v != "" {
		autoMigrate, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_POSTGRES_AUTO_MIGRATE: %w", err)
		}
		cfg.PostgresAutoMigrate = autoMigrate
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_COMPENSATION_POLL_INTERVAL")); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_COMPENSATION_POLL_INTERVAL: %w", err)
		}
		cfg.CompensationPollInterval = interval
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_COMPENSATION_BATCH_SIZE")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_COMPENSATION_BATCH_SIZE: %w", err)
		}
		cfg.CompensationBatchSize = size
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_COMPENSATION_MAX_ATTEMPTS")); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_COMPENSATION_MAX_ATTEMPTS: %w", err)
		}
		cfg.CompensationMaxAttempts = attempts
	}
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_COMPENSATION_RETRY_DELAY")); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_COMPENSATION_RETRY_DELAY: %w", err)
		}
		cfg.CompensationRetryDelay = delay
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации до старта зависимостей.
func (c Config) Validate() error {
	if c.StorageDriver == StorageDriverPostgres && strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("CHECKOUT_POSTGRES_DSN is required for postgres storage driver")
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("currency must not be empty")
	}
	return nil
}
