package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	DispatcherLog   = "log"
	DispatcherKafka = "kafka"

	ArchiverMemory = "memory"
	ArchiverFS     = "fs"
)

// Config holds everything that changes between environments.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	StoreDriver      string // memory | postgres
	DatabaseURL      string
	DispatcherDriver string // log | kafka
	KafkaBroker      string
	NotifyTopic      string
	ArchiverDriver   string // memory | fs
	ReceiptsDir      string

	UnitPrice            int64
	DefaultPaymentMethod string
	InitialStock         int
	SeedProducts         []string

	StepTimeout          time.Duration
	RetryMaxAttempts     uint64
	SoftRetryMaxAttempts uint64
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "fulfillment"),
		Env:         getEnvOrDefault("ENV", "dev"),
		HTTPAddr:    getEnvOrDefault("HTTP_ADDR", ":8080"),

		StoreDriver:      getEnvOrDefault("STORE_DRIVER", DriverMemory),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DispatcherDriver: getEnvOrDefault("DISPATCHER_DRIVER", DispatcherLog),
		KafkaBroker:      getEnvOrDefault("KAFKA_BROKER", "localhost:9092"),
		NotifyTopic:      getEnvOrDefault("NOTIFY_TOPIC", "order-notifications"),
		ArchiverDriver:   getEnvOrDefault("ARCHIVER_DRIVER", ArchiverFS),
		ReceiptsDir:      getEnvOrDefault("RECEIPTS_DIR", "data"),

		DefaultPaymentMethod: getEnvOrDefault("DEFAULT_PAYMENT_METHOD", "creditCard"),
		SeedProducts:         envList("SEED_PRODUCTS", []string{"laptop"}),
	}

	var err error
	if cfg.UnitPrice, err = envInt64("UNIT_PRICE", 100); err != nil {
		return nil, err
	}
	if cfg.InitialStock, err = envInt("INITIAL_STOCK", 100); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = envUint("RETRY_MAX_ATTEMPTS", 4); err != nil {
		return nil, err
	}
	if cfg.SoftRetryMaxAttempts, err = envUint("SOFT_RETRY_MAX_ATTEMPTS", 2); err != nil {
		return nil, err
	}
	if cfg.StepTimeout, err = envDuration("STEP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryInitialInterval, err = envDuration("RETRY_INITIAL_INTERVAL", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryMaxInterval, err = envDuration("RETRY_MAX_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	if cfg.UnitPrice <= 0 {
		return nil, fmt.Errorf("UNIT_PRICE must be positive")
	}
	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.DispatcherDriver {
	case DispatcherLog:
	case DispatcherKafka:
		if cfg.KafkaBroker == "" {
			return nil, fmt.Errorf("KAFKA_BROKER is required when DISPATCHER_DRIVER=kafka")
		}
	default:
		return nil, fmt.Errorf("unknown DISPATCHER_DRIVER %q", cfg.DispatcherDriver)
	}
	switch cfg.ArchiverDriver {
	case ArchiverMemory, ArchiverFS:
	default:
		return nil, fmt.Errorf("unknown ARCHIVER_DRIVER %q", cfg.ArchiverDriver)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envUint(key string, def uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
