// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Config holds all runtime configuration for the service. It is loaded once
// at start-up and never modified afterwards.
type Config struct {
	Port      string
	AppEnv    string
	LogLevel  string
	SentryDSN string

	// Object storage (S3-compatible: MinIO locally, AWS S3 in production)
	StorageDriver       string
	StorageEndpoint     string // host:port for minio, base URL (optional) for s3
	StorageAccessKey    string
	StorageSecretKey    string
	StorageBucket       string
	StorageRegion       string
	StorageUseSSL       bool
	StoragePathStyle    bool
	StoragePublicBase   string // browser-accessible base URL, e.g. "http://localhost:9000/files"
	StorageEnsureBucket bool
	StorageTimeout      time.Duration
	// StorageUploadTimeout bounds a whole upload; zero leaves it to the
	// client connection.
	StorageUploadTimeout time.Duration
	StoragePartSize      int
	StorageMaxRetries    int

	MaxUploadBytes  int64
	ListDefaultKeys int
	ListMaxKeys     int

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from a .env file (if present) and environment
// variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	var errs []error
	driver := strings.ToLower(getEnv("STORAGE_DRIVER", DriverMinio))

	// The s3 driver talks to AWS unless an endpoint is given explicitly.
	endpoint := "localhost:9000"
	if driver == DriverS3 {
		endpoint = ""
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SentryDSN: getEnv("SENTRY_DSN", ""),

		StorageDriver:        driver,
		StorageEndpoint:      getEnv("STORAGE_ENDPOINT", endpoint),
		StorageAccessKey:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey:     getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:        getEnv("STORAGE_BUCKET", "files"),
		StorageRegion:        getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:        getEnvBool("STORAGE_USE_SSL", false, &errs),
		StoragePathStyle:     getEnvBool("STORAGE_PATH_STYLE", true, &errs),
		StoragePublicBase:    getEnv("STORAGE_PUBLIC_BASE", ""),
		StorageEnsureBucket:  getEnvBool("STORAGE_ENSURE_BUCKET", true, &errs),
		StorageTimeout:       getEnvDuration("STORAGE_TIMEOUT", 30*time.Second, &errs),
		StorageUploadTimeout: getEnvDuration("STORAGE_UPLOAD_TIMEOUT", 0, &errs),
		StoragePartSize:      getEnvInt("STORAGE_PART_SIZE", 16<<20, &errs),
		StorageMaxRetries:    getEnvInt("STORAGE_MAX_RETRIES", 3, &errs),

		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 100<<20, &errs)),
		ListDefaultKeys: getEnvInt("LIST_DEFAULT_KEYS", 100, &errs),
		ListMaxKeys:     getEnvInt("LIST_MAX_KEYS", 1000, &errs),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0, &errs),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20, &errs),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMinio, DriverS3, DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.StorageBucket == "" {
		return errors.New("config: STORAGE_BUCKET is required")
	}
	if c.StorageDriver == DriverS3 && c.StorageRegion == "" {
		return errors.New("config: STORAGE_REGION is required for the s3 driver")
	}
	if c.ListDefaultKeys <= 0 || c.ListMaxKeys <= 0 {
		return errors.New("config: LIST_DEFAULT_KEYS and LIST_MAX_KEYS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.StoragePartSize < 5<<20 {
		return errors.New("config: STORAGE_PART_SIZE must be at least 5 MiB")
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// EndpointURL returns StorageEndpoint as a URL for the s3 driver, adding a
// scheme when the endpoint is a bare host. Empty stays empty.
func (c *Config) EndpointURL() string {
	ep := strings.TrimRight(c.StorageEndpoint, "/")
	if ep == "" || strings.Contains(ep, "://") {
		return ep
	}
	if c.StorageUseSSL {
		return "https://" + ep
	}
	return "http://" + ep
}

// EndpointHost returns StorageEndpoint without a scheme, as minio-go
// expects.
func (c *Config) EndpointHost() string {
	ep := c.StorageEndpoint
	if _, rest, ok := strings.Cut(ep, "://"); ok {
		ep = rest
	}
	return strings.TrimRight(ep, "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return d
}
