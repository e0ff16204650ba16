// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all runtime settings for the loyalty service.
type Config struct {
	Environment string
	HTTPAddr    string

	// DatabaseURL is a postgres DSN. When empty the service falls back
	// to a local sqlite file, which is only suitable for development.
	DatabaseURL  string
	SQLitePath   string
	NodeID       int64
	LogLevel     string
	ConfigTTL    time.Duration
	RateLimit    int
	RateWindow   time.Duration
	StoreTimeout time.Duration

	Tracing TracingConfig

	Bootstrap BootstrapConfig
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// BootstrapConfig controls development seeding.
type BootstrapConfig struct {
	SeedDefaultTenant bool
	DefaultTenantID   int64
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the process environment. A .env file in
// the working directory is honored when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment:  getEnv("LOYALTY_ENV", "development"),
		HTTPAddr:     getEnv("LOYALTY_HTTP_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("LOYALTY_DATABASE_URL"),
		SQLitePath:   getEnv("LOYALTY_SQLITE_PATH", "loyalty.db"),
		NodeID:       int64(getInt("LOYALTY_NODE_ID", 1)),
		LogLevel:     getEnv("LOYALTY_LOG_LEVEL", "info"),
		ConfigTTL:    getDuration("LOYALTY_CONFIG_CACHE_TTL", 30*time.Second),
		RateLimit:    getInt("LOYALTY_RATE_LIMIT", 120),
		RateWindow:   getDuration("LOYALTY_RATE_WINDOW", time.Minute),
		StoreTimeout: getDuration("LOYALTY_STORE_TIMEOUT", 5*time.Second),
		Tracing: TracingConfig{
			Enabled:          getBool("LOYALTY_TRACING_ENABLED", false),
			ServiceName:      getEnv("LOYALTY_SERVICE_NAME", "loyalty"),
			ServiceVersion:   getEnv("LOYALTY_SERVICE_VERSION", "dev"),
			ExporterEndpoint: os.Getenv("LOYALTY_OTLP_ENDPOINT"),
			ExporterProtocol: getEnv("LOYALTY_OTLP_PROTOCOL", "http"),
			SamplingRatio:    getFloat("LOYALTY_TRACING_RATIO", 1.0),
		},
		Bootstrap: BootstrapConfig{
			SeedDefaultTenant: getBool("LOYALTY_SEED_DEFAULT_TENANT", true),
			DefaultTenantID:   int64(getInt("LOYALTY_DEFAULT_TENANT_ID", 1)),
		},
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
