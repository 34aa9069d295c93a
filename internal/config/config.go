package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings resolved once at startup.
type Config struct {
	Environment string
	HTTPAddr    string

	DatabaseDriver string
	DatabaseDSN    string

	// ProviderWebhookSecret verifies inbound payment provider signatures.
	ProviderWebhookSecret string
	// SignatureTolerance bounds how stale an inbound signature timestamp may be.
	SignatureTolerance time.Duration

	Delivery DeliveryConfig
	Tracing  TracingConfig

	TriggerRateLimit  int
	TriggerRateWindow time.Duration
}

// DeliveryConfig bounds outbound webhook deliveries.
type DeliveryConfig struct {
	Timeout           time.Duration
	MaxEventLength    int
	MaxPayloadBytes   int
	ResponseBodyLimit int
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled          bool
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// IsProduction reports whether the process runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Load reads configuration from the environment. A local .env file is
// honored outside production so development matches deployed settings.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:           getEnv("STAGEFLOW_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseDriver:        getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:           getEnv("DATABASE_DSN", ""),
		ProviderWebhookSecret: os.Getenv("PROVIDER_WEBHOOK_SECRET"),
		SignatureTolerance:    getDuration("SIGNATURE_TOLERANCE", 5*time.Minute),
		Delivery: DeliveryConfig{
			Timeout:           getDuration("DELIVERY_TIMEOUT", 30*time.Second),
			MaxEventLength:    getInt("DELIVERY_MAX_EVENT_LENGTH", 100),
			MaxPayloadBytes:   getInt("DELIVERY_MAX_PAYLOAD_BYTES", 100*1024),
			ResponseBodyLimit: getInt("DELIVERY_RESPONSE_BODY_LIMIT", 1000),
		},
		Tracing: TracingConfig{
			Enabled:          getBool("TRACING_ENABLED", false),
			ServiceVersion:   getEnv("SERVICE_VERSION", "dev"),
			ExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ExporterProtocol: getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http"),
			SamplingRatio:    getFloat("TRACING_SAMPLING_RATIO", 1.0),
		},
		TriggerRateLimit:  getInt("TRIGGER_RATE_LIMIT", 120),
		TriggerRateWindow: getDuration("TRIGGER_RATE_WINDOW", time.Minute),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
