package config

import (
	"os"
	"strconv"
	"time"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// FinTS bridge gateway
	FinTSBridgeURL string
	BankURL        string
	BankCode       string
	BankUsername   string
	BankPIN        string
	ProductID      string

	// Firefly III
	FireflyURL   string
	FireflyToken string

	// Import behavior
	PreferredFormat       domain.StatementFormat
	BatchSize             int
	MaxConcurrency        int
	SkipOnUnknownCurrency bool

	// Session
	SessionTTL time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability
	OTLPEndpoint string

	// Auth (empty APP_PASSWORD_HASH disables it)
	AppPasswordHash string
	JWTSecret       string
	JWTAccessTTL    time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FinTSBridgeURL: getEnv("FINTS_BRIDGE_URL", "http://localhost:8090"),
		BankURL:        getEnv("FINTS_BANK_URL", ""),
		BankCode:       getEnv("FINTS_BANK_CODE", ""),
		BankUsername:   getEnv("FINTS_USERNAME", ""),
		BankPIN:        getEnv("FINTS_PIN", ""),
		ProductID:      getEnv("FINTS_PRODUCT_ID", ""),

		FireflyURL:   getEnv("FIREFLY_URL", "http://localhost:8083"),
		FireflyToken: getEnv("FIREFLY_TOKEN", ""),

		PreferredFormat:       statementFormat(getEnv("PREFERRED_FORMAT", "camt")),
		BatchSize:             getEnvInt("BATCH_SIZE", 25),
		MaxConcurrency:        getEnvInt("MAX_CONCURRENCY", 4),
		SkipOnUnknownCurrency: getEnv("SKIP_UNKNOWN_CURRENCY", "false") == "true",

		SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		JWTSecret:       getEnv("JWT_SECRET", "fints-importer-dev-secret-change-me"),
		JWTAccessTTL:    getEnvDuration("JWT_ACCESS_TTL", time.Hour),
	}
}

func statementFormat(s string) domain.StatementFormat {
	if s == string(domain.FormatMT940) {
		return domain.FormatMT940
	}
	return domain.FormatCAMT
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
