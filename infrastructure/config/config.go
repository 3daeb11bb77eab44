package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	RegistryStatic   = "static"
	RegistryPostgres = "postgres"
)

type Config struct {
	ServerPort      string
	ServerHost      string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	LogLevel               string
	LogFormat              string
	LogCorrelationIDHeader string
	LogEnableRequestLog    bool

	// Admin credential. A plaintext secret is hashed with bcrypt at startup.
	AdminSecret     string
	AdminSecretHash string
	BcryptCost      int

	// Policy thresholds
	DailyLimit        decimal.Decimal
	StructuringFloor  decimal.Decimal
	StructuringWindow int
	MaxStrikes        int
	UrgencyThreshold  decimal.Decimal
	MaxCompleted      int

	RegistrySource string
	DatabaseURL    string

	RedisURL               string
	RateLimitEnabled       bool
	RateLimitIPAttempts    int
	RateLimitIPWindow      time.Duration
	RateLimitBlockDuration time.Duration

	// Admin sessions are disabled when JWTSecret is empty.
	JWTSecret     string
	AdminTokenTTL time.Duration

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	SSEEnabled           bool
	SSEHeartbeatInterval time.Duration
	SSEMaxConnections    int
	SSEMessageBufferSize int

	MetricsEnabled     bool
	NotifierBufferSize int
}

var (
	ErrMissingAdminSecret    = errors.New("ADMIN_SECRET or ADMIN_SECRET_HASH is required")
	ErrMissingDatabaseURL    = errors.New("DATABASE_URL is required when REGISTRY_SOURCE=postgres")
	ErrInvalidRegistrySource = errors.New("REGISTRY_SOURCE must be static or postgres")
	ErrInvalidAmount         = errors.New("invalid decimal amount")
	ErrInvalidTokenTTL       = errors.New("invalid token TTL format")
	ErrInvalidThreshold      = errors.New("STRUCTURING_FLOOR must be below DAILY_LIMIT")
	ErrInvalidMaxStrikes     = errors.New("MAX_STRIKES must be at least 1")
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:      getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:      getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		Environment:     getEnvOrDefault("ENV", "development"),
		ReadTimeout:     getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvOrDefaultDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "json"),
		LogCorrelationIDHeader: getEnvOrDefault("LOG_CORRELATION_ID_HEADER", "X-Correlation-ID"),
		LogEnableRequestLog:    getEnvOrDefaultBool("LOG_ENABLE_REQUEST_LOG", true),

		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		AdminSecretHash: os.Getenv("ADMIN_SECRET_HASH"),
		BcryptCost:      getEnvOrDefaultInt("BCRYPT_COST", 10),

		StructuringWindow: getEnvOrDefaultInt("STRUCTURING_WINDOW", 3),
		MaxStrikes:        getEnvOrDefaultInt("MAX_STRIKES", 3),
		MaxCompleted:      getEnvOrDefaultInt("MAX_COMPLETED_TRANSFERS", 256),

		RegistrySource: strings.ToLower(getEnvOrDefault("REGISTRY_SOURCE", RegistryStatic)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitEnabled:    getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		RateLimitIPAttempts: getEnvOrDefaultInt("RATE_LIMIT_IP_ATTEMPTS", 60),

		JWTSecret: os.Getenv("JWT_SECRET"),

		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", false),
		CORSAllowedOrigins:   parseAllowedOrigins(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "")),

		SSEEnabled:           getEnvOrDefaultBool("SSE_ENABLED", true),
		SSEHeartbeatInterval: getEnvOrDefaultDuration("SSE_HEARTBEAT_INTERVAL", 15*time.Second),
		SSEMaxConnections:    getEnvOrDefaultInt("SSE_MAX_CONNECTIONS", 100),
		SSEMessageBufferSize: getEnvOrDefaultInt("SSE_MESSAGE_BUFFER_SIZE", 64),

		MetricsEnabled:     getEnvOrDefaultBool("METRICS_ENABLED", true),
		NotifierBufferSize: getEnvOrDefaultInt("NOTIFIER_BUFFER_SIZE", 256),
	}

	if cfg.AdminSecret == "" && cfg.AdminSecretHash == "" {
		return nil, ErrMissingAdminSecret
	}

	switch cfg.RegistrySource {
	case RegistryStatic:
	case RegistryPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	default:
		return nil, ErrInvalidRegistrySource
	}

	var err error
	if cfg.DailyLimit, err = getEnvOrDefaultDecimal("DAILY_LIMIT", "10000000"); err != nil {
		return nil, err
	}
	if cfg.StructuringFloor, err = getEnvOrDefaultDecimal("STRUCTURING_FLOOR", "9900000"); err != nil {
		return nil, err
	}
	if cfg.UrgencyThreshold, err = getEnvOrDefaultDecimal("URGENCY_THRESHOLD", "1000000"); err != nil {
		return nil, err
	}
	if cfg.StructuringFloor.GreaterThanOrEqual(cfg.DailyLimit) {
		return nil, ErrInvalidThreshold
	}
	if cfg.MaxStrikes < 1 {
		return nil, ErrInvalidMaxStrikes
	}

	// Parse TTLs
	if cfg.AdminTokenTTL, err = parseTokenTTL(getEnvOrDefault("ADMIN_TOKEN_TTL", "900")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.RateLimitIPWindow, err = parseTokenTTL(getEnvOrDefault("RATE_LIMIT_IP_WINDOW", "60")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.RateLimitBlockDuration, err = parseTokenTTL(getEnvOrDefault("RATE_LIMIT_BLOCK_DURATION", "300")); err != nil {
		return nil, ErrInvalidTokenTTL
	}

	if cfg.JWTSecret == "" {
		logMissing("JWT_SECRET, admin sessions disabled")
	}

	return cfg, nil
}

// Address is the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return c.ServerHost + ":" + c.ServerPort
}

// SessionsEnabled reports whether admin session tokens can be issued.
func (c *Config) SessionsEnabled() bool {
	return c.JWTSecret != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultDecimal(key, defaultValue string) (decimal.Decimal, error) {
	raw := getEnvOrDefault(key, defaultValue)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s=%q: %w", key, raw, ErrInvalidAmount)
	}
	return d, nil
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// interpret as seconds if numeric, else parse like Go duration
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func parseTokenTTL(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseAllowedOrigins(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func logMissing(msg string) {
	// config loads before the logger exists
	fmt.Fprintf(os.Stderr, "[config] missing %s\n", msg)
}
