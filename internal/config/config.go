package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // REPORT_TIMEZONE must resolve in minimal images
)

// MemoryDatabasePrefix selects the in-process stores instead of PostgreSQL
const MemoryDatabasePrefix = "memory://"

// MinJWTSecretLength is the shortest accepted HS256 signing secret
const MinJWTSecretLength = 32

// Config holds application configuration
type Config struct {
	DatabaseURL string
	ServerPort  string
	BaseURL     string
	FrontendURL string
	LogFormat   string

	JWTSecret string
	// JWTSecretGenerated is set when memory mode created an ephemeral secret
	JWTSecretGenerated bool
	TokenTTL           time.Duration

	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	AITemperature    float64
	AIRequestTimeout time.Duration
	AIMaxToolRounds  int

	RequestTimeout     time.Duration
	ChatRequestTimeout time.Duration

	ReportLocation      *time.Location
	ReportWeekday       time.Weekday
	ReportHour          int
	ReportCheckInterval time.Duration

	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// MemoryMode reports whether DATABASE_URL selects the in-process stores
func (c *Config) MemoryMode() bool {
	return strings.HasPrefix(c.DatabaseURL, MemoryDatabasePrefix)
}

// AIConfigured reports whether a model API key is present
func (c *Config) AIConfigured() bool {
	return c.OpenAIKey != ""
}

// QueueEnabled reports whether weekly report jobs can be queued
func (c *Config) QueueEnabled() bool {
	return c.RabbitMQURL != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(lookup func(string) string) (*Config, error) {
	env := envReader(lookup)
	cfg := &Config{
		DatabaseURL: env.getEnv("DATABASE_URL", ""),
		ServerPort:  env.getEnv("SERVER_PORT", "8080"),
		BaseURL:     env.getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL: env.getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogFormat:   env.getEnv("LOG_FORMAT", "json"),

		JWTSecret: env.getEnv("JWT_SECRET", ""),
		TokenTTL:  env.getEnvDuration("TOKEN_TTL", 24*time.Hour),

		OpenAIKey:        env.getEnv("OPENAI_API_KEY", ""),
		AIModel:          env.getEnv("AI_MODEL", ""),
		AIBaseURL:        env.getEnv("AI_BASE_URL", ""),
		AITemperature:    env.getEnvFloat("AI_TEMPERATURE", 0.7),
		AIRequestTimeout: env.getEnvDuration("AI_REQUEST_TIMEOUT", 90*time.Second),
		AIMaxToolRounds:  env.getEnvInt("AI_MAX_TOOL_ROUNDS", 10),

		RequestTimeout:     env.getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ChatRequestTimeout: env.getEnvDuration("CHAT_REQUEST_TIMEOUT", 120*time.Second),

		ReportHour:          env.getEnvInt("REPORT_HOUR", 17),
		ReportCheckInterval: env.getEnvDuration("REPORT_CHECK_INTERVAL", time.Hour),

		EnableHSTS:       env.getEnvBool("ENABLE_HSTS", false),
		RedisURL:         env.getEnv("REDIS_URL", ""),
		RabbitMQURL:      env.getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: env.getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  env.getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  env.getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      env.getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     env.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required (use %s for in-process storage)", MemoryDatabasePrefix)
	}

	if cfg.JWTSecret == "" {
		if !cfg.MemoryMode() {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		cfg.JWTSecretGenerated = true
	}
	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}

	if cfg.AITemperature < 0 || cfg.AITemperature > 2 {
		return nil, fmt.Errorf("AI_TEMPERATURE must be between 0 and 2, got %v", cfg.AITemperature)
	}
	if cfg.AIRequestTimeout <= 0 {
		return nil, fmt.Errorf("AI_REQUEST_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= 0 || cfg.ChatRequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT and CHAT_REQUEST_TIMEOUT must be positive")
	}
	// A chat turn may wait on several model calls
	if cfg.ChatRequestTimeout < cfg.AIRequestTimeout {
		return nil, fmt.Errorf("CHAT_REQUEST_TIMEOUT (%v) must not be shorter than AI_REQUEST_TIMEOUT (%v)", cfg.ChatRequestTimeout, cfg.AIRequestTimeout)
	}
	if cfg.AIMaxToolRounds < 1 {
		return nil, fmt.Errorf("AI_MAX_TOOL_ROUNDS must be at least 1")
	}

	loc, err := time.LoadLocation(env.getEnv("REPORT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}
	cfg.ReportLocation = loc

	weekday, err := parseWeekday(env.getEnv("REPORT_WEEKDAY", "friday"))
	if err != nil {
		return nil, err
	}
	cfg.ReportWeekday = weekday
	if cfg.ReportHour < 0 || cfg.ReportHour > 23 {
		return nil, fmt.Errorf("REPORT_HOUR must be between 0 and 23")
	}

	return cfg, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid REPORT_WEEKDAY %q", s)
}

func randomSecret() (string, error) {
	b := make([]byte, MinJWTSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// envReader reads settings through a lookup function so tests need not touch the process environment
type envReader func(string) string

func (e envReader) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(e(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) getEnvBool(key string, defaultValue bool) bool {
	if value := e.getEnv(key, ""); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e envReader) getEnvInt(key string, defaultValue int) int {
	if value := e.getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envReader) getEnvFloat(key string, defaultValue float64) float64 {
	if value := e.getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (e envReader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e.getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
