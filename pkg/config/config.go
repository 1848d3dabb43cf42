package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Audit sinks
const (
	AuditSinkLog      = "log"
	AuditSinkDatabase = "database"
	AuditSinkBoth     = "both"
)

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	// Security configuration
	AllowedOrigins  string
	TrustedProxies  string
	EnableRateLimit bool
	MaxRequestSize  int64
	// Entity analytics defaults
	EntityAnalytics EntityAnalyticsConfig
	AuditSink       string
}

// EntityAnalyticsConfig holds the risk scoring defaults. Values stored in the
// risk engine configuration take precedence at request time.
type EntityAnalyticsConfig struct {
	DefaultPageSize         int
	MaxPageSize             int
	AlertSampleSizePerShard int
}

// New creates a new configuration instance from environment variables
func New() *Config {
	return &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		// Security configuration
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", ""),
		TrustedProxies:  getEnv("TRUSTED_PROXIES", ""),
		EnableRateLimit: getEnv("ENABLE_RATE_LIMIT", "true") == "true",
		MaxRequestSize:  getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB default
		EntityAnalytics: EntityAnalyticsConfig{
			DefaultPageSize:         getEnvAsInt("RISK_SCORE_DEFAULT_PAGE_SIZE", 1000),
			MaxPageSize:             getEnvAsInt("RISK_SCORE_MAX_PAGE_SIZE", 10000),
			AlertSampleSizePerShard: getEnvAsInt("ALERT_SAMPLE_SIZE_PER_SHARD", 10000),
		},
		AuditSink: strings.ToLower(getEnv("AUDIT_SINK", AuditSinkBoth)),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuditToLog reports whether audit events are written to the service log
func (c *Config) AuditToLog() bool {
	return c.AuditSink == AuditSinkLog || c.AuditSink == AuditSinkBoth
}

// AuditToDatabase reports whether audit events are persisted
func (c *Config) AuditToDatabase() bool {
	return c.AuditSink == AuditSinkDatabase || c.AuditSink == AuditSinkBoth
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetAllowedOrigins returns a slice of allowed CORS origins
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return []string{}
	}
	return strings.Split(c.AllowedOrigins, ",")
}

// GetTrustedProxies returns a slice of trusted proxy IPs
func (c *Config) GetTrustedProxies() []string {
	if c.TrustedProxies == "" {
		return []string{} // No trusted proxies by default
	}
	return strings.Split(c.TrustedProxies, ",")
}
