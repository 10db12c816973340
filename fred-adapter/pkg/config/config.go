package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/plumbing-feed/pkg/config"
)

// DefaultBaseURL is the FRED series observations endpoint.
const DefaultBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// DefaultJobs are the outputs the dashboard reads.
var DefaultJobs = []string{"plumbing", "tga", "repo"}

// ConfigurationError reports a missing or invalid setting. It is always
// raised before any network call is made.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Config holds the runtime configuration for the FRED fetcher and the
// dashboard server. It is built once by Load and never mutated afterwards.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Credential. APIKeySecretID is only consulted when APIKey is empty.
	APIKey         string
	APIKeySecretID string
	AWSRegion      string

	BaseURL        string
	Jobs           []string
	OutputDir      string
	RequestTimeout time.Duration
	RetryMax       int
	RateRPS        float64
	RateBurst      int

	// Optional sinks; empty disables them.
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	DatabaseURL    string
	NATSURL        string
	NATSStream     string
	PushgatewayURL string

	PGMaxConns        int
	PGMinConns        int
	PGMaxConnLifetime time.Duration

	// Dashboard server.
	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:       pkgconfig.GetEnv("SERVICE_NAME", "fred-adapter"),
		Env:               pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:          pkgconfig.GetEnv("LOG_LEVEL", "info"),
		APIKey:            pkgconfig.GetEnv("FRED_API_KEY", ""),
		APIKeySecretID:    pkgconfig.GetEnv("FRED_API_KEY_SECRET_ID", ""),
		AWSRegion:         pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		BaseURL:           pkgconfig.GetEnv("FRED_BASE_URL", DefaultBaseURL),
		Jobs:              pkgconfig.GetEnvList("FRED_JOBS", DefaultJobs),
		OutputDir:         pkgconfig.GetEnv("FRED_OUTPUT_DIR", "data"),
		RequestTimeout:    pkgconfig.GetEnvDuration("FRED_REQUEST_TIMEOUT", 30*time.Second),
		RetryMax:          pkgconfig.GetEnvInt("FRED_RETRY_MAX", 0),
		RateRPS:           pkgconfig.GetEnvFloat("FRED_RATE_RPS", 2),
		RateBurst:         pkgconfig.GetEnvInt("FRED_RATE_BURST", 5),
		RedisAddr:         pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:           pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:         pkgconfig.GetEnv("REDIS_PASS", ""),
		DatabaseURL:       pkgconfig.GetEnv("DATABASE_URL", ""),
		NATSURL:           pkgconfig.GetEnv("NATS_URL", ""),
		NATSStream:        pkgconfig.GetEnv("NATS_STREAM", "FRED_EVENTS"),
		PushgatewayURL:    pkgconfig.GetEnv("PUSHGATEWAY_URL", ""),
		PGMaxConns:        pkgconfig.GetEnvInt("PG_MAX_CONNS", 4),
		PGMinConns:        pkgconfig.GetEnvInt("PG_MIN_CONNS", 0),
		PGMaxConnLifetime: pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		Port:              pkgconfig.GetEnvInt("DASHBOARD_PORT", 9040),
		HTTPReadTimeout:   pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:  pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:   pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}
}

// Validate checks what the fetcher needs before it touches the network.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.APIKeySecretID == "" {
		return &ConfigurationError{Key: "FRED_API_KEY", Reason: "not set (and FRED_API_KEY_SECRET_ID is empty)"}
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return &ConfigurationError{Key: "FRED_BASE_URL", Reason: fmt.Sprintf("%q is not an http(s) URL", c.BaseURL)}
	}
	if len(c.Jobs) == 0 {
		return &ConfigurationError{Key: "FRED_JOBS", Reason: "no jobs selected"}
	}
	if c.OutputDir == "" {
		return &ConfigurationError{Key: "FRED_OUTPUT_DIR", Reason: "empty"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigurationError{Key: "FRED_REQUEST_TIMEOUT", Reason: "must be positive"}
	}
	if c.RetryMax < 0 {
		return &ConfigurationError{Key: "FRED_RETRY_MAX", Reason: "must not be negative"}
	}
	return nil
}
