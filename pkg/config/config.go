package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	UserID    string

	// Platform API
	APIURL          string
	APIToken        string
	APITimeout      time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration

	// Checkout
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	SupportContact     string

	// Redis
	RedisURL           string
	MembershipCacheTTL time.Duration

	// RabbitMQ
	RabbitMQURL string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
		UserID:    getEnv("DONORA_USER_ID", "00000000-0000-0000-0000-000000000001"),

		APIURL:          getEnv("DONORA_API_URL", "http://localhost:8000/api"),
		APIToken:        getEnv("DONORA_API_TOKEN", ""),
		APITimeout:      getDurationEnv("DONORA_API_TIMEOUT", 15*time.Second),
		BreakerFailures: getIntEnv("DONORA_BREAKER_FAILURES", 5),
		BreakerTimeout:  getDurationEnv("DONORA_BREAKER_TIMEOUT", 30*time.Second),

		CheckoutSuccessURL: getEnv("DONORA_CHECKOUT_SUCCESS_URL", "http://localhost:3000/membership/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:  getEnv("DONORA_CHECKOUT_CANCEL_URL", "http://localhost:3000/membership"),
		SupportContact:     getEnv("DONORA_SUPPORT_CONTACT", "support@donora.org"),

		// Empty means the in-memory cache is used.
		RedisURL:           getEnv("REDIS_URL", ""),
		MembershipCacheTTL: getDurationEnv("MEMBERSHIP_CACHE_TTL", time.Minute),

		// Empty means lifecycle events stay on the in-process bus.
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	return cfg, nil
}

// Validate checks the values the API client cannot work without.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("%w: DONORA_API_URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("%w: DONORA_API_URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: DONORA_API_URL must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: DONORA_API_URL has no host", ErrInvalidConfig)
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("%w: DONORA_BREAKER_FAILURES must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
