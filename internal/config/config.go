package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the shop's local zone. Reservation dates are compared
// as calendar days in it.
const DefaultTimezone = "America/Lima"

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Email providers.
const (
	EmailStub     = "stub"
	EmailSendGrid = "sendgrid"
	EmailSES      = "ses"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	StoreTTL      time.Duration

	Timezone          string
	FormsFile         string
	NotificationDelay time.Duration

	ForwardSubmissions bool
	ForwardBaseURL     string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	// AdminAuthSecret signs the HS256 tokens accepted by the lead read
	// endpoints. They are not mounted when empty.
	AdminAuthSecret string
	// SessionSecret signs the tokens pages use to resume a websocket
	// session. A random key is used when empty.
	SessionSecret string

	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	ShopEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:  strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreMemory))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		StoreTTL:      getEnvAsDuration("STORE_TTL", 0),

		Timezone:          getEnv("TIMEZONE", DefaultTimezone),
		FormsFile:         getEnv("FORMS_FILE", ""),
		NotificationDelay: getEnvAsDuration("NOTIFICATION_DELAY", 4*time.Second),

		ForwardSubmissions: getEnvAsBool("FORWARD_SUBMISSIONS", false),
		ForwardBaseURL:     getEnv("FORWARD_BASE_URL", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		AdminAuthSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		SessionSecret:      getEnv("SESSION_SECRET", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", EmailStub))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Barbería Elite"),
		ShopEmail:      getEnv("SHOP_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.EmailProvider {
	case EmailStub, EmailSendGrid, EmailSES:
	default:
		return fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	if c.ForwardSubmissions && strings.TrimSpace(c.ForwardBaseURL) == "" {
		return fmt.Errorf("config: FORWARD_BASE_URL is required when FORWARD_SUBMISSIONS is enabled")
	}
	if c.Env == "production" && c.AdminAuthSecret != "" && len(c.AdminAuthSecret) < 32 {
		return fmt.Errorf("config: ADMIN_JWT_SECRET must be at least 32 bytes in production")
	}
	if c.Env == "production" && c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return fmt.Errorf("config: SESSION_SECRET must be at least 32 bytes in production")
	}
	if c.NotificationDelay <= 0 {
		return fmt.Errorf("config: NOTIFICATION_DELAY must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
