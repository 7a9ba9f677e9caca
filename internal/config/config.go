package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	// AttemptLeaseTTL bounds how long an in-flight provisioning attempt
	// holds its idempotency key before another handler may take over.
	AttemptLeaseTTL time.Duration

	TaskPollInterval  time.Duration
	TaskLeaseDuration time.Duration
	TaskMaxAttempts   int

	ReconcileSchedule string
	ReconcileTimeout  time.Duration

	QuotaTiersFile string

	SystemOrgSlug string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SlackWebhookURL   string
	SalesAlertChannel string

	SignupRateLimit float64
	SignupBurst     int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "gatehouse"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		AttemptLeaseTTL:   getenvDuration("ATTEMPT_LEASE_TTL", 5*time.Second),
		TaskPollInterval:  getenvDuration("TASK_POLL_INTERVAL", 2*time.Second),
		TaskLeaseDuration: getenvDuration("TASK_LEASE_DURATION", 30*time.Second),
		TaskMaxAttempts:   getenvInt("TASK_MAX_ATTEMPTS", 5),
		ReconcileSchedule: getenv("RECONCILE_SCHEDULE", "@every 10m"),
		ReconcileTimeout:  getenvDuration("RECONCILE_TIMEOUT", 2*time.Minute),
		QuotaTiersFile:    strings.TrimSpace(getenv("QUOTA_TIERS_FILE", "")),
		SystemOrgSlug:     getenv("SYSTEM_ORG_SLUG", "system"),
		SMTPHost:          getenv("SMTP_HOST", ""),
		SMTPPort:          getenvInt("SMTP_PORT", 587),
		SMTPUsername:      getenv("SMTP_USERNAME", ""),
		SMTPPassword:      getenv("SMTP_PASSWORD", ""),
		SMTPFrom:          getenv("SMTP_FROM", "no-reply@gatehouse.dev"),
		SlackWebhookURL:   strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
		SalesAlertChannel: getenv("SALES_ALERT_CHANNEL", "#signups"),
		SignupRateLimit:   getenvFloat("SIGNUP_RATE_LIMIT", 1),
		SignupBurst:       getenvInt("SIGNUP_BURST", 5),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
