package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string
	AutoMigrate bool

	// Auth0
	Auth0Domain   string
	Auth0Audience string
	Auth0ClientID string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// WSMaxConnsPerActor caps open WebSocket connections per user, 0 = no cap
	WSMaxConnsPerActor int

	// Mutating requests per actor; admin and owner get double
	RateLimitPerMinute int
	RateLimitBurst     int

	// S3 Storage
	S3 S3Config

	// Redis backs idempotency keys and the task queue
	Redis RedisConfig

	Worker WorkerConfig
	Policy PolicyConfig
	Report ReportConfig
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	QueueDB        int
	IdempotencyTTL time.Duration
}

// WorkerConfig holds settings for background workers
type WorkerConfig struct {
	Concurrency       int
	ReconcileInterval time.Duration
}

// PolicyConfig holds the ledger money rules
type PolicyConfig struct {
	AllowOverdraft                 bool
	NoOverdraftTypes               []string
	MinTransferAmount              decimal.Decimal
	AdvanceRepaymentCreditsAccount bool
}

// ReportConfig holds reporting settings
type ReportConfig struct {
	Timezone             string
	PettyCashAccountName string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	minTransfer, err := decimal.NewFromString(getEnv("MIN_TRANSFER_AMOUNT", "0"))
	if err != nil {
		return nil, fmt.Errorf("MIN_TRANSFER_AMOUNT: %w", err)
	}

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AutoMigrate:   getEnvBool("AUTO_MIGRATE", false),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Auth0ClientID: getEnv("AUTH0_CLIENT_ID", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:           getEnv("ENV", "development"),

		WSMaxConnsPerActor: getEnvInt("WS_MAX_CONNECTIONS_PER_ACTOR", 5),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "kaskecil-reports"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			QueueDB:        getEnvInt("ASYNQ_REDIS_DB", 1),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvInt("WORKER_CONCURRENCY", 5),
			ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Hour),
		},
		Policy: PolicyConfig{
			AllowOverdraft:                 getEnvBool("ALLOW_OVERDRAFT", false),
			NoOverdraftTypes:               splitList(getEnv("NO_OVERDRAFT_ACCOUNT_TYPES", "")),
			MinTransferAmount:              minTransfer,
			AdvanceRepaymentCreditsAccount: getEnvBool("ADVANCE_REPAYMENT_CREDITS_ACCOUNT", true),
		},
		Report: ReportConfig{
			Timezone:             getEnv("REPORT_TIMEZONE", "Asia/Jakarta"),
			PettyCashAccountName: getEnv("PETTY_CASH_ACCOUNT_NAME", "Kas Kecil"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.Policy.MinTransferAmount.IsNegative() {
		return fmt.Errorf("MIN_TRANSFER_AMOUNT must not be negative")
	}
	if c.WSMaxConnsPerActor < 0 {
		return fmt.Errorf("WS_MAX_CONNECTIONS_PER_ACTOR must not be negative")
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be at least 1")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Worker.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
