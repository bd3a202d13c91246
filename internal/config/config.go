package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required"`
	Env             string        `json:"env" validate:"oneof=development production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Database configuration
	DatabaseURL string `json:"database_url" validate:"required"`
	DBMaxConns  int    `json:"db_max_conns" validate:"min=1"`
	DBMaxIdle   int    `json:"db_max_idle" validate:"min=0"`

	// Redis configuration
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// Hacker News API
	HNBaseURL string        `json:"hn_base_url" validate:"required,url"`
	HNTimeout time.Duration `json:"hn_timeout"`

	// Translation (OpenAI-compatible endpoint)
	OpenAIAPIKey  string        `json:"openai_api_key"`
	OpenAIBaseURL string        `json:"openai_base_url" validate:"required,url"`
	OpenAIModel   string        `json:"openai_model" validate:"required"`
	OpenAITimeout time.Duration `json:"openai_timeout"`

	// Ingestion
	BatchSize      int           `json:"batch_size" validate:"min=1"`
	CronLimit      int           `json:"cron_limit" validate:"min=1"`
	FetchLimit     int           `json:"fetch_limit" validate:"min=1"`
	TranslateDelay time.Duration `json:"translate_delay"`
	RunTimeout     time.Duration `json:"run_timeout"`

	// CloudFlare R2 run-snapshot archive (optional)
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`

	// Logging
	LogLevel string `json:"log_level"`

	// Security
	CronSecret string `json:"cron_secret"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Database configuration
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/hnzh?sslmode=disable"),
		DBMaxConns:  getEnvAsInt("DB_MAX_CONNS", 10),
		DBMaxIdle:   getEnvAsInt("DB_MAX_IDLE", 5),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: getEnv("REDIS_PREFIX", "hnzh:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 60*time.Second),

		// Hacker News API
		HNBaseURL: getEnv("HN_BASE_URL", "https://hacker-news.firebaseio.com/v0"),
		HNTimeout: getEnvAsDuration("HN_TIMEOUT", 10*time.Second),

		// Translation
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OpenAITimeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),

		// Ingestion
		BatchSize:      getEnvAsInt("INGEST_BATCH_SIZE", 3),
		CronLimit:      getEnvAsInt("CRON_LIMIT", 10),
		FetchLimit:     getEnvAsInt("FETCH_LIMIT", 30),
		TranslateDelay: getEnvAsDuration("TRANSLATE_DELAY", time.Second),
		RunTimeout:     getEnvAsDuration("RUN_TIMEOUT", 5*time.Minute),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "hnzh-runs"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Security
		CronSecret: getEnv("CRON_SECRET", ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ArchiveEnabled reports whether run snapshots should be written to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
