package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Charge policies for generation credits. "attempt" consumes the credit
// before the model call and never refunds it; "success" refunds the credit
// when the pipeline aborts after the decrement.
const (
	ChargeOnAttempt = "attempt"
	ChargeOnSuccess = "success"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerHost     string
	ServerPort     string
	FrontendOrigin string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT configuration
	JWTSecret      string
	GoogleClientID string

	// LLM provider
	OpenAIAPIKey string
	OpenAIAPIURL string
	OpenAIModel  string

	// Image enrichment
	PexelsAPIKey    string
	PexelsAPIURL    string
	TranslateAPIURL string

	// Optional S3 mirror for fetched images
	S3Bucket  string
	AWSRegion string

	// Quota ledger
	ChargePolicy         string
	DailyFreeGenerations int
}

// LoadConfig builds a Config from environment variables, reading an optional
// .env file first. Secrets may also be supplied via *_FILE variables pointing
// at mounted secret files.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:     getEnv("SERVER_PORT", "4000"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getSecret("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "foodia"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getSecret("REDIS_PASSWORD"),

		JWTSecret:      getSecret("JWT_SECRET"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		OpenAIAPIKey: getSecret("OPENAI_API_KEY"),
		OpenAIAPIURL: getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),

		PexelsAPIKey:    getSecret("PEXELS_KEY"),
		PexelsAPIURL:    getEnv("PEXELS_API_URL", "https://api.pexels.com/v1/search"),
		TranslateAPIURL: getEnv("TRANSLATE_API_URL", "https://translate.googleapis.com/translate_a/single"),

		S3Bucket:  getEnv("S3_BUCKET_NAME", ""),
		AWSRegion: getEnv("AWS_REGION", ""),

		ChargePolicy:         getEnv("CHARGE_POLICY", ChargeOnAttempt),
		DailyFreeGenerations: 3,
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value %q: %w", dbStr, err)
		}
		cfg.RedisDB = db
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ValidateConfig checks required values and enum fields.
func ValidateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ChargePolicy != ChargeOnAttempt && cfg.ChargePolicy != ChargeOnSuccess {
		return fmt.Errorf("CHARGE_POLICY must be %q or %q, got %q", ChargeOnAttempt, ChargeOnSuccess, cfg.ChargePolicy)
	}
	if cfg.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	return nil
}

// getEnv reads an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getSecret reads a value from KEY or, failing that, from the file named by
// KEY_FILE. Docker secrets are mounted as files.
func getSecret(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}
