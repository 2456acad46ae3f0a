// Package config provides configuration loading and validation.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// CORS
	AllowedOrigins []string

	// Rate limiting (per requester)
	RateLimitRPM   int
	RateLimitBurst int

	// HTTP edge rate limiting (per IP)
	EdgeRateLimitRPM   int
	EdgeRateLimitBurst int

	// Concurrency
	MaxConcurrentDownloads int
	MaxConcurrentJobs      int
	MaxFetchInFlight       int

	// Transfers
	MaxFileSize    int64
	RequestTimeout time.Duration
	BatchTimeout   time.Duration

	// Scraping
	CacheTTL      time.Duration
	RetryAttempts int
	MaxStoryItems int

	// Processing
	FFmpegPath     string
	ProcessTimeout time.Duration

	// R2 result storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	R2MaxFileAge      time.Duration
	R2CleanupInterval time.Duration

	// Inline delivery: files above this size go to R2 instead of the chat
	// attachment path.
	MaxInlineSize int64

	// Cleanup
	LocalMaxAge          time.Duration
	LocalCleanupInterval time.Duration

	// Paths
	TempDir string
	DataDir string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		// Server
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// CORS
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		// Rate limiting
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 30),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),

		EdgeRateLimitRPM:   getEnvInt("EDGE_RATE_LIMIT_RPM", 60),
		EdgeRateLimitBurst: getEnvInt("EDGE_RATE_LIMIT_BURST", 10),

		// Concurrency
		MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", 5),
		MaxConcurrentJobs:      getEnvInt("MAX_CONCURRENT_JOBS", 5),
		MaxFetchInFlight:       getEnvInt("MAX_FETCH_IN_FLIGHT", 10),

		// Transfers
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT", 30)) * time.Second,
		BatchTimeout:   time.Duration(getEnvInt("BATCH_TIMEOUT", 300)) * time.Second,

		// Scraping
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL", 300)) * time.Second,
		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", 3),
		MaxStoryItems: getEnvInt("MAX_STORY_ITEMS", 10),

		// Processing
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		ProcessTimeout: time.Duration(getEnvInt("PROCESS_TIMEOUT", 120)) * time.Second,

		// R2
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),
		R2MaxFileAge:      time.Duration(getEnvInt("R2_MAX_FILE_AGE", 60)) * time.Minute,
		R2CleanupInterval: time.Duration(getEnvInt("R2_CLEANUP_INTERVAL", 30)) * time.Minute,

		MaxInlineSize: getEnvInt64("MAX_INLINE_SIZE", 52428800), // 50MB

		// Cleanup
		LocalMaxAge:          time.Duration(getEnvInt("LOCAL_MAX_AGE", 24*60)) * time.Minute,
		LocalCleanupInterval: time.Duration(getEnvInt("LOCAL_CLEANUP_INTERVAL", 30)) * time.Minute,

		// Paths
		TempDir: getEnv("TEMP_DIR", "./tmp"),
		DataDir: getEnv("DATA_DIR", "./data"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
