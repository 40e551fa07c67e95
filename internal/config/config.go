package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL string
	RedisURL    string
	Env         string
	Port        string
	LogLevel    string
	LogFormat   string

	// Speech-to-text provider
	TranscribeURL      string
	TranscribeAPIKey   string
	TranscribeMaxBytes int64

	// LLM provider used for timeline generation and task extraction
	LLMURL    string
	LLMAPIKey string
	LLMModel  string

	// ProviderTimeout bounds each outbound provider call.
	ProviderTimeout time.Duration

	// SweepInterval / SweepStaleAfter control the stale-run sweeper.
	SweepInterval   string
	SweepStaleAfter time.Duration

	WorkerConcurrency int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		Env:         getEnvWithDefault("ENV", "development"),
		Port:        getEnvWithDefault("PORT", "8080"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("LOG_FORMAT", "text"),

		TranscribeURL:      os.Getenv("TRANSCRIBE_URL"),
		TranscribeAPIKey:   os.Getenv("TRANSCRIBE_API_KEY"),
		TranscribeMaxBytes: getEnvInt64("TRANSCRIBE_MAX_BYTES", 100<<20),

		LLMURL:    os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey: os.Getenv("LLM_API_KEY"),
		LLMModel:  getEnvWithDefault("LLM_MODEL", "gemini-pro"),

		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 5*time.Minute),

		SweepInterval:   getEnvWithDefault("SWEEP_INTERVAL", "@every 5m"),
		SweepStaleAfter: getEnvDuration("SWEEP_STALE_AFTER", 15*time.Minute),

		WorkerConcurrency: int(getEnvInt64("WORKER_CONCURRENCY", 5)),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
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
