// Package config handles application configuration.
//
// Go Pattern: Configuration via environment variables with sensible defaults.
// A struct holds the values and Load fills it from the environment. An
// optional .env file is read first so local development needs no exports.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-jwt-secret-change-in-production"

// DefaultCORSOrigin is the frontend dev server.
const DefaultCORSOrigin = "http://localhost:5173"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    string
	GinMode string // "debug", "release", or "test"
	AppEnv  string // "development" or "production"
	LogFile string

	// Database is optional; chat history and the run log are skipped without it.
	DatabaseURL    string
	MigrationsPath string

	// Gemini
	GeminiAPIKey       string
	GeminiModel        string
	GeminiPodcastModel string

	// Azure Speech
	AzureSpeechKey    string
	AzureSpeechRegion string
	AzureSpeechVoice  string

	// Browser viewer SDK client ids
	ViewerClientIDLocal string
	ViewerClientIDProd  string

	// Analysis backend
	OutlineBaseURL  string
	AnalysisBaseURL string
	BackendTimeout  time.Duration

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Worker settings
	WorkerCount  int
	JobQueueSize int

	// Limits
	RateLimitPerHour int
	MaxUploadBytes   int64

	// CORS
	AllowedOrigins []string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		AppEnv:  getEnv("APP_ENV", "development"),
		LogFile: getEnv("LOG_FILE", "logs/docsight.log"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiPodcastModel: getEnv("GEMINI_PODCAST_MODEL", "gemini-2.5-flash"),

		AzureSpeechKey:    getEnv("AZURE_SPEECH_KEY", ""),
		AzureSpeechRegion: getEnv("AZURE_SPEECH_REGION", ""),
		AzureSpeechVoice:  getEnv("AZURE_SPEECH_VOICE", "en-US-AriaNeural"),

		ViewerClientIDLocal: getEnv("VIEWER_CLIENT_ID_LOCAL", ""),
		ViewerClientIDProd:  getEnv("VIEWER_CLIENT_ID_PROD", ""),

		OutlineBaseURL:  getEnv("OUTLINE_BASE_URL", "http://localhost:8000"),
		AnalysisBaseURL: getEnv("ANALYSIS_BASE_URL", "http://localhost:8001"),
		BackendTimeout:  time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 120)) * time.Second,

		JWTSecret:  getEnv("JWT_SECRET", defaultJWTSecret),
		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,

		WorkerCount:  getEnvInt("WORKER_COUNT", 4),
		JobQueueSize: getEnvInt("JOB_QUEUE_SIZE", 100),

		RateLimitPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 600),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,

		// CORS: in production, set this to your frontend URL
		AllowedOrigins: []string{
			getEnv("CORS_ORIGIN", DefaultCORSOrigin),
		},
	}

	// In release mode, we refuse to start with the default secret.
	if cfg.GinMode == "release" && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET must be set in production; refusing to start with default secret")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	return cfg, nil
}

// ViewerClientID returns the viewer SDK client id for this deployment.
func (c *Config) ViewerClientID() string {
	if c.Production() {
		return c.ViewerClientIDProd
	}
	return c.ViewerClientIDLocal
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// getEnv reads an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt reads an integer environment variable with a fallback.
func getEnvInt(key string, fallback int) int {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return val
}
