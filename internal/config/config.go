package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultRequestTimeout = 15 * time.Second

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig

	// Session Configuration
	Session SessionConfig

	// Console Configuration
	Console ConsoleConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds remote API configuration
type APIConfig struct {
	URL            string        // base URL, e.g. http://127.0.0.1:8000
	RequestTimeout time.Duration // single deadline for one user action
}

// SessionConfig selects where the session record is kept
type SessionConfig struct {
	Backend string // keyring, file, sqlite, memory
	Dir     string // base directory for file and sqlite backends
}

// ConsoleConfig holds the local web console configuration
type ConsoleConfig struct {
	Addr            string
	AllowedOrigins  []string
	RefreshSchedule string // cron expression for token refresh, empty disables
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout := defaultRequestTimeout
	if raw := os.Getenv("USRADM_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid USRADM_TIMEOUT '%s': %w", raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid USRADM_TIMEOUT '%s': must be positive", raw)
		}
		timeout = d
	}

	var origins []string
	for _, origin := range strings.Split(getEnv("CONSOLE_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return &Config{
		API: APIConfig{
			URL:            strings.TrimRight(os.Getenv("USRADM_API_URL"), "/"),
			RequestTimeout: timeout,
		},
		Session: SessionConfig{
			Backend: os.Getenv("USRADM_SESSION_BACKEND"),
			Dir:     os.Getenv("USRADM_SESSION_DIR"),
		},
		Console: ConsoleConfig{
			Addr:            getEnv("CONSOLE_ADDR", "127.0.0.1:3000"),
			AllowedOrigins:  origins,
			RefreshSchedule: os.Getenv("CONSOLE_REFRESH_SCHEDULE"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
