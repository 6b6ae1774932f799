package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the metroline server and tools.
type Config struct {
	// HTTP
	Addr        string        `validate:"required"`
	CORSOrigins []string      `validate:"min=1,dive,required"`
	SessionTTL  time.Duration `validate:"gt=0"`

	// Route catalog
	DatabaseURL string `validate:"required"`
	RouteFile   string

	// Engine
	SegmentDuration time.Duration `validate:"gt=0"`
	DwellDuration   time.Duration `validate:"gt=0"`

	// Logging
	LogLevel  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads an optional .env file, then environment variables with defaults,
// and validates the result.
func Load() (*Config, error) {
	// A missing .env file is expected outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		// HTTP
		Addr:        getEnv("METROLINE_ADDR", ":8080"),
		CORSOrigins: getEnvList("METROLINE_CORS_ORIGINS", []string{"http://localhost:5173"}),

		// Route catalog
		DatabaseURL: getEnv("METROLINE_DATABASE_URL", "data/metroline.db"),
		RouteFile:   getEnv("METROLINE_ROUTE_FILE", ""),

		// Engine
		SegmentDuration: time.Duration(getEnvInt("METROLINE_SEGMENT_MS", 5000)) * time.Millisecond,
		DwellDuration:   time.Duration(getEnvInt("METROLINE_DWELL_MS", 5000)) * time.Millisecond,

		// Logging
		LogLevel:  strings.ToLower(getEnv("METROLINE_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("METROLINE_LOG_FORMAT", "text")),
	}

	ttl, err := getEnvDuration("METROLINE_SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = ttl

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

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

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid config: %s: %w", key, err)
	}
	return d, nil
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
