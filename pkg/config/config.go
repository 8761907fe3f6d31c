// Package config loads server configuration from environment variables and
// engine parameter profiles from YAML files.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	Owner          string
	DatabaseDriver string
	DatabaseURL    string
	RedisAddr      string
	ParamsFile     string
	RateLimitRPS   int
	OTLPEndpoint   string
	Telemetry      bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	owner := os.Getenv("ENGINE_OWNER")
	if owner == "" {
		owner = "owner"
	}

	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to a local sqlite journal archive
		dbURL = "file:journal.db"
	}

	otlp := os.Getenv("OTLP_ENDPOINT")
	if otlp == "" {
		otlp = "localhost:4317"
	}

	return &Config{
		Port:           port,
		LogLevel:       logLevel,
		Owner:          owner,
		DatabaseDriver: driver,
		DatabaseURL:    dbURL,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		ParamsFile:     os.Getenv("ENGINE_PARAMS_FILE"),
		RateLimitRPS:   20,
		OTLPEndpoint:   otlp,
		Telemetry:      os.Getenv("TELEMETRY") == "true",
	}
}
