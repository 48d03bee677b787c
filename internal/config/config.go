package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leaderboard/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable selects which .env.<name> file is loaded.
const EnvironmentVariable = "LEADERBOARD_ENV"

const defaultEnvironment = "development"

// Load loads configuration from env files, a YAML file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Populate the process environment from .env files; real variables win
	loadEnvFiles(".")

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Environment returns the deployment environment name.
func Environment() string {
	if env := os.Getenv(EnvironmentVariable); env != "" {
		return env
	}
	return defaultEnvironment
}

// loadEnvFiles loads .env.<environment> and then .env from dir. godotenv never
// overwrites a variable that is already set, so the environment-specific file
// takes precedence over the shared one.
func loadEnvFiles(dir string) {
	files := []string{
		filepath.Join(dir, ".env."+Environment()),
		filepath.Join(dir, ".env"),
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn("Failed to load env file", "file", file, "error", err)
			continue
		}
		slog.Debug("Loaded env file", "file", file)
	}
}

var knownSections = map[string]bool{
	"server":        true,
	"storage":       true,
	"leaderboard":   true,
	"security":      true,
	"logging":       true,
	"metrics":       true,
	"observability": true,
}

// warnUnknownKeys logs a warning for each top-level key the service does not read.
// The service continues to start normally - these keys are ignored by the main decoder.
func warnUnknownKeys(data []byte) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return
	}
	for key := range raw {
		if !knownSections[key] {
			slog.Warn("Unknown config section is ignored", "config_key", key)
		}
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnUnknownKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		} else {
			slog.Warn("Ignoring invalid integer environment variable", "key", key, "value", v)
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		} else {
			slog.Warn("Ignoring invalid number environment variable", "key", key, "value", v)
		}
	}
}

func envDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		} else {
			slog.Warn("Ignoring invalid duration environment variable", "key", key, "value", v)
		}
	}
}

func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		*target = strings.ToLower(v) == "true"
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envList(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*target = items
	}
}

// loadFromEnvironment loads configuration from LEADERBOARD_* environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("LEADERBOARD_PORT", &config.Server.Port)
	envString("LEADERBOARD_HOST", &config.Server.Host)
	envDuration("LEADERBOARD_READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("LEADERBOARD_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("LEADERBOARD_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("LEADERBOARD_TLS_ENABLED", &config.Server.TLSEnabled)
	envString("LEADERBOARD_TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("LEADERBOARD_TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envBool("LEADERBOARD_CORS_ENABLED", &config.Server.CORS.Enabled)
	envList("LEADERBOARD_CORS_ALLOWED_ORIGINS", &config.Server.CORS.AllowedOrigins)

	// Storage configuration
	envString("LEADERBOARD_STORAGE_TYPE", &config.Storage.Type)
	envString("LEADERBOARD_STORAGE_PATH", &config.Storage.Path)
	envString("LEADERBOARD_DATABASE_DSN", &config.Storage.Database.DSN)
	envInt("LEADERBOARD_DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)

	// Leaderboard configuration
	envInt("LEADERBOARD_MAX_KEEP", &config.Leaderboard.MaxKeep)
	envInt("LEADERBOARD_TOP_N", &config.Leaderboard.TopN)
	envInt("LEADERBOARD_MAX_NAME_LENGTH", &config.Leaderboard.MaxNameLength)
	envFloat("LEADERBOARD_MAX_SCORE", &config.Leaderboard.MaxScore)
	envInt("LEADERBOARD_SUBMIT_LIMIT_CAPACITY", &config.Leaderboard.SubmitLimit.Capacity)
	envDuration("LEADERBOARD_SUBMIT_LIMIT_WINDOW", &config.Leaderboard.SubmitLimit.Window)

	// Security configuration
	envBool("LEADERBOARD_RATE_LIMIT_ENABLED", &config.Security.RateLimit.Enabled)
	envInt("LEADERBOARD_RATE_LIMIT_REQUESTS_PER_MINUTE", &config.Security.RateLimit.RequestsPerMinute)
	envInt("LEADERBOARD_RATE_LIMIT_BURST_SIZE", &config.Security.RateLimit.BurstSize)

	// Logging configuration
	envString("LEADERBOARD_LOG_LEVEL", &config.Logging.Level)
	envString("LEADERBOARD_LOG_FORMAT", &config.Logging.Format)
	envString("LEADERBOARD_LOG_OUTPUT", &config.Logging.Output)
	envString("LEADERBOARD_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	envBool("LEADERBOARD_METRICS_ENABLED", &config.Metrics.Enabled)
	envString("LEADERBOARD_METRICS_PATH", &config.Metrics.Path)
	envInt("LEADERBOARD_METRICS_PORT", &config.Metrics.Port)

	// Observability configuration
	envString("LEADERBOARD_SERVICE_NAME", &config.Observability.ServiceName)
	envBool("LEADERBOARD_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("LEADERBOARD_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("LEADERBOARD_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	envFloat("LEADERBOARD_TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	// Example TLS and CORS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"
	config.Server.CORS.AllowedOrigins = []string{"https://game.example.com"}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
