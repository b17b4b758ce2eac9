package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"godrift/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	AI         AIConfig
	Server     ServerConfig
	Experiment ExperimentConfig
	Paths      PathConfig
}

// DatabaseConfig holds database connection settings. The Postgres ledger is
// optional; when URL is empty the JSON-file ledger is the only sink.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// AIConfig holds AI/LLM related settings
type AIConfig struct {
	OpenAIKey   string
	OpenAIModel string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// ExperimentConfig holds batch experiment settings
type ExperimentConfig struct {
	IntensityLevels []float64
	SamplesPerLevel int
	BaseSeed        int64
	MaxRetries      int
	BackoffBase     time.Duration
	MaxConcurrent   int
	BootstrapIters  int
}

// PathConfig holds file system paths
type PathConfig struct {
	LedgerDir string
	ExcelFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		AI: AIConfig{
			OpenAIKey:   getEnvOrDefault("OPENAI_API_KEY", ""),
			OpenAIModel: getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			MaxTokens:   getEnvIntOrDefault("MAX_TOKENS", 2000),
			Temperature: getEnvFloatOrDefault("TEMPERATURE", 0.3),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		Experiment: ExperimentConfig{
			IntensityLevels: getEnvFloatsOrDefault("INTENSITY_LEVELS", []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}),
			SamplesPerLevel: getEnvIntOrDefault("SAMPLES_PER_LEVEL", 3),
			BaseSeed:        int64(getEnvIntOrDefault("BASE_SEED", 42)),
			MaxRetries:      getEnvIntOrDefault("MAX_RETRIES", 3),
			BackoffBase:     getEnvDurationOrDefault("BACKOFF_BASE", 500*time.Millisecond),
			MaxConcurrent:   getEnvIntOrDefault("MAX_CONCURRENT", 4),
			BootstrapIters:  getEnvIntOrDefault("BOOTSTRAP_ITERATIONS", 10000),
		},
		Paths: PathConfig{
			LedgerDir: getEnvOrDefault("LEDGER_DIR", "./ledger"),
			ExcelFile: getEnvOrDefault("EXCEL_FILE", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if len(config.Experiment.IntensityLevels) == 0 {
		return errors.ConfigInvalid("at least one intensity level is required")
	}
	for _, level := range config.Experiment.IntensityLevels {
		if level < 0 || level > 100 {
			return errors.ConfigInvalid("intensity levels must be within [0,100]")
		}
	}
	if config.Experiment.SamplesPerLevel < 1 {
		return errors.ConfigInvalid("samples per level must be at least 1")
	}
	if config.Experiment.MaxRetries < 0 {
		return errors.ConfigInvalid("max retries cannot be negative")
	}
	if config.Experiment.MaxConcurrent < 1 {
		return errors.ConfigInvalid("max concurrent must be at least 1")
	}
	if config.Paths.LedgerDir == "" {
		return errors.ConfigInvalid("ledger directory is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvFloatsOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
