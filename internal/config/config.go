// Package config provides configuration loading for the table extraction service.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Empty-page policies for the extraction engine.
const (
	EmptyPageSkip  = "skip"
	EmptyPageAbort = "abort"
)

// Job identifier strategies.
const (
	IDStrategyTimestamp = "timestamp"
	IDStrategyUUID      = "uuid"
)

// Config holds all configuration for the service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	CORSOrigins      []string      `yaml:"cors_origins"`
}

// StorageConfig holds the filesystem layout.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"` // originals, one subdirectory per job
	OutputDir string `yaml:"output_dir"` // status records and CSV artifacts, one subdirectory per job
}

// ExtractionConfig holds engine and worker pool settings.
type ExtractionConfig struct {
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue_size"`
	JobTimeout       time.Duration `yaml:"job_timeout"` // 0 disables the per-job limit
	EmptyPagePolicy  string        `yaml:"empty_page_policy"`
	StrictValidation bool          `yaml:"strict_validation"`
	SniffBytes       int           `yaml:"sniff_bytes"`
	IDStrategy       string        `yaml:"id_strategy"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   60 * time.Second,
			GracefulShutdown: 30 * time.Second,
			MaxUploadBytes:   64 << 20,
			CORSOrigins:      []string{"*"},
		},
		Storage: StorageConfig{
			UploadDir: "uploads/pdf",
			OutputDir: "uploads/csv",
		},
		Extraction: ExtractionConfig{
			Workers:          4,
			QueueSize:        64,
			EmptyPagePolicy:  EmptyPageSkip,
			StrictValidation: true,
			SniffBytes:       1024,
			IDStrategy:       IDStrategyTimestamp,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "pdf-tables",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Storage.UploadDir == "" || c.Storage.OutputDir == "" {
		return fmt.Errorf("upload_dir and output_dir are required")
	}

	if c.Extraction.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Extraction.Workers)
	}

	if c.Extraction.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.Extraction.QueueSize)
	}

	if c.Extraction.JobTimeout < 0 {
		return fmt.Errorf("job_timeout must not be negative")
	}

	if c.Extraction.EmptyPagePolicy != EmptyPageSkip && c.Extraction.EmptyPagePolicy != EmptyPageAbort {
		return fmt.Errorf("invalid empty_page_policy: %s", c.Extraction.EmptyPagePolicy)
	}

	if c.Extraction.IDStrategy != IDStrategyTimestamp && c.Extraction.IDStrategy != IDStrategyUUID {
		return fmt.Errorf("invalid id_strategy: %s", c.Extraction.IDStrategy)
	}

	if c.Extraction.SniffBytes < 16 {
		return fmt.Errorf("sniff_bytes must be at least 16, got %d", c.Extraction.SniffBytes)
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Capacity returns how many jobs may be queued or running at once.
func (c *Config) Capacity() int {
	return c.Extraction.Workers + c.Extraction.QueueSize
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v, ok := envInt("SERVER_PORT"); ok {
		cfg.Server.Port = v
	}

	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Storage.OutputDir = v
	}

	if v, ok := envInt("EXTRACT_WORKERS"); ok {
		cfg.Extraction.Workers = v
	}

	if v, ok := envInt("EXTRACT_QUEUE_SIZE"); ok {
		cfg.Extraction.QueueSize = v
	}

	if v := os.Getenv("EXTRACT_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extraction.JobTimeout = d
		}
	}

	if v := os.Getenv("EMPTY_PAGE_POLICY"); v != "" {
		cfg.Extraction.EmptyPagePolicy = strings.ToLower(v)
	}

	if v := os.Getenv("JOB_ID_STRATEGY"); v != "" {
		cfg.Extraction.IDStrategy = strings.ToLower(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
