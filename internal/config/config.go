// Package config loads application configuration from environment
// variables (REPORTLAB_ prefix) with an optional YAML file underneath.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Upload  UploadConfig  `yaml:"upload" envconfig:"UPLOAD"`
	Cache   CacheConfig   `yaml:"cache" envconfig:"CACHE"`
	Report  ReportConfig  `yaml:"report" envconfig:"REPORT"`
	Session SessionConfig `yaml:"session" envconfig:"SESSION"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/reportlab.log"`
}

// UploadConfig bounds what the upload endpoint accepts.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MAX_BYTES" default:"33554432"`
}

// CacheConfig controls the parsed-upload cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL" default:"30m"`
	MaxEntries int           `yaml:"max_entries" envconfig:"MAX_ENTRIES" default:"16"`
}

// ReportConfig controls chart rendering and PDF assembly.
type ReportConfig struct {
	Title       string `yaml:"title" envconfig:"TITLE" default:"Data Analysis Report"`
	TopN        int    `yaml:"top_n" envconfig:"TOP_N" default:"20"`
	ChartWidth  int    `yaml:"chart_width" envconfig:"CHART_WIDTH" default:"1024"`
	ChartHeight int    `yaml:"chart_height" envconfig:"CHART_HEIGHT" default:"512"`
	ScratchDir  string `yaml:"scratch_dir" envconfig:"SCRATCH_DIR"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL" default:"1h"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"5m"`
}

// Load loads configuration from environment variables and, if present,
// a config.yaml file. Environment variables win.
func Load() (*Config, error) {
	var cfg Config

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	if err := envconfig.Process("REPORTLAB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configFilePath returns the first config file found in common locations.
func configFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}
	if c.Report.TopN < 1 || c.Report.TopN > 50 {
		return fmt.Errorf("report top N must be in [1, 50], got %d", c.Report.TopN)
	}
	if c.Report.ChartWidth < 100 || c.Report.ChartHeight < 100 {
		return fmt.Errorf("chart dimensions too small: %dx%d", c.Report.ChartWidth, c.Report.ChartHeight)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Report.ScratchDir == "" {
		c.Report.ScratchDir = os.TempDir()
	}
	return nil
}

// Default returns the default configuration, used by tests and the
// headless report generator.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/reportlab.log",
		},
		Upload: UploadConfig{
			MaxBytes: 32 << 20,
		},
		Cache: CacheConfig{
			TTL:        30 * time.Minute,
			MaxEntries: 16,
		},
		Report: ReportConfig{
			Title:       "Data Analysis Report",
			TopN:        20,
			ChartWidth:  1024,
			ChartHeight: 512,
			ScratchDir:  os.TempDir(),
		},
		Session: SessionConfig{
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
	}
}
