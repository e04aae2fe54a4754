package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Supported values of Source and StateBackend
const (
	SourceFS   = "fs"
	SourceHTTP = "http"

	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// Config holds all runtime configuration parameters
type Config struct {
	JobName           string   `json:"job_name" yaml:"job_name"`
	Source            string   `json:"source" yaml:"source"`
	Root              string   `json:"root" yaml:"root"`
	BatchLimit        int      `json:"batch_limit" yaml:"batch_limit"`
	ReservedMargin    int      `json:"reserved_margin" yaml:"reserved_margin"`
	DeadlineMs        int      `json:"deadline_ms" yaml:"deadline_ms"`
	RescheduleDelayMs int      `json:"reschedule_delay_ms" yaml:"reschedule_delay_ms"`
	RequestTimeoutMs  int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	DBPath            string   `json:"db_path" yaml:"db_path"`
	StateBackend      string   `json:"state_backend" yaml:"state_backend"`
	LevelDBPath       string   `json:"leveldb_path" yaml:"leveldb_path"`
	MetricsPath       string   `json:"metrics_path" yaml:"metrics_path"`
	MetricsAddr       string   `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel          string   `json:"log_level" yaml:"log_level"`
	Exclude           []string `json:"exclude" yaml:"exclude"`
}

// LoadConfig reads and validates configuration from a JSON or YAML file.
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.JobName == "" {
		cfg.JobName = "export"
	}
	if cfg.Source == "" {
		cfg.Source = SourceFS
	}
	if cfg.BatchLimit == 0 {
		cfg.BatchLimit = 250
	}
	if cfg.ReservedMargin == 0 {
		cfg.ReservedMargin = 3
	}
	if cfg.DeadlineMs == 0 {
		cfg.DeadlineMs = int((15 * time.Minute).Milliseconds())
	}
	if cfg.RescheduleDelayMs == 0 {
		cfg.RescheduleDelayMs = 5000
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "exporter.db"
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = BackendSQLite
	}
	if cfg.LevelDBPath == "" {
		cfg.LevelDBPath = "checkpoint.ldb"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if cfg.Root == "" {
		return fmt.Errorf("root is required")
	}
	if cfg.Source != SourceFS && cfg.Source != SourceHTTP {
		return fmt.Errorf("source must be %q or %q", SourceFS, SourceHTTP)
	}
	if cfg.StateBackend != BackendSQLite && cfg.StateBackend != BackendLevelDB {
		return fmt.Errorf("state_backend must be %q or %q", BackendSQLite, BackendLevelDB)
	}
	if cfg.BatchLimit < 1 {
		return fmt.Errorf("batch_limit must be >= 1")
	}
	if cfg.ReservedMargin < 0 {
		return fmt.Errorf("reserved_margin must be >= 0")
	}
	if cfg.DeadlineMs < 1000 {
		return fmt.Errorf("deadline_ms must be >= 1000")
	}
	if cfg.RescheduleDelayMs < 0 {
		return fmt.Errorf("reschedule_delay_ms must be >= 0")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for _, pattern := range cfg.Exclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Deadline is the wall-clock budget of one batch
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMs) * time.Millisecond
}

// RescheduleDelay is the wait between batches
func (c *Config) RescheduleDelay() time.Duration {
	return time.Duration(c.RescheduleDelayMs) * time.Millisecond
}

// RequestTimeout bounds one HTTP request of the http source
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Level returns the parsed log level
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
