// Package config loads and validates the service configuration. Each
// section lives in its own file with its defaults next to it; the intake
// source definitions (per-client configurations) load separately via
// LoadSources so they can be hot-reloaded without restarting the service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// Log defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Scheduler defaults
	DefaultSchedulerTickSeconds   = 60
	DefaultSchedulerRetentionDays = 30
	DefaultSchedulerSQLiteDBPath  = "database/filesentry.db"

	// Intake defaults
	DefaultIntakeSourcesFile          = "sources.yaml"
	DefaultIntakeCallTimeoutSecs      = 30
	DefaultIntakeMaxConcurrent        = 8
	DefaultIntakeMaxMemoryUsedPercent = 90.0

	// Storage defaults
	DefaultStorageParquetBasePath  = "database"
	DefaultStorageCompressionCodec = "zstd"

	// Metrics defaults
	DefaultMetricsListenAddr = ":9090"
)

// GlobalConfig is the root of the service configuration file.
type GlobalConfig struct {
	LogConfig       LogConfig       `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	SchedulerConfig SchedulerConfig `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	IntakeConfig    IntakeConfig    `json:"intake_config,omitempty" yaml:"intake_config,omitempty"`
	StorageConfig   StorageConfig   `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	MetricsConfig   MetricsConfig   `json:"metrics_config,omitempty" yaml:"metrics_config,omitempty"`
}

// NewDefaultGlobalConfig creates a config with every section defaulted.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:       NewDefaultLogConfig(),
		SchedulerConfig: NewDefaultSchedulerConfig(),
		IntakeConfig:    NewDefaultIntakeConfig(),
		StorageConfig:   NewDefaultStorageConfig(),
		MetricsConfig:   NewDefaultMetricsConfig(),
	}
}

// LoadGlobalConfig loads configuration from providedPath or the default
// locations resolved by GetConfigPath. Both YAML and JSON are supported;
// missing sections keep their defaults. No file found is not an error, the
// defaults apply.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		logger.Info().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, err
	}

	logger.Info().Str("path", filePath).Msg("Config file loaded")
	return cfg, nil
}

func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	switch filepath.Ext(filePath) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config %s: %w", filePath, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", filePath, err)
		}
	}
	return nil
}
