// Package config provides unified configuration loading for soillab.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/soillab/internal/backup"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/sanitize"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user data directory under $HOME.
const DirName = ".soillab"

// SoillabConfig contains all soillab configuration settings.
type SoillabConfig struct {
	// Experiment configures the bench and the rounds.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	// Logging contains settings for operational logging and action tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Archive configures where finished runs are stored.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Backup configures snapshots of the archive.
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Report configures the record board.
	Report ReportConfig `json:"report" yaml:"report"`
}

// ExperimentConfig configures a session.
type ExperimentConfig struct {
	// Containers are the ids of the two containers on the bench.
	Containers []string `json:"containers" yaml:"containers"`

	// RoundSoils is the sample taken in round 1 and round 2.
	RoundSoils []models.SoilType `json:"round_soils" yaml:"round_soils"`

	// Seed seeds the simulated balance. 0 picks a fresh seed per session.
	Seed uint64 `json:"seed" yaml:"seed"`

	// AutoAcknowledge makes the MCP server acknowledge effects itself, for
	// clients that do not animate anything.
	AutoAcknowledge bool `json:"auto_acknowledge" yaml:"auto_acknowledge"`
}

// LoggingConfig configures soillab's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables action tracing to ~/.soillab/actions.jsonl.
	// "trace" additionally logs every emitted experiment event.
	Level string `json:"level" yaml:"level"`
}

// ArchiveConfig configures the run archive.
type ArchiveConfig struct {
	// Path is the SQLite database file. Empty means ~/.soillab/runs.db.
	// Supports ${VAR} syntax for env vars.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// BackupConfig configures archive backups and their rotation.
type BackupConfig struct {
	// Dir holds backup files. Empty means ~/.soillab/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// MaxCount keeps at most this many backups when rotating (0 = no limit).
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge also keeps every backup younger than this, e.g. "30d" or "2w".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// ReportConfig configures instruction and record board wording.
type ReportConfig struct {
	// Language is "en" (default) or "zh".
	Language string `json:"language" yaml:"language"`
}

// Default returns a SoillabConfig with sensible defaults.
func Default() *SoillabConfig {
	return &SoillabConfig{
		Experiment: ExperimentConfig{
			Containers: []string{"A", "B"},
			RoundSoils: []models.SoilType{models.SoilDry, models.SoilWet},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			MaxCount: 10,
			MaxAge:   "30d",
		},
		Report: ReportConfig{
			Language: "en",
		},
	}
}

// Dir returns ~/.soillab.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// Path returns ~/.soillab/config.yaml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.soillab/config.yaml -> environment variables
func Load() (*SoillabConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*SoillabConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Archive.Path = expandEnvVars(config.Archive.Path)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)

	return config, nil
}

// Save writes the configuration to path, creating its directory.
func Save(config *SoillabConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *SoillabConfig) Validate() error {
	ids := c.Experiment.Containers
	if len(ids) != 2 {
		return fmt.Errorf("experiment.containers must name exactly 2 containers, got %d", len(ids))
	}
	for _, id := range ids {
		if !sanitize.ValidContainerID(id) {
			return fmt.Errorf("invalid container id %q (letters, digits, '-' and '_', at most %d)", id, sanitize.MaxIDLength)
		}
	}
	if ids[0] == ids[1] {
		return fmt.Errorf("experiment.containers must be distinct, got %s twice", ids[0])
	}

	if n := len(c.Experiment.RoundSoils); n != 0 && n != 2 {
		return fmt.Errorf("experiment.round_soils must have 2 entries, got %d", n)
	}
	for i, s := range c.Experiment.RoundSoils {
		if s != models.SoilDry && s != models.SoilWet {
			return fmt.Errorf("invalid soil for round %d: %s (valid: dry, wet)", i+1, s)
		}
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup.max_count must not be negative, got %d", c.Backup.MaxCount)
	}
	if _, err := backup.ParseDuration(c.Backup.MaxAge); err != nil {
		return fmt.Errorf("invalid backup.max_age: %w", err)
	}

	switch c.Report.Language {
	case "", "en", "zh":
	default:
		return fmt.Errorf("invalid report language: %s (valid: en, zh)", c.Report.Language)
	}

	return nil
}

// ArchivePath returns the configured archive file or the default one.
func (c *SoillabConfig) ArchivePath() (string, error) {
	if c.Archive.Path != "" {
		return c.Archive.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// BackupDir returns the configured backup directory or the default one.
func (c *SoillabConfig) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// Retention returns the rotation rules of the backup settings.
func (c *SoillabConfig) Retention() (backup.Retention, error) {
	age, err := backup.ParseDuration(c.Backup.MaxAge)
	if err != nil {
		return backup.Retention{}, err
	}
	return backup.Retention{MaxCount: c.Backup.MaxCount, MaxAge: age}, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SoillabConfig) {
	if v := os.Getenv("SOILLAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SOILLAB_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Experiment.Seed = n
		}
	}

	if v := os.Getenv("SOILLAB_ARCHIVE_PATH"); v != "" {
		config.Archive.Path = expandEnvVars(v)
	}

	if v := os.Getenv("SOILLAB_AUTO_ACK"); v != "" {
		config.Experiment.AutoAcknowledge = v == "true" || v == "1"
	}

	if v := os.Getenv("SOILLAB_LANGUAGE"); v != "" {
		config.Report.Language = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
