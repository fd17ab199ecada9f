package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/soillab/internal/config"
	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/store"
	"github.com/spf13/cobra"
)

// loadConfig loads the file named by --config, or the default config with
// environment overrides, and validates it.
func loadConfig(cmd *cobra.Command) (*config.SoillabConfig, error) {
	cfg, err := readConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readConfig loads the configuration without validating it, so config
// commands can repair an invalid file.
func readConfig(cmd *cobra.Command) (*config.SoillabConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.SoillabConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// configPath returns the file config commands read and write.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.Path()
}

// newLogger writes leveled operational logs to stderr so stdout stays
// parseable.
func newLogger(cfg *config.SoillabConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// newTrace opens the action trace when the log level asks for one.
func newTrace(cfg *config.SoillabConfig) *logging.ActionTrace {
	dir, err := config.Dir()
	if err != nil {
		return nil
	}
	return logging.NewActionTrace(dir, cfg.Logging.Level)
}

// labOptions builds session options from cfg. seed overrides the configured
// seed when non-zero.
func labOptions(cfg *config.SoillabConfig, seed uint64) experiment.Options {
	if seed == 0 {
		seed = cfg.Experiment.Seed
	}
	var soils [ledger.Rounds]models.SoilType
	copy(soils[:], cfg.Experiment.RoundSoils)
	return experiment.Options{
		ContainerIDs: cfg.Experiment.Containers,
		RoundSoils:   soils,
		Seed:         seed,
		Language:     cfg.Report.Language,
	}
}

// openArchive opens the SQLite run archive configured in cfg.
func openArchive(cfg *config.SoillabConfig) (*store.SQLiteRunStore, error) {
	path, err := cfg.ArchivePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}
	runs, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return runs, nil
}

// formatRound renders one round record as a single line.
func formatRound(n int, r ledger.RoundRecord) string {
	if r.ContainerID == "" && r.EmptyWeight == 0 {
		return fmt.Sprintf("  round %d: not started", n)
	}
	line := fmt.Sprintf("  round %d: container %s, %s soil, empty %.2fg, wet %.2fg, dry %.2fg",
		n, valueOrDefault(r.ContainerID, "?"), r.SoilType, r.EmptyWeight, r.WetWeight, r.DryWeight)
	if r.Complete {
		line += fmt.Sprintf(", moisture %.2f%%", r.MoistureContent)
	}
	return line
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
