package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/soillab/internal/backup"
	"github.com/nvandessel/soillab/internal/config"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage soillab configuration",
		Long: `View and modify soillab configuration settings.

Configuration is stored in ~/.soillab/config.yaml.

Examples:
  soillab config list                            # Show all settings
  soillab config get report.language             # Get a specific setting
  soillab config set report.language zh          # Set a setting
  soillab config set experiment.containers C,D`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			path, _ := configPath(cmd)
			fmt.Fprintf(out, "Configuration (%s):\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Experiment Settings:")
			fmt.Fprintf(out, "  experiment.containers:        %s\n", strings.Join(cfg.Experiment.Containers, ","))
			fmt.Fprintf(out, "  experiment.round_soils:       %s\n", joinSoils(cfg.Experiment.RoundSoils))
			if cfg.Experiment.Seed == 0 {
				fmt.Fprintf(out, "  experiment.seed:              (random)\n")
			} else {
				fmt.Fprintf(out, "  experiment.seed:              %d\n", cfg.Experiment.Seed)
			}
			fmt.Fprintf(out, "  experiment.auto_acknowledge:  %v\n", cfg.Experiment.AutoAcknowledge)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:                %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Archive Settings:")
			fmt.Fprintf(out, "  archive.path:                 %s\n", valueOrDefault(cfg.Archive.Path, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Report Settings:")
			fmt.Fprintf(out, "  report.language:              %s\n", valueOrDefault(cfg.Report.Language, "en"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Backup Settings:")
			fmt.Fprintf(out, "  backup.dir:                   %s\n", valueOrDefault(cfg.Backup.Dir, "(default)"))
			fmt.Fprintf(out, "  backup.max_count:             %d\n", cfg.Backup.MaxCount)
			fmt.Fprintf(out, "  backup.max_age:               %s\n", valueOrDefault(cfg.Backup.MaxAge, "(none)"))

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": "key not found",
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Unknown configuration key: %s\n", key)
				}
				return nil
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			} else {
				fmt.Fprintf(out, "%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Error: %v\n", err)
				}
				return nil
			}

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			} else {
				fmt.Fprintf(out, "Set %s = %s\n", key, value)
			}

			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.SoillabConfig, key string) (interface{}, bool) {
	switch key {
	case "experiment.containers":
		return strings.Join(cfg.Experiment.Containers, ","), true
	case "experiment.round_soils":
		return joinSoils(cfg.Experiment.RoundSoils), true
	case "experiment.seed":
		return cfg.Experiment.Seed, true
	case "experiment.auto_acknowledge":
		return cfg.Experiment.AutoAcknowledge, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "archive.path":
		return cfg.Archive.Path, true
	case "report.language":
		return cfg.Report.Language, true
	case "backup.dir":
		return cfg.Backup.Dir, true
	case "backup.max_count":
		return cfg.Backup.MaxCount, true
	case "backup.max_age":
		return cfg.Backup.MaxAge, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.SoillabConfig, key, value string) error {
	switch key {
	case "experiment.containers":
		ids := splitList(value)
		if len(ids) != 2 {
			return fmt.Errorf("invalid containers: %s (need two comma-separated ids)", value)
		}
		if ids[0] == ids[1] {
			return fmt.Errorf("containers must be distinct, got %s twice", ids[0])
		}
		cfg.Experiment.Containers = ids
	case "experiment.round_soils":
		parts := splitList(value)
		if len(parts) != 2 {
			return fmt.Errorf("invalid round soils: %s (need two comma-separated soils)", value)
		}
		soils := make([]models.SoilType, 0, len(parts))
		for _, p := range parts {
			soil, err := models.ParseSoilType(p)
			if err != nil || soil == models.SoilNone {
				return fmt.Errorf("invalid soil: %s (valid: dry, wet)", p)
			}
			soils = append(soils, soil)
		}
		cfg.Experiment.RoundSoils = soils
	case "experiment.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s (must be a non-negative integer, 0 for random)", value)
		}
		cfg.Experiment.Seed = n
	case "experiment.auto_acknowledge":
		cfg.Experiment.AutoAcknowledge = value == "true" || value == "1"
	case "logging.level":
		if !logging.ValidLevel(value) {
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", value)
		}
		cfg.Logging.Level = value
	case "archive.path":
		cfg.Archive.Path = value
	case "report.language":
		switch value {
		case "en", "zh":
		default:
			return fmt.Errorf("invalid language: %s (valid: en, zh)", value)
		}
		cfg.Report.Language = value
	case "backup.dir":
		cfg.Backup.Dir = value
	case "backup.max_count":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid max count: %s (must be a non-negative integer, 0 for no limit)", value)
		}
		cfg.Backup.MaxCount = n
	case "backup.max_age":
		if _, err := backup.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid max age: %s (e.g. 30d, 2w, 720h)", value)
		}
		cfg.Backup.MaxAge = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinSoils(soils []models.SoilType) string {
	parts := make([]string, len(soils))
	for i, s := range soils {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
