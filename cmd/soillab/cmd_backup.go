package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/soillab/internal/backup"
	"github.com/nvandessel/soillab/internal/config"
	"github.com/nvandessel/soillab/internal/pathutil"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the run archive to a compressed file",
		Long: `Write every archived run to a checksummed, gzip-compressed backup file.

Default location: ~/.soillab/backups/soillab-backup-YYYYMMDD-HHMMSS.json.gz
Older backups are rotated according to backup.max_count and backup.max_age.

Examples:
  soillab backup
  soillab backup --output ./before-cleanup.json.gz
  soillab backup list
  soillab backup verify <file>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := cfg.BackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			if outputPath == "" {
				outputPath = backup.GeneratePath(dir, time.Now())
			} else if err := checkBackupPath(dir, outputPath); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			header, err := backup.Backup(cmd.Context(), runs, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			rotated, err := rotateBackups(cfg, filepath.Dir(outputPath))
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to rotate backups: %v\n", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if rotated == nil {
					rotated = []string{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":      outputPath,
					"run_count": header.RunCount,
					"checksum":  header.Checksum,
					"rotated":   rotated,
				})
			}

			fmt.Fprintf(out, "Backup created: %d runs\n", header.RunCount)
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(rotated) > 0 {
				fmt.Fprintf(out, "  Rotated: %d old backups removed\n", len(rotated))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path (default: timestamped file in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

// rotateBackups applies the configured retention to dir.
func rotateBackups(cfg *config.SoillabConfig, dir string) ([]string, error) {
	retention, err := cfg.Retention()
	if err != nil {
		return nil, err
	}
	return backup.Rotate(dir, retention, time.Now())
}

// checkBackupPath confines path to the backup directory or the working
// directory.
func checkBackupPath(backupDir, path string) error {
	wd, _ := os.Getwd()
	return pathutil.ValidatePath(path, pathutil.BackupDirs(backupDir, wd))
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups with metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := cfg.BackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			backups, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}

			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var total int64
			for _, b := range backups {
				total += b.Size
				fmt.Fprintf(out, "  %s  %8s  %3d runs  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
					formatBytes(b.Size),
					b.RunCount,
					filepath.Base(b.Path),
				)
			}
			fmt.Fprintf(out, "Total: %d backups, %s\n", len(backups), formatBytes(total))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]
			out := cmd.OutOrStdout()

			verr := backup.VerifyChecksum(path)
			if jsonOut {
				result := map[string]interface{}{
					"file":  path,
					"valid": verr == nil,
				}
				if verr != nil {
					result["error"] = verr.Error()
				}
				if err := json.NewEncoder(out).Encode(result); err != nil {
					return err
				}
				if verr != nil {
					return fmt.Errorf("checksum verification failed")
				}
				return nil
			}

			if verr != nil {
				fmt.Fprintf(out, "FAILED: %v\n", verr)
				fmt.Fprintf(out, "  File: %s\n", path)
				return fmt.Errorf("checksum verification failed")
			}
			fmt.Fprintln(out, "OK: checksum verified")
			fmt.Fprintf(out, "  File: %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore archived runs from a backup file",
		Long: `Restore archived runs from a backup file.

Modes:
  merge   - Keep runs already archived under the same id (default)
  replace - Overwrite them with the backed-up copy

Examples:
  soillab restore ~/.soillab/backups/soillab-backup-20260206-120000.json.gz
  soillab restore backup.json.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")
			path := args[0]

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := cfg.BackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			if err := checkBackupPath(dir, path); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			result, err := backup.Restore(cmd.Context(), runs, path, mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"file":     path,
					"mode":     mode,
					"restored": result.Restored,
					"skipped":  result.Skipped,
				})
			}
			fmt.Fprintf(out, "Restored %d runs (%d skipped, mode %s)\n", result.Restored, result.Skipped, mode)
			return nil
		},
	}

	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")

	return cmd
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
