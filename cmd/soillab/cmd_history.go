package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/soillab/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long: `List archived runs, newest first.

Examples:
  soillab history
  soillab history --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if list == nil {
					list = []store.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  list,
					"count": len(list),
				})
			}

			if len(list) == 0 {
				fmt.Fprintln(out, "No archived runs.")
				return nil
			}

			fmt.Fprintf(out, "Archived runs (%s):\n", runs.Path())
			for _, r := range list {
				status := "complete"
				if !r.Complete() {
					status = "partial"
				}
				fmt.Fprintf(out, "  %s  %s  seed %-20d  %s  %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.ID,
					r.Seed,
					moistureSummary(r),
					status,
				)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			id := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.GetRun(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run not found: %s", id)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(run)
			}

			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  created:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  seed:     %d\n", run.Seed)
			fmt.Fprintf(out, "  language: %s\n", run.Language)
			for i, r := range run.Rounds {
				fmt.Fprintln(out, formatRound(i+1, r))
			}
			if run.RecordText != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, run.RecordText)
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived runs as JSONL",
		Long: `Write every archived run as one JSON object per line.

Examples:
  soillab export > runs.jsonl
  soillab export --output runs.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			n, err := store.ExportJSONL(cmd.Context(), runs, w)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", n, output)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import runs from a JSONL export",
		Long: `Import runs written by "soillab export". A run whose id is already
archived replaces it; lines that do not parse are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			imported, skipped, err := store.ImportJSONL(cmd.Context(), runs, f)
			if err != nil {
				return fmt.Errorf("import failed after %d runs: %w", imported, err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int{
					"imported": imported,
					"skipped":  skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs (%d lines skipped)\n", imported, skipped)
			return nil
		},
	}
}

func moistureSummary(r store.Run) string {
	s := ""
	for i, round := range r.Rounds {
		if i > 0 {
			s += "  "
		}
		if round.Complete {
			s += fmt.Sprintf("r%d %6.2f%%", i+1, round.MoistureContent)
		} else {
			s += fmt.Sprintf("r%d %7s", i+1, "-")
		}
	}
	return s
}
