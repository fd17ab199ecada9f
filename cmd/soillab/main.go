package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soillab",
		Short: "Soil moisture lab - a guided drying-oven experiment",
		Long: `soillab runs the soil moisture content experiment: two rounds of
weighing an empty container, weighing it with a wet sample, drying it in the
oven, cooling it in the desiccator and weighing it again.

A session can be played step by step, replayed from a script, or driven by
an agent over MCP. Finished runs are archived in ~/.soillab/runs.db.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.soillab/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newStepsCmd(),
		newRunCmd(),
		newPlayCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newExportCmd(),
		newImportCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
