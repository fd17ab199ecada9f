package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvandessel/soillab/internal/simulation"
	"github.com/nvandessel/soillab/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a scripted session",
		Long: `Run a whole session from a YAML script, acknowledging every effect as
soon as it is issued, and print the record board.

Without --script the standard script is used: both rounds performed
correctly with the configured containers.

Examples:
  soillab run                              # Standard session, random seed
  soillab run --seed 7                     # Reproducible readings
  soillab run --script session.yaml --save # Replay a script and archive it
  soillab run --stop-on-reject --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			scriptPath, _ := cmd.Flags().GetString("script")
			seed, _ := cmd.Flags().GetUint64("seed")
			save, _ := cmd.Flags().GetBool("save")
			stopOnReject, _ := cmd.Flags().GetBool("stop-on-reject")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var script simulation.Script
			if scriptPath != "" {
				script, err = simulation.LoadScript(scriptPath)
				if err != nil {
					return err
				}
			} else {
				ids := cfg.Experiment.Containers
				script = simulation.StandardScript(ids[0], ids[1])
			}

			logger := newLogger(cfg)
			trace := newTrace(cfg)
			defer trace.Close()

			opts := labOptions(cfg, seed)
			opts.Logger = logger
			opts.Trace = trace

			runner := simulation.NewRunner(opts)
			runner.StopOnReject = stopOnReject

			res, runErr := runner.Run(cmd.Context(), script)
			if runErr != nil && !errors.Is(runErr, simulation.ErrRejected) {
				return fmt.Errorf("run failed: %w", runErr)
			}

			var runID string
			if save && res.Ended() {
				runs, err := openArchive(cfg)
				if err != nil {
					return err
				}
				defer runs.Close()

				run := store.NewRun(res.Seed, res.Language, res.Rounds[0], res.Rounds[1], res.RecordText)
				runID, err = runs.SaveRun(cmd.Context(), run)
				if err != nil {
					return fmt.Errorf("failed to archive run: %w", err)
				}
				logger.Info("run archived", "id", runID, "path", runs.Path())
			}

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"result": res,
					"ended":  res.Ended(),
					"run_id": runID,
				}); err != nil {
					return err
				}
				return runErr
			}

			printResult(cmd, res, runID)
			return runErr
		},
	}

	cmd.Flags().String("script", "", "YAML script to replay (default: the standard two-round script)")
	cmd.Flags().Uint64("seed", 0, "Seed for the simulated balance (0 uses the configured seed or a random one)")
	cmd.Flags().Bool("save", false, "Archive the run if it reaches the end")
	cmd.Flags().Bool("stop-on-reject", false, "Stop at the first refused action")

	return cmd
}

func printResult(cmd *cobra.Command, res simulation.Result, runID string) {
	out := cmd.OutOrStdout()

	name := valueOrDefault(res.Name, "script")
	fmt.Fprintf(out, "Session %q (seed %d)\n", name, res.Seed)
	fmt.Fprintf(out, "  %d actions performed, %d effects, %d refused\n",
		res.Performed, res.Effects, len(res.Rejections))
	for _, r := range res.Rejections {
		fmt.Fprintf(out, "  refused #%d %s at %s: %s\n", r.Index, r.Action, r.Step, r.Reason)
	}

	if res.Ended() {
		fmt.Fprintln(out, "  ended: yes")
	} else {
		fmt.Fprintf(out, "  ended: no (stopped at %s)\n", res.Final.Step)
	}

	for i, r := range res.Rounds {
		fmt.Fprintln(out, formatRound(i+1, r))
	}

	if res.RecordText != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.RecordText)
	}
	if runID != "" {
		fmt.Fprintf(out, "\nArchived as %s\n", runID)
	}
}
