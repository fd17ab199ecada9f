package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvandessel/soillab/internal/steps"
	"github.com/spf13/cobra"
)

func newStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the steps of a round",
		Long: `List every step of a round in order, with its instruction and the
interactions that perform it.

Examples:
  soillab steps
  soillab steps --lang zh
  soillab steps --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			lang, _ := cmd.Flags().GetString("lang")
			if lang == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				lang = cfg.Report.Language
			}

			type stepEntry struct {
				Index       int      `json:"index"`
				Name        string   `json:"name"`
				Instruction string   `json:"instruction"`
				Highlight   string   `json:"highlight,omitempty"`
				Accepts     []string `json:"accepts"`
			}
			var entries []stepEntry
			for _, d := range steps.All() {
				if d.Step == steps.NotStarted {
					continue
				}
				e := stepEntry{
					Index:       int(d.Step),
					Name:        d.Name,
					Instruction: steps.Instruction(d.Step, lang),
					Highlight:   d.Highlight.String(),
				}
				for _, in := range d.Accepts {
					e.Accepts = append(e.Accepts, in.Tag.String()+"/"+in.Kind.String())
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"steps": entries,
					"count": len(entries),
				})
			}

			for _, e := range entries {
				fmt.Fprintf(out, "%2d. %-30s %s\n", e.Index, e.Name, strings.Join(e.Accepts, ", "))
				fmt.Fprintf(out, "    %s\n", e.Instruction)
			}
			fmt.Fprintf(out, "\n%d steps per round\n", len(entries))
			return nil
		},
	}

	cmd.Flags().String("lang", "", "Instruction language: en or zh (default from config)")

	return cmd
}
