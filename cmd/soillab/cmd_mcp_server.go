package main

import (
	"fmt"

	"github.com/nvandessel/soillab/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the lab as an MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout. The client drives
one session with the lab_* tools and plays each returned effect before
acknowledging it with lab_ack. Finished sessions are archived.

Logs go to stderr; stdout carries only protocol messages.

Examples:
  soillab mcp-server
  soillab mcp-server --auto-ack     # Acknowledge effects server-side`,
		RunE: func(cmd *cobra.Command, args []string) error {
			autoAck, _ := cmd.Flags().GetBool("auto-ack")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if autoAck {
				cfg.Experiment.AutoAcknowledge = true
			}

			logger := newLogger(cfg)
			trace := newTrace(cfg)
			defer trace.Close()

			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "soillab",
				Version: version,
				Lab:     cfg,
				Runs:    runs,
				Logger:  logger,
				Trace:   trace,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "archive", runs.Path())
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Bool("auto-ack", false, "Acknowledge every effect as soon as it is issued")

	return cmd
}
