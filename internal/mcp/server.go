// Package mcp provides an MCP (Model Context Protocol) server that lets an
// agent or a thin client drive a soil moisture lab session.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/soillab/internal/config"
	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/ratelimit"
	"github.com/nvandessel/soillab/internal/store"
)

// Server wraps the MCP SDK server around one experiment session.
type Server struct {
	server *sdk.Server
	runs   store.RunStore
	cfg    *config.SoillabConfig
	logger *slog.Logger
	trace  *logging.ActionTrace
	limits *ratelimit.ToolLimiters

	// mu serializes every tool call; the orchestrator is single-threaded.
	mu    sync.Mutex
	orch  *experiment.Orchestrator
	seed  uint64
	runID string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "soillab")
	Version string // Server version

	// Lab configures sessions. Defaults to config.Default().
	Lab *config.SoillabConfig
	// Runs archives finished sessions. Defaults to an in-memory store. The
	// server owns it and closes it, also when NewServer fails.
	Runs   store.RunStore
	Logger *slog.Logger
	Trace  *logging.ActionTrace
	// RateLimits overrides ratelimit.DefaultToolLimits.
	RateLimits map[string]ratelimit.Limit
}

// NewServer creates a new MCP server with the lab tools registered and an
// idle session.
func NewServer(cfg *Config) (*Server, error) {
	labCfg := cfg.Lab
	if labCfg == nil {
		labCfg = config.Default()
	}
	if err := labCfg.Validate(); err != nil {
		if cfg.Runs != nil {
			cfg.Runs.Close()
		}
		return nil, fmt.Errorf("invalid lab config: %w", err)
	}
	runs := cfg.Runs
	if runs == nil {
		runs = store.NewInMemoryRunStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server: mcpServer,
		runs:   runs,
		cfg:    labCfg,
		logger: logger,
		trace:  cfg.Trace,
		limits: ratelimit.NewToolLimiters(cfg.RateLimits),
	}

	if err := s.newSession(labCfg.Experiment.Seed); err != nil {
		runs.Close()
		return nil, err
	}

	if err := s.registerTools(); err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if err := s.registerResources(); err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// newSession replaces the orchestrator with a fresh idle one. Callers hold
// mu or have exclusive access.
func (s *Server) newSession(seed uint64) error {
	seed = ledger.ResolveSeed(seed)

	var soils [ledger.Rounds]models.SoilType
	copy(soils[:], s.cfg.Experiment.RoundSoils)

	o, err := experiment.New(experiment.Options{
		ContainerIDs: s.cfg.Experiment.Containers,
		RoundSoils:   soils,
		Seed:         seed,
		Language:     s.cfg.Report.Language,
		Logger:       s.logger,
		Trace:        s.trace,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.orch = o
	s.seed = seed
	s.runID = ""
	return nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.serve(ctx, &sdk.StdioTransport{})

	s.runs.Close()

	return err
}

// serve runs the server on t until ctx is done. Cancellation is a clean
// shutdown, not an error.
func (s *Server) serve(ctx context.Context, t sdk.Transport) error {
	err := s.server.Run(ctx, t)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	return s.runs.Close()
}
