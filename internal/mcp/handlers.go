package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/soillab/internal/backup"
	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/sanitize"
	"github.com/nvandessel/soillab/internal/steps"
	"github.com/nvandessel/soillab/internal/store"
)

const (
	recordURI = "soillab://record"
	statusURI = "soillab://status"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// registerTools registers all lab MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_start",
		Description: "Start a new two-round soil moisture session (clears the bench)",
	}, s.handleLabStart)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_reset",
		Description: "Abandon the session and return the bench to its initial state",
	}, s.handleLabReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_status",
		Description: "Show the current step, its instruction, the bench and the record board",
	}, s.handleLabStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_steps",
		Description: "List every step of a round with the interactions it accepts",
	}, s.handleLabSteps)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_select_container",
		Description: "Choose the container for this round (first step only; round 2 needs a different one)",
	}, s.handleLabSelect)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_act",
		Description: "Report an interaction (tag + click/drag/drop); returns effects to play and acknowledge",
	}, s.handleLabAct)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_ack",
		Description: "Acknowledge that an effect finished playing so the session can continue",
	}, s.handleLabAck)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_history",
		Description: "List archived runs, newest first",
	}, s.handleLabHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lab_backup",
		Description: "Write a compressed backup of the run archive and rotate old backups",
	}, s.handleLabBackup)

	return nil
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         recordURI,
		Name:        "soillab-record",
		Description: "The record board of the current session: weighings and moisture content per round.",
		MIMEType:    "text/plain",
	}, s.handleRecordResource)

	s.server.AddResource(&sdk.Resource{
		URI:         statusURI,
		Name:        "soillab-status",
		Description: "The current session state as JSON, same shape as the lab_status tool.",
		MIMEType:    "application/json",
	}, s.handleStatusResource)

	return nil
}

func (s *Server) handleLabStart(ctx context.Context, req *sdk.CallToolRequest, args LabStartInput) (*sdk.CallToolResult, LabActOutput, error) {
	if err := s.limits.Check("lab_start"); err != nil {
		return nil, LabActOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orch.State() != experiment.StateRunning {
		seed := args.Seed
		if seed == 0 {
			seed = s.cfg.Experiment.Seed
		}
		if err := s.newSession(seed); err != nil {
			return nil, LabActOutput{}, err
		}
	}
	if err := s.orch.Start(); err != nil {
		return nil, s.refused(err), nil
	}
	s.logger.Info("session started over mcp", "seed", s.seed)
	return nil, LabActOutput{Accepted: true, Status: s.status()}, nil
}

func (s *Server) handleLabReset(ctx context.Context, req *sdk.CallToolRequest, args LabResetInput) (*sdk.CallToolResult, LabStatusOutput, error) {
	if err := s.limits.Check("lab_reset"); err != nil {
		return nil, LabStatusOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orch.Reset()
	s.runID = ""
	return nil, s.status(), nil
}

func (s *Server) handleLabStatus(ctx context.Context, req *sdk.CallToolRequest, args LabStatusInput) (*sdk.CallToolResult, LabStatusOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return nil, s.status(), nil
}

func (s *Server) handleLabSteps(ctx context.Context, req *sdk.CallToolRequest, args LabStepsInput) (*sdk.CallToolResult, LabStepsOutput, error) {
	out := LabStepsOutput{}
	for _, d := range steps.All() {
		if d.Step == steps.NotStarted {
			continue
		}
		out.Steps = append(out.Steps, stepView(d, s.cfg.Report.Language))
	}
	out.Count = len(out.Steps)
	return nil, out, nil
}

func (s *Server) handleLabSelect(ctx context.Context, req *sdk.CallToolRequest, args LabSelectInput) (*sdk.CallToolResult, LabActOutput, error) {
	id := sanitize.ContainerID(args.Container)
	if id == "" {
		return nil, LabActOutput{}, fmt.Errorf("'container' parameter is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.orch.SelectContainer(id); err != nil {
		return nil, s.refused(err), nil
	}
	return nil, LabActOutput{Accepted: true, Status: s.status()}, nil
}

func (s *Server) handleLabAct(ctx context.Context, req *sdk.CallToolRequest, args LabActInput) (*sdk.CallToolResult, LabActOutput, error) {
	if err := s.limits.Check("lab_act"); err != nil {
		return nil, LabActOutput{}, err
	}

	action, err := parseAction(args)
	if err != nil {
		return nil, LabActOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eff, err := s.orch.ReportAction(action)
	if err != nil {
		return nil, s.refused(err), nil
	}

	out := LabActOutput{Accepted: true}
	if err := s.settle(eff, &out); err != nil {
		return nil, LabActOutput{}, err
	}
	s.archiveIfEnded(ctx)
	out.Status = s.status()
	return nil, out, nil
}

func (s *Server) handleLabAck(ctx context.Context, req *sdk.CallToolRequest, args LabAckInput) (*sdk.CallToolResult, LabActOutput, error) {
	if err := s.limits.Check("lab_ack"); err != nil {
		return nil, LabActOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.orch.AcknowledgeEffectComplete(experiment.EffectHandle(args.Handle))
	if err != nil {
		return nil, s.refused(err), nil
	}

	out := LabActOutput{Accepted: true}
	if err := s.settle(next, &out); err != nil {
		return nil, LabActOutput{}, err
	}
	s.archiveIfEnded(ctx)
	out.Status = s.status()
	return nil, out, nil
}

func (s *Server) handleLabHistory(ctx context.Context, req *sdk.CallToolRequest, args LabHistoryInput) (*sdk.CallToolResult, LabHistoryOutput, error) {
	if err := s.limits.Check("lab_history"); err != nil {
		return nil, LabHistoryOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, LabHistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := LabHistoryOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, RunSummary{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
			Seed:       r.Seed,
			Language:   r.Language,
			Complete:   r.Complete(),
			Rounds:     r.Rounds[:],
			RecordText: r.RecordText,
		})
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

func (s *Server) handleLabBackup(ctx context.Context, req *sdk.CallToolRequest, args LabBackupInput) (*sdk.CallToolResult, LabBackupOutput, error) {
	if err := s.limits.Check("lab_backup"); err != nil {
		return nil, LabBackupOutput{}, err
	}

	dir, err := s.cfg.BackupDir()
	if err != nil {
		return nil, LabBackupOutput{}, err
	}
	retention, err := s.cfg.Retention()
	if err != nil {
		return nil, LabBackupOutput{}, err
	}

	path := backup.GeneratePath(dir, time.Now())
	header, err := backup.Backup(ctx, s.runs, path)
	if err != nil {
		return nil, LabBackupOutput{}, err
	}
	rotated, err := backup.Rotate(dir, retention, time.Now())
	if err != nil {
		s.logger.Warn("backup rotation failed", "dir", dir, "error", err)
	}
	s.logger.Info("archive backed up", "path", path, "runs", header.RunCount)

	out := LabBackupOutput{
		Path:     path,
		RunCount: header.RunCount,
		Checksum: header.Checksum,
		Rotated:  rotated,
	}
	if out.Rotated == nil {
		out.Rotated = []string{}
	}
	return nil, out, nil
}

// handleRecordResource returns the record board as plain text.
func (s *Server) handleRecordResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	s.mu.Lock()
	text := s.orch.RecordText()
	s.mu.Unlock()

	if text == "" {
		text = "No measurements recorded yet."
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: recordURI, MIMEType: "text/plain", Text: text},
		},
	}, nil
}

// handleStatusResource returns the session state as JSON.
func (s *Server) handleStatusResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	s.mu.Lock()
	status := s.status()
	s.mu.Unlock()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: statusURI, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func parseAction(args LabActInput) (experiment.Action, error) {
	tag, err := models.ParseSubjectTag(args.Tag)
	if err != nil {
		return experiment.Action{}, err
	}
	kind, err := models.ParseActionKind(args.Kind)
	if err != nil {
		return experiment.Action{}, err
	}
	a := experiment.Action{Tag: tag, Kind: kind, ContainerID: sanitize.ContainerID(args.Container)}
	if args.Soil != "" {
		soil, err := models.ParseSoilType(args.Soil)
		if err != nil {
			return experiment.Action{}, err
		}
		a.Soil = soil
	}
	return a, nil
}

// settle records eff in out. With auto-acknowledge on, it also completes
// eff and every follow-up.
func (s *Server) settle(eff *experiment.Effect, out *LabActOutput) error {
	for eff != nil {
		if !s.cfg.Experiment.AutoAcknowledge {
			out.Effects = append(out.Effects, *effectView(eff, false))
			return nil
		}
		next, err := s.orch.AcknowledgeEffectComplete(eff.Handle)
		if err != nil {
			return fmt.Errorf("auto-acknowledge %s: %w", eff, err)
		}
		out.Effects = append(out.Effects, *effectView(eff, true))
		eff = next
	}
	return nil
}

// archiveIfEnded saves the session once it has ended. Archive failures are
// logged, not reported to the client.
func (s *Server) archiveIfEnded(ctx context.Context) {
	if s.orch.State() != experiment.StateEnded || s.runID != "" {
		return
	}
	r1, r2 := s.orch.Records()
	run := store.NewRun(s.seed, s.cfg.Report.Language, r1, r2, s.orch.RecordText())
	id, err := s.runs.SaveRun(ctx, run)
	if err != nil {
		s.logger.Warn("failed to archive run", "error", err)
		return
	}
	s.runID = id
	s.logger.Info("run archived", "id", id)
}

func (s *Server) refused(err error) LabActOutput {
	return LabActOutput{Accepted: false, Reason: err.Error(), Status: s.status()}
}

func (s *Server) status() LabStatusOutput {
	snap := s.orch.Snapshot()
	out := LabStatusOutput{
		State:             string(snap.State),
		Round:             snap.Round,
		Step:              snap.Step,
		Instruction:       snap.Instruction,
		Highlight:         snap.Highlight,
		ShowsRecord:       snap.ShowsRecord,
		ShowsSkip:         snap.ShowsSkip,
		SelectedContainer: snap.SelectedContainer,
		ToolReady:         snap.ToolReady,
		Pending:           effectView(snap.Pending, false),
		BalanceReading:    snap.BalanceReading,
		Seed:              s.seed,
		Rounds:            snap.Rounds,
		RecordText:        snap.RecordText,
		RunID:             s.runID,
	}
	if out.Rounds == nil {
		out.Rounds = []ledger.RoundRecord{}
	}
	return out
}
