package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/soillab/internal/backup"
	"github.com/nvandessel/soillab/internal/config"
	"github.com/nvandessel/soillab/internal/ratelimit"
	"github.com/nvandessel/soillab/internal/simulation"
	"github.com/nvandessel/soillab/internal/steps"
)

func autoAck(c *config.SoillabConfig) { c.Experiment.AutoAcknowledge = true }

func startSession(t *testing.T, server *Server) {
	t.Helper()
	_, out, err := server.handleLabStart(context.Background(), &sdk.CallToolRequest{}, LabStartInput{})
	if err != nil {
		t.Fatalf("handleLabStart failed: %v", err)
	}
	if !out.Accepted {
		t.Fatalf("start refused: %s", out.Reason)
	}
}

func act(t *testing.T, server *Server, in LabActInput) LabActOutput {
	t.Helper()
	result, out, err := server.handleLabAct(context.Background(), &sdk.CallToolRequest{}, in)
	if err != nil {
		t.Fatalf("handleLabAct(%+v) failed: %v", in, err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	return out
}

// playScript performs the standard session through the tools, acknowledging
// effects the way a client would when the server does not.
func playScript(t *testing.T, server *Server) LabActOutput {
	t.Helper()
	var last LabActOutput
	for i, a := range simulation.StandardScript("A", "B").Actions {
		in := LabActInput{Tag: string(a.Tag), Kind: string(a.Kind), Container: a.ContainerID}
		last = act(t, server, in)
		if !last.Accepted {
			t.Fatalf("action %d %+v refused at %s: %s", i+1, in, last.Status.Step, last.Reason)
		}
		for len(last.Effects) > 0 && !last.Effects[len(last.Effects)-1].Acknowledged {
			handle := last.Effects[len(last.Effects)-1].Handle
			_, ack, err := server.handleLabAck(context.Background(), &sdk.CallToolRequest{}, LabAckInput{Handle: handle})
			if err != nil || !ack.Accepted {
				t.Fatalf("ack %d failed: %v %s", handle, err, ack.Reason)
			}
			last = ack
		}
	}
	return last
}

func TestHandleLabStatus_Idle(t *testing.T) {
	server := setupTestServer(t, nil)

	_, out, err := server.handleLabStatus(context.Background(), &sdk.CallToolRequest{}, LabStatusInput{})
	if err != nil {
		t.Fatalf("handleLabStatus failed: %v", err)
	}
	if out.State != "idle" || out.Step != steps.NotStarted.String() {
		t.Errorf("status = %s at %s, want idle at %s", out.State, out.Step, steps.NotStarted)
	}
	if len(out.Rounds) != 2 {
		t.Errorf("len(Rounds) = %d, want 2", len(out.Rounds))
	}
}

func TestHandleLabStart(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	_, out, err := server.handleLabStart(ctx, &sdk.CallToolRequest{}, LabStartInput{Seed: 9})
	if err != nil {
		t.Fatalf("handleLabStart failed: %v", err)
	}
	if !out.Accepted || out.Status.State != "running" {
		t.Fatalf("start = %+v", out)
	}
	if out.Status.Seed != 9 {
		t.Errorf("Seed = %d, want 9", out.Status.Seed)
	}
	if out.Status.Step != steps.First.String() || out.Status.Round != 1 {
		t.Errorf("started at round %d %s", out.Status.Round, out.Status.Step)
	}
	if out.Status.Highlight != "Container" {
		t.Errorf("Highlight = %q, want Container", out.Status.Highlight)
	}

	_, again, err := server.handleLabStart(ctx, &sdk.CallToolRequest{}, LabStartInput{Seed: 10})
	if err != nil {
		t.Fatalf("second start errored: %v", err)
	}
	if again.Accepted || !strings.Contains(again.Reason, "already running") {
		t.Errorf("second start = accepted %v reason %q", again.Accepted, again.Reason)
	}
	if again.Status.Seed != 9 {
		t.Errorf("refused start changed the seed to %d", again.Status.Seed)
	}
}

func TestHandleLabAct_RejectedAction(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)

	out := act(t, server, LabActInput{Tag: "ContainerCap", Kind: "click"})
	if out.Accepted {
		t.Fatal("cap click at the first step should be refused")
	}
	if !strings.Contains(out.Reason, "invalid action") {
		t.Errorf("Reason = %q", out.Reason)
	}
	if out.Status.Step != steps.First.String() {
		t.Errorf("refused action moved the step to %s", out.Status.Step)
	}
}

func TestHandleLabAct_InvalidParams(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)
	ctx := context.Background()

	tests := []struct {
		name string
		in   LabActInput
	}{
		{"unknown tag", LabActInput{Tag: "Lid", Kind: "click"}},
		{"unknown kind", LabActInput{Tag: "Container", Kind: "throw"}},
		{"unknown soil", LabActInput{Tag: "SampleSource", Kind: "click", Soil: "clay"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleLabAct(ctx, &sdk.CallToolRequest{}, tt.in); err == nil {
				t.Error("expected parameter error")
			}
		})
	}
}

func TestHandleLabAct_EffectLocksUntilAck(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)
	ctx := context.Background()

	out := act(t, server, LabActInput{Tag: "Container", Kind: "drag", Container: "B"})
	if !out.Accepted || len(out.Effects) != 1 {
		t.Fatalf("drag = %+v", out)
	}
	eff := out.Effects[0]
	if eff.Kind != "relocate" || eff.Subject != "B" || eff.To != "balance" || eff.Acknowledged {
		t.Errorf("effect = %+v", eff)
	}
	if out.Status.Pending == nil || out.Status.Pending.Handle != eff.Handle {
		t.Errorf("Pending = %+v, want handle %d", out.Status.Pending, eff.Handle)
	}
	if out.Status.SelectedContainer != "B" {
		t.Errorf("SelectedContainer = %q, want B", out.Status.SelectedContainer)
	}

	locked := act(t, server, LabActInput{Tag: "RecordControl", Kind: "click"})
	if locked.Accepted || !strings.Contains(locked.Reason, "in progress") {
		t.Errorf("action during effect = %+v", locked)
	}

	_, bad, err := server.handleLabAck(ctx, &sdk.CallToolRequest{}, LabAckInput{Handle: eff.Handle + 100})
	if err != nil {
		t.Fatal(err)
	}
	if bad.Accepted || !strings.Contains(bad.Reason, "unknown effect") {
		t.Errorf("ack of unknown handle = %+v", bad)
	}

	_, ack, err := server.handleLabAck(ctx, &sdk.CallToolRequest{}, LabAckInput{Handle: eff.Handle})
	if err != nil || !ack.Accepted {
		t.Fatalf("ack failed: %v %+v", err, ack)
	}
	if ack.Status.Step != steps.RecordEmptyWeight.String() {
		t.Errorf("after ack step = %s, want %s", ack.Status.Step, steps.RecordEmptyWeight)
	}
	if ack.Status.BalanceReading != 25 {
		t.Errorf("BalanceReading = %v, want 25", ack.Status.BalanceReading)
	}
	if !ack.Status.ShowsRecord {
		t.Error("record control should be offered at RecordEmptyWeight")
	}
}

func TestHandleLabSelect(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	if _, _, err := server.handleLabSelect(ctx, &sdk.CallToolRequest{}, LabSelectInput{}); err == nil {
		t.Error("expected error for missing container")
	}

	_, out, err := server.handleLabSelect(ctx, &sdk.CallToolRequest{}, LabSelectInput{Container: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Accepted {
		t.Error("selecting before start should be refused")
	}

	startSession(t, server)
	_, out, err = server.handleLabSelect(ctx, &sdk.CallToolRequest{}, LabSelectInput{Container: "Z"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Accepted {
		t.Error("selecting an unknown container should be refused")
	}

	_, out, err = server.handleLabSelect(ctx, &sdk.CallToolRequest{}, LabSelectInput{Container: "A"})
	if err != nil || !out.Accepted {
		t.Fatalf("select A = %+v, %v", out, err)
	}
	if out.Status.SelectedContainer != "A" {
		t.Errorf("SelectedContainer = %q, want A", out.Status.SelectedContainer)
	}
}

func TestFullSession_ClientAcknowledges(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)

	last := playScript(t, server)

	if last.Status.State != "ended" {
		t.Fatalf("state = %s, want ended", last.Status.State)
	}
	if last.Status.RunID == "" {
		t.Error("ended session should be archived")
	}
	for i, rec := range last.Status.Rounds {
		if !rec.Complete {
			t.Errorf("round %d incomplete: %+v", i+1, rec)
		}
	}

	_, history, err := server.handleLabHistory(context.Background(), &sdk.CallToolRequest{}, LabHistoryInput{})
	if err != nil {
		t.Fatal(err)
	}
	if history.Count != 1 || history.Runs[0].ID != last.Status.RunID {
		t.Fatalf("history = %+v, want the archived run", history)
	}
	if history.Runs[0].Seed != 42 || !history.Runs[0].Complete {
		t.Errorf("archived run = %+v", history.Runs[0])
	}
}

func TestFullSession_AutoAcknowledge(t *testing.T) {
	server := setupTestServer(t, autoAck)
	startSession(t, server)

	first := act(t, server, LabActInput{Tag: "Container", Kind: "drag", Container: "A"})
	if len(first.Effects) != 1 || !first.Effects[0].Acknowledged {
		t.Fatalf("auto-ack effects = %+v", first.Effects)
	}
	if first.Status.Pending != nil {
		t.Errorf("Pending = %+v, want none", first.Status.Pending)
	}

	// Replays the rest; acknowledged effects need no lab_ack.
	var last LabActOutput
	for i, a := range simulation.StandardScript("A", "B").Actions[1:] {
		last = act(t, server, LabActInput{Tag: string(a.Tag), Kind: string(a.Kind), Container: a.ContainerID})
		if !last.Accepted {
			t.Fatalf("action %d refused at %s: %s", i+2, last.Status.Step, last.Reason)
		}
		if a.Tag == "DesiccatorCap" && last.Status.Step == steps.CloseBoxCapAfterDry.String() && len(last.Effects) != 2 {
			t.Errorf("desiccator opening should carry the hand-back effect, got %+v", last.Effects)
		}
	}
	if last.Status.State != "ended" || last.Status.RunID == "" {
		t.Errorf("final status = %s run %q", last.Status.State, last.Status.RunID)
	}
}

func TestHandleLabReset(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)
	act(t, server, LabActInput{Tag: "Container", Kind: "drag", Container: "A"})

	_, out, err := server.handleLabReset(context.Background(), &sdk.CallToolRequest{}, LabResetInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.State != "idle" || out.Pending != nil || out.SelectedContainer != "" {
		t.Errorf("after reset = %+v", out)
	}
	for _, c := range server.orch.Bench().Containers {
		if c.Location != "tray" {
			t.Errorf("container %s at %s after reset, want tray", c.ID, c.Location)
		}
	}
}

func TestHandleLabSteps(t *testing.T) {
	server := setupTestServer(t, func(c *config.SoillabConfig) { c.Report.Language = "zh" })

	_, out, err := server.handleLabSteps(context.Background(), &sdk.CallToolRequest{}, LabStepsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != steps.Count()-1 || len(out.Steps) != out.Count {
		t.Fatalf("Count = %d (%d steps), want %d", out.Count, len(out.Steps), steps.Count()-1)
	}
	first := out.Steps[0]
	if first.Name != steps.First.String() || len(first.Accepts) != 1 || first.Accepts[0] != "Container/drag" {
		t.Errorf("first step = %+v", first)
	}
	if first.Instruction != steps.Instruction(steps.First, "zh") {
		t.Errorf("instruction = %q, want the zh text", first.Instruction)
	}
}

func TestResources(t *testing.T) {
	server := setupTestServer(t, nil)
	ctx := context.Background()

	res, err := server.handleRecordResource(ctx, &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Contents[0].Text; got != "No measurements recorded yet." {
		t.Errorf("empty record resource = %q", got)
	}

	startSession(t, server)
	playScript(t, server)

	res, err = server.handleRecordResource(ctx, &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Contents[0].Text, "Wet soil moisture content: ") {
		t.Errorf("record resource = %q", res.Contents[0].Text)
	}

	res, err = server.handleStatusResource(ctx, &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var status LabStatusOutput
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &status); err != nil {
		t.Fatalf("status resource is not JSON: %v", err)
	}
	if status.State != "ended" {
		t.Errorf("status resource state = %s", status.State)
	}
}

func TestHandleLabBackup(t *testing.T) {
	server := setupTestServer(t, autoAck)
	startSession(t, server)
	playScript(t, server)

	_, out, err := server.handleLabBackup(context.Background(), &sdk.CallToolRequest{}, LabBackupInput{})
	if err != nil {
		t.Fatalf("handleLabBackup failed: %v", err)
	}
	if out.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", out.RunCount)
	}
	if !strings.Contains(out.Path, filepath.Join(".soillab", "backups", "soillab-backup-")) {
		t.Errorf("Path = %q, want default backup dir", out.Path)
	}
	if err := backup.VerifyChecksum(out.Path); err != nil {
		t.Errorf("backup does not verify: %v", err)
	}
	if out.Rotated == nil {
		t.Error("Rotated should be an empty list, not null")
	}
}

func TestRateLimits(t *testing.T) {
	isolateHome(t)
	lab := config.Default()
	lab.Experiment.Seed = 42

	server, err := NewServer(&Config{
		Name:       "test-server",
		Version:    "v1.0.0",
		Lab:        lab,
		RateLimits: map[string]ratelimit.Limit{"lab_history": {Rate: 0, Burst: 2}},
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, _, err := server.handleLabHistory(ctx, &sdk.CallToolRequest{}, LabHistoryInput{}); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	_, _, err = server.handleLabHistory(ctx, &sdk.CallToolRequest{}, LabHistoryInput{})
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Errorf("third call error = %v, want ErrLimited", err)
	}

	// Only the listed tools are limited.
	for i := 0; i < 5; i++ {
		if _, _, err := server.handleLabStatus(ctx, &sdk.CallToolRequest{}, LabStatusInput{}); err != nil {
			t.Fatalf("lab_status call %d: %v", i+1, err)
		}
	}
}

func TestHandleLabSelect_SanitizesContainer(t *testing.T) {
	server := setupTestServer(t, nil)
	startSession(t, server)

	_, out, err := server.handleLabSelect(context.Background(), &sdk.CallToolRequest{}, LabSelectInput{Container: " A\n"})
	if err != nil {
		t.Fatalf("handleLabSelect failed: %v", err)
	}
	if !out.Accepted || out.Status.SelectedContainer != "A" {
		t.Errorf("select = %+v, want A selected", out)
	}

	_, _, err = server.handleLabSelect(context.Background(), &sdk.CallToolRequest{}, LabSelectInput{Container: "<>"})
	if err == nil {
		t.Error("expected error when nothing is left of the container id")
	}
}
