package mcp

import (
	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/steps"
)

// LabStartInput defines the input for lab_start tool.
type LabStartInput struct {
	Seed uint64 `json:"seed,omitempty" jsonschema:"Seed for the simulated balance (0 or omitted picks one)"`
}

// LabResetInput defines the input for lab_reset tool.
type LabResetInput struct{}

// LabStatusInput defines the input for lab_status tool.
type LabStatusInput struct{}

// LabStepsInput defines the input for lab_steps tool.
type LabStepsInput struct{}

// LabSelectInput defines the input for lab_select_container tool.
type LabSelectInput struct {
	Container string `json:"container" jsonschema:"Id of the container to use this round"`
}

// LabActInput defines the input for lab_act tool.
type LabActInput struct {
	Tag       string `json:"tag" jsonschema:"Subject acted on: Container, ContainerCap, OvenDoor, DesiccatorCap, RecordControl, SkipControl, Tool, SampleSource, CleanControl or NextControl"`
	Kind      string `json:"kind" jsonschema:"Gesture: click, drag or drop"`
	Container string `json:"container,omitempty" jsonschema:"Container id; at the first step of a round this selects it"`
	Soil      string `json:"soil,omitempty" jsonschema:"Soil to sample (dry or wet) instead of the round's default"`
}

// LabAckInput defines the input for lab_ack tool.
type LabAckInput struct {
	Handle uint64 `json:"handle" jsonschema:"Handle of the effect that finished playing"`
}

// LabHistoryInput defines the input for lab_history tool.
type LabHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return (default: 10)"`
}

// LabBackupInput defines the input for lab_backup tool.
type LabBackupInput struct{}

// LabBackupOutput describes the backup written.
type LabBackupOutput struct {
	Path     string   `json:"path"`
	RunCount int      `json:"run_count"`
	Checksum string   `json:"checksum"`
	Rotated  []string `json:"rotated" jsonschema:"Older backups removed by rotation"`
}

// EffectView describes an effect the client should play and acknowledge.
type EffectView struct {
	Handle       uint64 `json:"handle"`
	Kind         string `json:"kind"`
	Subject      string `json:"subject"`
	From         string `json:"from"`
	To           string `json:"to"`
	Step         string `json:"step"`
	Acknowledged bool   `json:"acknowledged" jsonschema:"True when the server already acknowledged it"`
}

func effectView(e *experiment.Effect, acked bool) *EffectView {
	if e == nil {
		return nil
	}
	return &EffectView{
		Handle:       uint64(e.Handle),
		Kind:         string(e.Kind),
		Subject:      e.Subject,
		From:         e.From,
		To:           e.To,
		Step:         e.Step.String(),
		Acknowledged: acked,
	}
}

// LabStatusOutput is the session as the client should present it.
type LabStatusOutput struct {
	State             string               `json:"state" jsonschema:"idle, running or ended"`
	Round             int                  `json:"round"`
	Step              string               `json:"step"`
	Instruction       string               `json:"instruction"`
	Highlight         string               `json:"highlight,omitempty" jsonschema:"Subject to highlight"`
	ShowsRecord       bool                 `json:"shows_record" jsonschema:"Whether the record control is offered"`
	ShowsSkip         bool                 `json:"shows_skip" jsonschema:"Whether the skip control is offered"`
	SelectedContainer string               `json:"selected_container,omitempty"`
	ToolReady         bool                 `json:"tool_ready"`
	Pending           *EffectView          `json:"pending,omitempty" jsonschema:"Effect awaiting lab_ack"`
	BalanceReading    float64              `json:"balance_reading" jsonschema:"Grams shown on the balance"`
	Seed              uint64               `json:"seed"`
	Rounds            []ledger.RoundRecord `json:"rounds"`
	RecordText        string               `json:"record_text"`
	RunID             string               `json:"run_id,omitempty" jsonschema:"Archive id once the session has ended and been saved"`
}

// LabActOutput reports the outcome of an interaction or acknowledgment.
type LabActOutput struct {
	Accepted bool            `json:"accepted"`
	Reason   string          `json:"reason,omitempty" jsonschema:"Why the action was refused"`
	Effects  []EffectView    `json:"effects,omitempty" jsonschema:"Effects issued, in order"`
	Status   LabStatusOutput `json:"status"`
}

// StepView describes one step of a round.
type StepView struct {
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Instruction string   `json:"instruction"`
	Highlight   string   `json:"highlight,omitempty"`
	Accepts     []string `json:"accepts" jsonschema:"Accepted interactions as tag/kind"`
}

// LabStepsOutput lists every step in order.
type LabStepsOutput struct {
	Steps []StepView `json:"steps"`
	Count int        `json:"count"`
}

// RunSummary is one archived run.
type RunSummary struct {
	ID         string               `json:"id"`
	CreatedAt  string               `json:"created_at"`
	Seed       uint64               `json:"seed"`
	Language   string               `json:"language"`
	Complete   bool                 `json:"complete"`
	Rounds     []ledger.RoundRecord `json:"rounds"`
	RecordText string               `json:"record_text"`
}

// LabHistoryOutput lists archived runs, newest first.
type LabHistoryOutput struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

func stepView(d steps.Descriptor, lang string) StepView {
	v := StepView{
		Index:       int(d.Step),
		Name:        d.Name,
		Instruction: steps.Instruction(d.Step, lang),
		Highlight:   d.Highlight.String(),
	}
	for _, in := range d.Accepts {
		v.Accepts = append(v.Accepts, in.Tag.String()+"/"+in.Kind.String())
	}
	if v.Accepts == nil {
		v.Accepts = []string{}
	}
	return v
}
