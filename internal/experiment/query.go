package experiment

import (
	"github.com/nvandessel/soillab/internal/apparatus"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/steps"
)

func (o *Orchestrator) State() State { return o.state }
func (o *Orchestrator) Session() Session { return o.session }
func (o *Orchestrator) Round() int { return o.session.Round }
func (o *Orchestrator) CurrentStep() steps.Step { return o.seq.Current() }
func (o *Orchestrator) ToolReady() bool { return o.toolReady }

// Instruction returns the instruction text of the current step.
func (o *Orchestrator) Instruction() string {
	return o.seq.InstructionFor(o.seq.Current())
}

// HighlightTarget returns the subject to highlight at the current step.
func (o *Orchestrator) HighlightTarget() models.SubjectTag {
	return o.seq.HighlightTargetFor(o.seq.Current())
}

// ShowsRecordControl reports whether the record control is offered now.
func (o *Orchestrator) ShowsRecordControl() bool {
	return o.seq.ShowsRecordControl(o.seq.Current())
}

// ShowsSkipControl reports whether the skip control is offered now.
func (o *Orchestrator) ShowsSkipControl() bool {
	return o.seq.ShowsSkipControl(o.seq.Current())
}

// RecordText renders the record board in the configured language.
func (o *Orchestrator) RecordText() string {
	return o.ledger.RecordText(o.labels)
}

// Records returns copies of both round records.
func (o *Orchestrator) Records() (round1, round2 ledger.RoundRecord) {
	return o.ledger.Records()
}

// Pending returns the outstanding effect, if any.
func (o *Orchestrator) Pending() *Effect {
	if o.pending == nil {
		return nil
	}
	e := o.pending.effect
	return &e
}

// BalanceReading is what the balance display shows: the nominal weight of
// its occupant, or zero when empty.
func (o *Orchestrator) BalanceReading() float64 {
	c := o.registry.Balance.Occupant()
	if c == nil {
		return 0
	}
	return ledger.NominalWeight(c.HasSample(), c.SampleType(), c.Dried())
}

// Bench returns a snapshot of every container and appliance.
func (o *Orchestrator) Bench() apparatus.State {
	return o.registry.State()
}

// Snapshot is a complete read-only view of a session.
type Snapshot struct {
	State             State                `json:"state"`
	Round             int                  `json:"round"`
	Step              string               `json:"step"`
	Instruction       string               `json:"instruction"`
	Highlight         string               `json:"highlight,omitempty"`
	ShowsRecord       bool                 `json:"shows_record"`
	ShowsSkip         bool                 `json:"shows_skip"`
	SelectedContainer string               `json:"selected_container,omitempty"`
	ToolReady         bool                 `json:"tool_ready"`
	Pending           *Effect              `json:"pending,omitempty"`
	BalanceReading    float64              `json:"balance_reading"`
	Bench             apparatus.State      `json:"bench"`
	Rounds            []ledger.RoundRecord `json:"rounds"`
	RecordText        string               `json:"record_text"`
}

// Snapshot captures the current session.
func (o *Orchestrator) Snapshot() Snapshot {
	r1, r2 := o.ledger.Records()
	return Snapshot{
		State:             o.state,
		Round:             o.session.Round,
		Step:              o.seq.Current().String(),
		Instruction:       o.Instruction(),
		Highlight:         o.HighlightTarget().String(),
		ShowsRecord:       o.ShowsRecordControl(),
		ShowsSkip:         o.ShowsSkipControl(),
		SelectedContainer: o.session.SelectedContainerID,
		ToolReady:         o.toolReady,
		Pending:           o.Pending(),
		BalanceReading:    o.BalanceReading(),
		Bench:             o.registry.State(),
		Rounds:            []ledger.RoundRecord{r1, r2},
		RecordText:        o.RecordText(),
	}
}

// Seed returns the seed of the default simulated balance, or Options.Seed
// as given when a Weigher was supplied.
func (o *Orchestrator) Seed() uint64 { return o.seed }
