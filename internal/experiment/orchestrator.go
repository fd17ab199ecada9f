// Package experiment runs a soil moisture session: two rounds of the scripted
// weighing, drying and cooling workflow over a shared bench.
//
// The Orchestrator is the only entry point for the presentation. It
// validates each reported interaction against the current step before
// touching any apparatus or measurement state, issues at most one effect at
// a time and refuses every other interaction until that effect is
// acknowledged. It is not safe for concurrent use; callers that share one
// across goroutines must serialize access.
package experiment

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/soillab/internal/apparatus"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/observe"
	"github.com/nvandessel/soillab/internal/steps"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateEnded   State = "ended"
)

// Session is the per-session bookkeeping the orchestrator owns.
type Session struct {
	Round               int    `json:"round"`
	SelectedContainerID string `json:"selected_container,omitempty"`
	Running             bool   `json:"running"`
}

// Options configures a new Orchestrator.
type Options struct {
	// ContainerIDs names the two containers. Defaults to A and B.
	ContainerIDs []string
	// RoundSoils is the sample taken in each round unless an action
	// overrides it. Defaults to dry then wet.
	RoundSoils [ledger.Rounds]models.SoilType
	// Weigher produces balance readings. Defaults to a Simulator seeded
	// with Seed.
	Weigher ledger.Weigher
	// Seed seeds the default Simulator. 0 picks a random seed, reported by
	// Orchestrator.Seed.
	Seed uint64
	// Language selects instruction and record board wording ("en", "zh").
	Language string

	Logger *slog.Logger
	Trace  *logging.ActionTrace
}

// DefaultContainerIDs are used when Options.ContainerIDs is empty.
var DefaultContainerIDs = []string{"A", "B"}

// Orchestrator coordinates the sequencer, the ledger and the bench.
type Orchestrator struct {
	state   State
	session Session

	ledger   *ledger.Ledger
	registry *apparatus.Registry
	seq      *steps.Sequencer
	weigher  ledger.Weigher
	seed     uint64
	labels   ledger.Labels
	soils    [ledger.Rounds]models.SoilType

	pending    *pending
	nextHandle EffectHandle
	toolReady  bool

	events observe.Feed[Event]
	logger *slog.Logger
	trace  *logging.ActionTrace
}

// New builds an idle orchestrator.
func New(opts Options) (*Orchestrator, error) {
	ids := opts.ContainerIDs
	if len(ids) == 0 {
		ids = DefaultContainerIDs
	}
	registry, err := apparatus.NewRegistry(ids...)
	if err != nil {
		return nil, fmt.Errorf("creating bench: %w", err)
	}

	soils := opts.RoundSoils
	for i, s := range soils {
		switch {
		case s == "" || s == models.SoilNone:
			soils[i] = defaultSoil(i + 1)
		case !s.Valid():
			return nil, fmt.Errorf("round %d soil: invalid soil type %q", i+1, s)
		}
	}

	seed, weigher := opts.Seed, opts.Weigher
	if weigher == nil {
		seed = ledger.ResolveSeed(seed)
		weigher = ledger.NewSimulator(nil, seed)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	o := &Orchestrator{
		state:    StateIdle,
		session:  Session{Round: 1},
		ledger:   ledger.New(),
		registry: registry,
		seq:      steps.NewSequencer(opts.Language),
		weigher:  weigher,
		seed:     seed,
		labels:   ledger.LabelsFor(opts.Language),
		soils:    soils,
		logger:   logger,
		trace:    opts.Trace,
	}

	o.seq.OnStepChanged(func(s steps.Step) {
		o.logger.Debug("step changed", "round", o.session.Round, "step", s)
		o.emit(Event{Kind: EventStepChanged, Step: s})
	})
	o.seq.OnInstructionChanged(func(text string) {
		o.emit(Event{Kind: EventInstructionChanged, Step: o.seq.Current(), Text: text})
	})
	o.ledger.OnUpdate(func(u ledger.Update) {
		if !u.Valid {
			o.logger.Warn("invalid measurement: dry weight not above empty weight",
				"round", u.Round, "empty", u.Record.EmptyWeight, "dry", u.Record.DryWeight)
		}
		o.emit(Event{Kind: EventRecordUpdated, Step: o.seq.Current(), Text: o.RecordText()})
	})
	return o, nil
}

func defaultSoil(round int) models.SoilType {
	if round == 1 {
		return models.SoilDry
	}
	return models.SoilWet
}

// Start begins round 1 from Idle or Ended. The bench and the ledger are
// cleared first.
func (o *Orchestrator) Start() error {
	if o.state == StateRunning {
		return o.reject(ErrAlreadyRunning)
	}
	o.clear()
	o.state = StateRunning
	o.session.Running = true
	o.logger.Info("experiment started", "containers", o.containerIDs())
	o.trace.Log(logging.ActionEntry{Event: "start", Round: 1})
	o.emit(Event{Kind: EventRecordUpdated, Text: o.RecordText()})
	o.seq.SetStep(steps.First)
	return nil
}

// Reset returns to Idle with every container and appliance in its initial
// state and an empty ledger. It is always permitted, even with an effect
// outstanding; the effect is dropped.
func (o *Orchestrator) Reset() {
	o.clear()
	o.state = StateIdle
	o.logger.Info("experiment reset")
	o.trace.Log(logging.ActionEntry{Event: "reset"})
	o.emit(Event{Kind: EventRecordUpdated, Text: o.RecordText()})
	o.seq.SetStep(steps.NotStarted)
}

func (o *Orchestrator) clear() {
	o.session = Session{Round: 1}
	o.ledger.Reset()
	o.registry.Reset()
	o.pending = nil
	o.toolReady = false
}

// SelectContainer chooses the container for the current round. It is only
// valid at the first step, and round 2 must use a different container than
// round 1.
func (o *Orchestrator) SelectContainer(id string) error {
	if err := o.ready(); err != nil {
		return o.reject(err)
	}
	if err := o.checkSelectable(id); err != nil {
		return o.reject(err)
	}
	o.session.SelectedContainerID = id
	o.logger.Debug("container selected", "round", o.session.Round, "container", id)
	o.trace.Log(logging.ActionEntry{Event: "select", Round: o.session.Round, Container: id})
	return nil
}

func (o *Orchestrator) checkSelectable(id string) error {
	if step := o.seq.Current(); step != steps.First {
		return fmt.Errorf("%w: containers are chosen at %s, not %s", ErrInvalidAction, steps.First, step)
	}
	if _, err := o.registry.Container(id); err != nil {
		return err
	}
	if o.session.Round == 2 {
		r1, _ := o.ledger.Round(1)
		if r1.ContainerID == id {
			return fmt.Errorf("%w: %s", ErrDuplicateContainer, id)
		}
	}
	return nil
}

// CompleteStep advances the sequencer without an interaction. At the end of
// a round it starts round 2 or ends the session.
func (o *Orchestrator) CompleteStep() error {
	if err := o.ready(); err != nil {
		return o.reject(err)
	}
	o.completeStep()
	return nil
}

func (o *Orchestrator) completeStep() {
	if !o.seq.Advance() {
		return
	}
	if o.session.Round == 1 {
		o.nextRound()
		return
	}
	o.end()
}

// NextRound moves from round 1 to round 2. It is only valid at
// RoundComplete, once the bench is back in its starting layout.
func (o *Orchestrator) NextRound() error {
	if err := o.ready(); err != nil {
		return o.reject(err)
	}
	if o.session.Round != 1 {
		return o.reject(fmt.Errorf("%w: already in round %d", ErrInvalidAction, o.session.Round))
	}
	if step := o.seq.Current(); step != steps.RoundComplete {
		return o.reject(fmt.Errorf("%w: round 1 is at %s, not %s", ErrInvalidAction, step, steps.RoundComplete))
	}
	o.nextRound()
	return nil
}

func (o *Orchestrator) nextRound() {
	o.session.Round = 2
	o.session.SelectedContainerID = ""
	o.toolReady = false
	o.logger.Info("round started", "round", 2)
	o.seq.SetStep(steps.First)
}

// End stops the session. The bench and ledger are left as they are so the
// results can still be shown.
func (o *Orchestrator) End() error {
	if o.state != StateRunning {
		return o.reject(ErrNotRunning)
	}
	o.end()
	return nil
}

func (o *Orchestrator) end() {
	o.state = StateEnded
	o.session.Running = false
	o.pending = nil
	r1, r2 := o.ledger.Records()
	o.logger.Info("experiment ended", "moisture_round1", r1.MoistureContent, "moisture_round2", r2.MoistureContent)
	o.trace.Log(logging.ActionEntry{Event: "end", Round: o.session.Round})
	o.emit(Event{Kind: EventSessionEnded, Step: o.seq.Current(), Text: o.RecordText()})
}

// ready checks that the session is running and no effect is outstanding.
func (o *Orchestrator) ready() error {
	if o.state != StateRunning {
		return ErrNotRunning
	}
	if o.pending != nil {
		return fmt.Errorf("%w: %s", ErrInteractionLocked, o.pending.effect)
	}
	return nil
}

// ReportAction validates a against the current step and, if accepted,
// performs it. Actions whose presentation takes time return the Effect to
// play; the step advances when it is acknowledged. Instant actions return a
// nil Effect. A rejected action changes nothing and is reported through
// OnRejectedAction as well as the returned error.
func (o *Orchestrator) ReportAction(a Action) (*Effect, error) {
	step := o.seq.Current()
	o.trace.Log(logging.ActionEntry{
		Event:     "action",
		Round:     o.session.Round,
		Step:      step.String(),
		Tag:       a.Tag.String(),
		Kind:      a.Kind.String(),
		Container: a.ContainerID,
	})

	if err := o.ready(); err != nil {
		return nil, o.reject(err)
	}
	if !o.seq.Validate(step, a.Tag, a.Kind) {
		return nil, o.reject(fmt.Errorf("%w: %s at %s", ErrInvalidAction, a, step))
	}

	d, _ := steps.Describe(step)
	var (
		eff *Effect
		err error
	)
	switch d.Op {
	case steps.OpRelocate:
		eff, err = o.relocate(d, a)
	case steps.OpToggleCap:
		eff, err = o.toggleCap(d, a)
	case steps.OpToggleOvenDoor:
		eff, err = o.toggleDoor(d, o.registry.Oven)
	case steps.OpToggleDesiccatorCap:
		eff, err = o.toggleDoor(d, o.registry.Desiccator)
	case steps.OpTakeSample:
		eff, err = o.takeSample(a)
	case steps.OpRecordEmpty:
		err = o.recordWeight(a, ledger.WeightEmpty)
	case steps.OpRecordWet:
		err = o.recordWeight(a, ledger.WeightWet)
	case steps.OpRecordDry:
		err = o.recordWeight(a, ledger.WeightDry)
	case steps.OpSkipWait:
		err = o.skipWait(step)
	case steps.OpDispose:
		eff, err = o.dispose(a)
	case steps.OpFinishRound:
		o.completeStep()
	default:
		err = fmt.Errorf("%w: nothing to do at %s", ErrInvalidAction, step)
	}
	if err != nil {
		return nil, o.reject(err)
	}
	return eff, nil
}

// AcknowledgeEffectComplete finalizes the outstanding effect h. When the
// acknowledgment triggers an automatic follow-up (pulling the container out
// of the desiccator after it is opened), the follow-up effect is returned and
// the interaction lock stays held until it too is acknowledged.
func (o *Orchestrator) AcknowledgeEffectComplete(h EffectHandle) (*Effect, error) {
	o.trace.Log(logging.ActionEntry{Event: "ack", Round: o.session.Round, Step: o.seq.Current().String(), Effect: uint64(h)})

	p := o.pending
	if p == nil || p.effect.Handle != h {
		return nil, o.reject(fmt.Errorf("%w: #%d", ErrUnknownEffect, h))
	}
	o.pending = nil
	if err := p.finish(); err != nil {
		// Issuance validated everything finish needs; reaching this means
		// the bench was changed behind the orchestrator's back.
		o.logger.Error("effect completion failed", "effect", p.effect.String(), "error", err)
		return nil, fmt.Errorf("completing effect %s: %w", p.effect, err)
	}
	if o.pending != nil {
		next := o.pending.effect
		return &next, nil
	}
	return nil, nil
}

// issue locks interaction behind a new effect.
func (o *Orchestrator) issue(e Effect, finish func() error) *Effect {
	o.nextHandle++
	e.Handle = o.nextHandle
	e.Step = o.seq.Current()
	o.pending = &pending{effect: e, finish: finish}
	o.logger.Debug("effect requested", "effect", e.String())
	o.trace.Log(logging.ActionEntry{Event: "effect", Round: o.session.Round, Step: e.Step.String(), Container: e.Subject, Effect: uint64(e.Handle)})
	out := e
	o.emit(Event{Kind: EventEffectRequested, Step: e.Step, Effect: &out})
	return &out
}

func (o *Orchestrator) reject(err error) error {
	o.logger.Warn("action rejected", "round", o.session.Round, "step", o.seq.Current(), "reason", err)
	o.trace.Log(logging.ActionEntry{Event: "rejected", Round: o.session.Round, Step: o.seq.Current().String(), Reason: err.Error()})
	o.emit(Event{Kind: EventActionRejected, Step: o.seq.Current(), Text: err.Error()})
	return err
}

func (o *Orchestrator) containerIDs() []string {
	var ids []string
	for _, c := range o.registry.Containers() {
		ids = append(ids, c.ID())
	}
	return ids
}
