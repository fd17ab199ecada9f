package steps

import (
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/observe"
)

// Sequencer tracks the current step of a round. It never checks whether an
// advance is allowed; callers validate the interaction first and only then
// mutate apparatus and advance.
type Sequencer struct {
	current Step
	lang    string

	stepChanged        observe.Feed[Step]
	instructionChanged observe.Feed[string]
}

// NewSequencer returns a sequencer at NotStarted with instructions in lang
// ("en" or "zh", anything else is English).
func NewSequencer(lang string) *Sequencer {
	return &Sequencer{current: NotStarted, lang: lang}
}

// Current returns the current step.
func (s *Sequencer) Current() Step {
	return s.current
}

// OnStepChanged subscribes fn to step changes.
func (s *Sequencer) OnStepChanged(fn func(Step)) (unsubscribe func()) {
	return s.stepChanged.Subscribe(fn)
}

// OnInstructionChanged subscribes fn to instruction text changes. It fires
// after the matching step change.
func (s *Sequencer) OnInstructionChanged(fn func(string)) (unsubscribe func()) {
	return s.instructionChanged.Subscribe(fn)
}

// Validate reports whether (tag, kind) performs step.
func (s *Sequencer) Validate(step Step, tag models.SubjectTag, kind models.ActionKind) bool {
	return Accepts(step, tag, kind)
}

// Advance moves to the next step. At RoundComplete it stays put and returns
// true to signal the end of the round.
func (s *Sequencer) Advance() (terminal bool) {
	if s.current == RoundComplete {
		return true
	}
	s.SetStep(s.current + 1)
	return false
}

// SetStep jumps to step and notifies subscribers. Undefined steps are
// ignored.
func (s *Sequencer) SetStep(step Step) {
	if !step.Valid() {
		return
	}
	s.current = step
	s.stepChanged.Emit(step)
	s.instructionChanged.Emit(Instruction(step, s.lang))
}

// InstructionFor returns the instruction text of step.
func (s *Sequencer) InstructionFor(step Step) string {
	return Instruction(step, s.lang)
}

// HighlightTargetFor returns the subject the presentation should highlight
// at step, or TagNone.
func (s *Sequencer) HighlightTargetFor(step Step) models.SubjectTag {
	d, _ := Describe(step)
	return d.Highlight
}

// ShowsRecordControl reports whether the record control is offered at step.
func (s *Sequencer) ShowsRecordControl(step Step) bool {
	d, _ := Describe(step)
	return d.ShowsRecord
}

// ShowsSkipControl reports whether the skip control is offered at step.
func (s *Sequencer) ShowsSkipControl(step Step) bool {
	d, _ := Describe(step)
	return d.ShowsSkip
}
