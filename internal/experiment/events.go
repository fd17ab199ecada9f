package experiment

import (
	"context"

	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/steps"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventStepChanged        EventKind = "step_changed"
	EventInstructionChanged EventKind = "instruction_changed"
	EventRecordUpdated      EventKind = "record_updated"
	EventActionRejected     EventKind = "action_rejected"
	EventEffectRequested    EventKind = "effect_requested"
	EventMeasurementTaken   EventKind = "measurement_taken"
	EventSessionEnded       EventKind = "session_ended"
	EventToolReady          EventKind = "tool_ready"
)

// Event is a notification for the presentation. Which fields are set
// depends on Kind:
//
//	step_changed         Step
//	instruction_changed  Text (instruction)
//	record_updated       Text (record board)
//	action_rejected      Text (reason)
//	effect_requested     Effect
//	measurement_taken    Weight, WeightKind
//	session_ended        Text (record board)
//	tool_ready           Step
//
// Round is always set.
type Event struct {
	Kind       EventKind         `json:"kind"`
	Round      int               `json:"round"`
	Step       steps.Step        `json:"step,omitempty"`
	Text       string            `json:"text,omitempty"`
	Effect     *Effect           `json:"effect,omitempty"`
	Weight     float64           `json:"weight,omitempty"`
	WeightKind ledger.WeightKind `json:"weight_kind,omitempty"`
}

// OnEvent subscribes fn to every event in emission order.
func (o *Orchestrator) OnEvent(fn func(Event)) (unsubscribe func()) {
	return o.events.Subscribe(fn)
}

func (o *Orchestrator) onKind(kind EventKind, fn func(Event)) func() {
	return o.events.Subscribe(func(e Event) {
		if e.Kind == kind {
			fn(e)
		}
	})
}

// OnStepChanged subscribes fn to step changes.
func (o *Orchestrator) OnStepChanged(fn func(steps.Step)) (unsubscribe func()) {
	return o.onKind(EventStepChanged, func(e Event) { fn(e.Step) })
}

// OnInstructionChanged subscribes fn to instruction text changes.
func (o *Orchestrator) OnInstructionChanged(fn func(string)) (unsubscribe func()) {
	return o.onKind(EventInstructionChanged, func(e Event) { fn(e.Text) })
}

// OnRecordUpdated subscribes fn to record board changes.
func (o *Orchestrator) OnRecordUpdated(fn func(string)) (unsubscribe func()) {
	return o.onKind(EventRecordUpdated, func(e Event) { fn(e.Text) })
}

// OnRejectedAction subscribes fn to rejection reasons.
func (o *Orchestrator) OnRejectedAction(fn func(reason string)) (unsubscribe func()) {
	return o.onKind(EventActionRejected, func(e Event) { fn(e.Text) })
}

// OnToolReady subscribes fn to the sampling tool being picked up.
func (o *Orchestrator) OnToolReady(fn func()) (unsubscribe func()) {
	return o.onKind(EventToolReady, func(Event) { fn() })
}

// OnEffectRequested subscribes fn to effects the presentation must play.
func (o *Orchestrator) OnEffectRequested(fn func(Effect)) (unsubscribe func()) {
	return o.onKind(EventEffectRequested, func(e Event) { fn(*e.Effect) })
}

func (o *Orchestrator) emit(e Event) {
	e.Round = o.session.Round
	o.logger.Log(context.Background(), logging.LevelTrace, "event", "kind", e.Kind, "round", e.Round, "step", e.Step, "text", e.Text)
	o.events.Emit(e)
}
