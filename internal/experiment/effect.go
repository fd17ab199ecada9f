package experiment

import (
	"errors"
	"fmt"

	"github.com/nvandessel/soillab/internal/apparatus"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/steps"
)

var (
	ErrInvalidAction       = errors.New("invalid action")
	ErrDuplicateContainer  = errors.New("container already used in round 1")
	ErrInteractionLocked   = errors.New("another action is still in progress")
	ErrNotRunning          = errors.New("experiment not running")
	ErrAlreadyRunning      = errors.New("experiment already running")
	ErrUnknownEffect       = errors.New("unknown effect")
	ErrNoContainerSelected = errors.New("no container selected")
	ErrToolNotReady        = errors.New("pick up the tool first")
	ErrNotOnBalance        = errors.New("container not on the balance")

	// Apparatus preconditions surface unchanged so callers can match them
	// with errors.Is against either package.
	ErrSlotOccupied     = apparatus.ErrSlotOccupied
	ErrDoorClosed       = apparatus.ErrDoorClosed
	ErrEmpty            = apparatus.ErrEmpty
	ErrBusy             = apparatus.ErrBusy
	ErrCapClosed        = apparatus.ErrCapClosed
	ErrNotProcessing    = apparatus.ErrNotProcessing
	ErrUnknownContainer = apparatus.ErrUnknownContainer
)

// Action is one interaction reported by the presentation.
type Action struct {
	Tag  models.SubjectTag `json:"tag" yaml:"tag"`
	Kind models.ActionKind `json:"kind" yaml:"kind"`
	// ContainerID names the container acted on. At the first step of a
	// round it selects the container; elsewhere it must match the
	// selection or be empty.
	ContainerID string `json:"container,omitempty" yaml:"container,omitempty"`
	// Soil overrides the configured soil of the round when taking a
	// sample.
	Soil models.SoilType `json:"soil,omitempty" yaml:"soil,omitempty"`
}

func (a Action) String() string {
	s := fmt.Sprintf("(%s, %s)", a.Tag, a.Kind)
	if a.ContainerID != "" {
		s += " on " + a.ContainerID
	}
	return s
}

// EffectHandle identifies an outstanding effect.
type EffectHandle uint64

// EffectKind is the presentation-timed transition being requested.
type EffectKind string

const (
	EffectRelocate   EffectKind = "relocate"
	EffectToggleCap  EffectKind = "toggle_cap"
	EffectToggleDoor EffectKind = "toggle_door"
	EffectScoop      EffectKind = "scoop"
	EffectDispose    EffectKind = "dispose"
)

// Effect asks the presentation to play a transition from one state to
// another and to acknowledge it once finished. Core state changes only when
// the effect is issued and when it is acknowledged.
type Effect struct {
	Handle  EffectHandle `json:"handle"`
	Kind    EffectKind   `json:"kind"`
	Subject string       `json:"subject"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Step    steps.Step   `json:"step"`
}

func (e Effect) String() string {
	return fmt.Sprintf("#%d %s %s %s->%s", e.Handle, e.Kind, e.Subject, e.From, e.To)
}

// pending is the single outstanding effect and the work to run on its
// acknowledgment.
type pending struct {
	effect Effect
	finish func() error
}

func openClosed(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
