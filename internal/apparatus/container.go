// Package apparatus models the physical objects of the lab bench: the two
// weighing containers and the balance, oven and desiccator they move between.
//
// Transitions that take presentation time (cap flips, relocations, disposal,
// door toggles) are split in two: a Begin/Toggle call that validates and
// applies the issuance-side change and marks the object busy, and a
// Complete/Settle call made once the presentation reports the effect done.
// No operation mutates anything when it returns an error.
package apparatus

import (
	"errors"
	"fmt"

	"github.com/nvandessel/soillab/internal/models"
)

var (
	ErrSlotOccupied     = errors.New("slot occupied")
	ErrDoorClosed       = errors.New("door closed")
	ErrEmpty            = errors.New("appliance empty")
	ErrBusy             = errors.New("transition in progress")
	ErrCapClosed        = errors.New("container cap closed")
	ErrNoSample         = errors.New("container holds no sample")
	ErrNotProcessing    = errors.New("appliance not processing")
	ErrProcessing       = errors.New("appliance processing")
	ErrNoDoor           = errors.New("appliance has no door")
	ErrInvalidTarget    = errors.New("invalid relocation target")
	ErrNotInTransit     = errors.New("no transition in progress")
	ErrUnknownContainer = errors.New("unknown container")
)

// motion is the presentation-timed transition a container is in.
type motion int

const (
	motionNone motion = iota
	motionCap
	motionMove
	motionDispose
)

// Container is a weighing vessel.
//
// Invariant: a container without a sample has SoilNone and is not dried.
type Container struct {
	id         string
	location   models.Location
	capOpen    bool
	hasSample  bool
	sampleType models.SoilType
	isHot      bool
	isDried    bool

	motion motion
	dest   models.Location
}

func newContainer(id string) *Container {
	c := &Container{id: id}
	c.reset()
	return c
}

func (c *Container) reset() {
	*c = Container{
		id:         c.id,
		location:   models.LocationTray,
		sampleType: models.SoilNone,
	}
}

func (c *Container) ID() string { return c.id }
func (c *Container) Location() models.Location { return c.location }
func (c *Container) CapOpen() bool { return c.capOpen }
func (c *Container) HasSample() bool { return c.hasSample }
func (c *Container) SampleType() models.SoilType { return c.sampleType }
func (c *Container) Hot() bool { return c.isHot }
func (c *Container) Dried() bool { return c.isDried }

// Busy reports whether a cap flip, relocation or disposal is in flight.
func (c *Container) Busy() bool { return c.motion != motionNone }

// ToggleCap flips the cap and holds the container busy until SettleCap.
func (c *Container) ToggleCap() error {
	if c.Busy() {
		return fmt.Errorf("container %s: %w", c.id, ErrBusy)
	}
	c.capOpen = !c.capOpen
	c.motion = motionCap
	return nil
}

// SettleCap ends an in-flight cap flip.
func (c *Container) SettleCap() error {
	if c.motion != motionCap {
		return fmt.Errorf("container %s cap: %w", c.id, ErrNotInTransit)
	}
	c.motion = motionNone
	return nil
}

// AddSample fills the open container with a fresh sample of soil.
func (c *Container) AddSample(soil models.SoilType) error {
	if soil == models.SoilNone || !soil.Valid() {
		return fmt.Errorf("container %s: invalid sample type %q", c.id, soil)
	}
	if !c.capOpen {
		return fmt.Errorf("container %s: %w", c.id, ErrCapClosed)
	}
	c.hasSample = true
	c.sampleType = soil
	c.isDried = false
	return nil
}

// RemoveSample empties the container.
func (c *Container) RemoveSample() {
	c.hasSample = false
	c.sampleType = models.SoilNone
	c.isDried = false
}

// SetHot sets the temperature flag.
func (c *Container) SetHot(hot bool) {
	c.isHot = hot
}

// SetDried marks the sample dried, which also makes the container hot.
// An empty container never becomes dried.
func (c *Container) SetDried(dried bool) {
	c.isDried = dried && c.hasSample
	if dried {
		c.isHot = true
	}
}

// ContainerState is a point-in-time copy of a container.
type ContainerState struct {
	ID         string          `json:"id"`
	Location   models.Location `json:"location"`
	CapOpen    bool            `json:"cap_open"`
	HasSample  bool            `json:"has_sample"`
	SampleType models.SoilType `json:"sample_type"`
	Hot        bool            `json:"hot"`
	Dried      bool            `json:"dried"`
	Busy       bool            `json:"busy"`
}

// State returns a snapshot of the container.
func (c *Container) State() ContainerState {
	return ContainerState{
		ID:         c.id,
		Location:   c.location,
		CapOpen:    c.capOpen,
		HasSample:  c.hasSample,
		SampleType: c.sampleType,
		Hot:        c.isHot,
		Dried:      c.isDried,
		Busy:       c.Busy(),
	}
}
