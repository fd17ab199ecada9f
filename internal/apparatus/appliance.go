package apparatus

import (
	"fmt"

	"github.com/nvandessel/soillab/internal/models"
)

// Kind identifies an appliance.
type Kind string

const (
	KindBalance    Kind = "balance"
	KindOven       Kind = "oven"
	KindDesiccator Kind = "desiccator"
)

// Appliance is a fixed device with a single container slot. The oven has a
// door and the desiccator a cap (both called the door here); the balance has
// neither and only enforces occupancy.
//
// Invariants: at most one occupant; an appliance with its door open is never
// processing.
type Appliance struct {
	kind       Kind
	hasDoor    bool
	occupant   *Container
	doorOpen   bool
	processing bool
	busy       bool
}

func newAppliance(kind Kind) *Appliance {
	return &Appliance{kind: kind, hasDoor: kind != KindBalance}
}

func (a *Appliance) Kind() Kind { return a.kind }
func (a *Appliance) HasDoor() bool { return a.hasDoor }
func (a *Appliance) Occupant() *Container { return a.occupant }
func (a *Appliance) DoorOpen() bool { return a.doorOpen }
func (a *Appliance) Processing() bool { return a.processing }
func (a *Appliance) Busy() bool { return a.busy }

// Location is where a container placed in a rests.
func (a *Appliance) Location() models.Location {
	switch a.kind {
	case KindOven:
		return models.LocationOven
	case KindDesiccator:
		return models.LocationDesiccator
	}
	return models.LocationBalance
}

// accessible reports whether the slot can be reached.
func (a *Appliance) accessible() bool {
	return !a.hasDoor || a.doorOpen
}

// checkPlace validates Place without mutating.
func (a *Appliance) checkPlace() error {
	if a.occupant != nil {
		return fmt.Errorf("%s: %w", a.kind, ErrSlotOccupied)
	}
	if !a.accessible() {
		return fmt.Errorf("%s: %w", a.kind, ErrDoorClosed)
	}
	return nil
}

// Place puts c into the slot.
func (a *Appliance) Place(c *Container) error {
	if err := a.checkPlace(); err != nil {
		return err
	}
	a.occupant = c
	return nil
}

// checkRemove validates Remove without mutating.
func (a *Appliance) checkRemove() error {
	if !a.accessible() {
		return fmt.Errorf("%s: %w", a.kind, ErrDoorClosed)
	}
	if a.occupant == nil {
		return fmt.Errorf("%s: %w", a.kind, ErrEmpty)
	}
	return nil
}

// Remove takes the occupant out. A container leaving the oven is hot; one
// leaving the desiccator is cool.
func (a *Appliance) Remove() (*Container, error) {
	if err := a.checkRemove(); err != nil {
		return nil, err
	}
	c := a.occupant
	a.occupant = nil
	switch a.kind {
	case KindOven:
		c.SetHot(true)
	case KindDesiccator:
		c.SetHot(false)
	}
	return c, nil
}

// ToggleDoor flips the door and holds the appliance busy until SettleDoor.
// Closing the door on an occupant starts processing (drying in the oven,
// cooling in the desiccator). Opening is refused while processing.
func (a *Appliance) ToggleDoor() error {
	if !a.hasDoor {
		return fmt.Errorf("%s: %w", a.kind, ErrNoDoor)
	}
	if a.busy {
		return fmt.Errorf("%s: %w", a.kind, ErrBusy)
	}
	if !a.doorOpen && a.processing {
		return fmt.Errorf("%s: %w", a.kind, ErrProcessing)
	}
	a.doorOpen = !a.doorOpen
	a.busy = true
	if !a.doorOpen && a.occupant != nil && !a.processing {
		a.processing = true
	}
	return nil
}

// SettleDoor ends an in-flight door toggle.
func (a *Appliance) SettleDoor() error {
	if !a.busy {
		return fmt.Errorf("%s door: %w", a.kind, ErrNotInTransit)
	}
	a.busy = false
	return nil
}

// CompleteProcessing finishes drying or cooling. The oven leaves its
// occupant dried and hot; the desiccator leaves it cool.
func (a *Appliance) CompleteProcessing() error {
	if !a.processing {
		return fmt.Errorf("%s: %w", a.kind, ErrNotProcessing)
	}
	a.processing = false
	if a.occupant == nil {
		return nil
	}
	switch a.kind {
	case KindOven:
		a.occupant.SetDried(true)
	case KindDesiccator:
		a.occupant.SetHot(false)
	}
	return nil
}

func (a *Appliance) reset() {
	*a = Appliance{kind: a.kind, hasDoor: a.hasDoor}
}

// ApplianceState is a point-in-time copy of an appliance.
type ApplianceState struct {
	Kind       Kind   `json:"kind"`
	Occupant   string `json:"occupant,omitempty"`
	DoorOpen   bool   `json:"door_open"`
	Processing bool   `json:"processing"`
	Busy       bool   `json:"busy"`
}

// State returns a snapshot of the appliance.
func (a *Appliance) State() ApplianceState {
	s := ApplianceState{
		Kind:       a.kind,
		DoorOpen:   a.doorOpen,
		Processing: a.processing,
		Busy:       a.busy,
	}
	if a.occupant != nil {
		s.Occupant = a.occupant.id
	}
	return s
}
