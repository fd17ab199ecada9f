package apparatus

import (
	"fmt"

	"github.com/nvandessel/soillab/internal/models"
)

// ContainerCount is the number of containers on the bench.
const ContainerCount = 2

// Registry owns the containers and appliances of one bench and enforces the
// rules that span them: relocation between slots and disposal.
type Registry struct {
	containers []*Container
	byID       map[string]*Container

	Balance    *Appliance
	Oven       *Appliance
	Desiccator *Appliance
}

// NewRegistry creates a bench with one container per id, all on the tray.
func NewRegistry(ids ...string) (*Registry, error) {
	if len(ids) != ContainerCount {
		return nil, fmt.Errorf("need exactly %d container ids, got %d", ContainerCount, len(ids))
	}
	r := &Registry{
		byID:       make(map[string]*Container, len(ids)),
		Balance:    newAppliance(KindBalance),
		Oven:       newAppliance(KindOven),
		Desiccator: newAppliance(KindDesiccator),
	}
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("container id must not be empty")
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate container id: %s", id)
		}
		c := newContainer(id)
		r.containers = append(r.containers, c)
		r.byID[id] = c
	}
	return r, nil
}

// Container looks up a container by id.
func (r *Registry) Container(id string) (*Container, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContainer, id)
	}
	return c, nil
}

// Containers returns the containers in creation order.
func (r *Registry) Containers() []*Container {
	return append([]*Container(nil), r.containers...)
}

// Appliances returns balance, oven and desiccator in that order.
func (r *Registry) Appliances() []*Appliance {
	return []*Appliance{r.Balance, r.Oven, r.Desiccator}
}

// ApplianceAt returns the appliance providing loc, or nil for the tray and
// the trash.
func (r *Registry) ApplianceAt(loc models.Location) *Appliance {
	switch loc {
	case models.LocationBalance:
		return r.Balance
	case models.LocationOven:
		return r.Oven
	case models.LocationDesiccator:
		return r.Desiccator
	}
	return nil
}

// Relocate starts moving c to target. The container must not be busy or
// shut inside an appliance, and an appliance target must be open and empty.
// Leaving an appliance detaches c from it immediately; c arrives at target
// when CompleteRelocation is called.
func (r *Registry) Relocate(c *Container, target models.Location) error {
	if c.Busy() {
		return fmt.Errorf("container %s: %w", c.id, ErrBusy)
	}
	if target == c.location || target == models.LocationTrash || !target.Valid() {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTarget, c.location, target)
	}

	source := r.ApplianceAt(c.location)
	if source != nil {
		if err := source.checkRemove(); err != nil {
			return err
		}
	}
	if dest := r.ApplianceAt(target); dest != nil {
		if err := dest.checkPlace(); err != nil {
			return err
		}
	}

	if source != nil {
		if _, err := source.Remove(); err != nil {
			return err
		}
	}
	c.motion = motionMove
	c.dest = target
	return nil
}

// CompleteRelocation lands c at the target given to Relocate.
func (r *Registry) CompleteRelocation(c *Container) error {
	if c.motion != motionMove {
		return fmt.Errorf("container %s relocation: %w", c.id, ErrNotInTransit)
	}
	if dest := r.ApplianceAt(c.dest); dest != nil {
		if err := dest.Place(c); err != nil {
			return err
		}
	}
	c.location = c.dest
	c.dest = ""
	c.motion = motionNone
	return nil
}

// BeginDisposal carries a filled container from the tray to the trash,
// opening its cap to pour the sample out.
func (r *Registry) BeginDisposal(c *Container) error {
	if c.Busy() {
		return fmt.Errorf("container %s: %w", c.id, ErrBusy)
	}
	if c.location != models.LocationTray {
		return fmt.Errorf("%w: dispose from %s", ErrInvalidTarget, c.location)
	}
	if !c.hasSample {
		return fmt.Errorf("container %s: %w", c.id, ErrNoSample)
	}
	c.capOpen = true
	c.location = models.LocationTrash
	c.dest = models.LocationTray
	c.motion = motionDispose
	return nil
}

// CompleteDisposal empties c, closes its cap and returns it to the tray.
func (r *Registry) CompleteDisposal(c *Container) error {
	if c.motion != motionDispose {
		return fmt.Errorf("container %s disposal: %w", c.id, ErrNotInTransit)
	}
	c.RemoveSample()
	c.capOpen = false
	c.location = c.dest
	c.dest = ""
	c.motion = motionNone
	return nil
}

// Reset returns every container to the tray closed and empty, and every
// appliance to closed, empty and idle.
func (r *Registry) Reset() {
	for _, c := range r.containers {
		c.reset()
	}
	for _, a := range r.Appliances() {
		a.reset()
	}
}

// State is a snapshot of the whole bench.
type State struct {
	Containers []ContainerState `json:"containers"`
	Balance    ApplianceState   `json:"balance"`
	Oven       ApplianceState   `json:"oven"`
	Desiccator ApplianceState   `json:"desiccator"`
}

// State returns a snapshot of every object on the bench.
func (r *Registry) State() State {
	s := State{
		Balance:    r.Balance.State(),
		Oven:       r.Oven.State(),
		Desiccator: r.Desiccator.State(),
	}
	for _, c := range r.containers {
		s.Containers = append(s.Containers, c.State())
	}
	return s
}
