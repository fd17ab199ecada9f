package experiment

import (
	"fmt"

	"github.com/nvandessel/soillab/internal/apparatus"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/logging"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/steps"
)

// target resolves the container an action applies to. An id given at the
// first step selects that container; selecting is true when the caller must
// commit the selection once the action succeeds.
func (o *Orchestrator) target(a Action) (c *apparatus.Container, selecting bool, err error) {
	id := o.session.SelectedContainerID
	if a.ContainerID != "" && a.ContainerID != id {
		if o.seq.Current() != steps.First {
			if id == "" {
				return nil, false, ErrNoContainerSelected
			}
			return nil, false, fmt.Errorf("%w: container %s is in use, not %s", ErrInvalidAction, id, a.ContainerID)
		}
		if err := o.checkSelectable(a.ContainerID); err != nil {
			return nil, false, err
		}
		id, selecting = a.ContainerID, true
	}
	if id == "" {
		return nil, false, ErrNoContainerSelected
	}
	c, err = o.registry.Container(id)
	if err != nil {
		return nil, false, err
	}
	return c, selecting, nil
}

func (o *Orchestrator) commitSelection(c *apparatus.Container, selecting bool) {
	if !selecting {
		return
	}
	o.session.SelectedContainerID = c.ID()
	o.logger.Debug("container selected", "round", o.session.Round, "container", c.ID())
	o.trace.Log(logging.ActionEntry{Event: "select", Round: o.session.Round, Container: c.ID()})
}

func (o *Orchestrator) relocate(d steps.Descriptor, a Action) (*Effect, error) {
	c, selecting, err := o.target(a)
	if err != nil {
		return nil, err
	}
	from := c.Location()
	if err := o.registry.Relocate(c, d.Target); err != nil {
		return nil, err
	}
	o.commitSelection(c, selecting)

	eff := Effect{Kind: EffectRelocate, Subject: c.ID(), From: from.String(), To: d.Target.String()}
	return o.issue(eff, func() error {
		if err := o.registry.CompleteRelocation(c); err != nil {
			return err
		}
		if d.Step == steps.RemoveBoxFromOven {
			// The oven is shut again as soon as it is empty.
			if err := closeEmpty(o.registry.Oven); err != nil {
				return err
			}
		}
		o.seq.Advance()
		return nil
	}), nil
}

// closeEmpty shuts an appliance without playing an effect.
func closeEmpty(ap *apparatus.Appliance) error {
	if !ap.DoorOpen() {
		return nil
	}
	if err := ap.ToggleDoor(); err != nil {
		return err
	}
	return ap.SettleDoor()
}

func (o *Orchestrator) toggleCap(d steps.Descriptor, a Action) (*Effect, error) {
	c, _, err := o.target(a)
	if err != nil {
		return nil, err
	}
	if c.CapOpen() == d.Opens {
		return nil, fmt.Errorf("%w: container %s cap already %s", ErrInvalidAction, c.ID(), openClosed(c.CapOpen()))
	}
	if err := c.ToggleCap(); err != nil {
		return nil, err
	}

	eff := Effect{Kind: EffectToggleCap, Subject: c.ID(), From: openClosed(!d.Opens), To: openClosed(d.Opens)}
	return o.issue(eff, func() error {
		if err := c.SettleCap(); err != nil {
			return err
		}
		o.seq.Advance()
		return nil
	}), nil
}

func (o *Orchestrator) toggleDoor(d steps.Descriptor, ap *apparatus.Appliance) (*Effect, error) {
	if ap.DoorOpen() == d.Opens {
		return nil, fmt.Errorf("%w: %s already %s", ErrInvalidAction, ap.Kind(), openClosed(ap.DoorOpen()))
	}
	if err := ap.ToggleDoor(); err != nil {
		return nil, err
	}
	if ap.Processing() {
		o.logger.Debug("processing started", "appliance", ap.Kind())
	}

	eff := Effect{Kind: EffectToggleDoor, Subject: string(ap.Kind()), From: openClosed(!d.Opens), To: openClosed(d.Opens)}
	return o.issue(eff, func() error {
		if err := ap.SettleDoor(); err != nil {
			return err
		}
		if d.Step == steps.OpenDesiccatorCapAfterCool && ap.Occupant() != nil {
			return o.retrieveFromDesiccator(ap)
		}
		o.seq.Advance()
		return nil
	}), nil
}

// retrieveFromDesiccator pulls the cooled container straight back to the
// tray once the desiccator is opened, then closes the desiccator and skips
// the manual removal step.
func (o *Orchestrator) retrieveFromDesiccator(ap *apparatus.Appliance) error {
	c := ap.Occupant()
	if err := o.registry.Relocate(c, models.LocationTray); err != nil {
		return err
	}
	eff := Effect{Kind: EffectRelocate, Subject: c.ID(), From: ap.Location().String(), To: models.LocationTray.String()}
	o.issue(eff, func() error {
		if err := o.registry.CompleteRelocation(c); err != nil {
			return err
		}
		if err := closeEmpty(ap); err != nil {
			return err
		}
		o.seq.Advance() // RemoveBoxFromDesiccator
		o.seq.Advance() // CloseBoxCapAfterDry
		return nil
	})
	return nil
}

func (o *Orchestrator) takeSample(a Action) (*Effect, error) {
	if a.Tag == models.TagTool {
		o.toolReady = true
		o.logger.Debug("tool ready", "round", o.session.Round)
		o.emit(Event{Kind: EventToolReady, Step: o.seq.Current()})
		return nil, nil
	}

	if !o.toolReady {
		return nil, ErrToolNotReady
	}
	c, _, err := o.target(a)
	if err != nil {
		return nil, err
	}
	if !c.CapOpen() {
		return nil, fmt.Errorf("container %s: %w", c.ID(), ErrCapClosed)
	}
	if c.Busy() {
		return nil, fmt.Errorf("container %s: %w", c.ID(), ErrBusy)
	}
	soil := a.Soil
	if soil == "" || soil == models.SoilNone {
		soil = o.soils[o.session.Round-1]
	}
	if !soil.Valid() {
		return nil, fmt.Errorf("%w: unknown soil %q", ErrInvalidAction, soil)
	}

	if err := o.ledger.SetSoilType(o.session.Round, soil); err != nil {
		return nil, err
	}
	// The round's container is the one carrying the sample, whether or not
	// its empty weight was recorded.
	if err := o.ledger.SetContainer(o.session.Round, c.ID()); err != nil {
		return nil, err
	}
	o.toolReady = false

	eff := Effect{Kind: EffectScoop, Subject: c.ID(), From: soil.String(), To: c.ID()}
	return o.issue(eff, func() error {
		if err := c.AddSample(soil); err != nil {
			return err
		}
		o.seq.Advance()
		return nil
	}), nil
}

func (o *Orchestrator) recordWeight(a Action, kind ledger.WeightKind) error {
	c, _, err := o.target(a)
	if err != nil {
		return err
	}
	if o.registry.Balance.Occupant() != c {
		return fmt.Errorf("container %s: %w", c.ID(), ErrNotOnBalance)
	}

	round := o.session.Round
	if kind == ledger.WeightEmpty {
		if err := o.ledger.SetContainer(round, c.ID()); err != nil {
			return err
		}
	}
	value, err := o.ledger.SimulateWeighing(o.weigher, round, kind, models.SoilNone)
	if err != nil {
		return err
	}
	o.logger.Debug("weight recorded", "round", round, "kind", kind, "grams", value)
	o.emit(Event{Kind: EventMeasurementTaken, Step: o.seq.Current(), Weight: value, WeightKind: kind})
	o.seq.Advance()
	return nil
}

func (o *Orchestrator) skipWait(step steps.Step) error {
	ap := o.registry.Oven
	if step == steps.WaitForCooling {
		ap = o.registry.Desiccator
	}
	if err := ap.CompleteProcessing(); err != nil {
		return err
	}
	o.logger.Debug("processing complete", "appliance", ap.Kind())
	o.seq.Advance()
	return nil
}

func (o *Orchestrator) dispose(a Action) (*Effect, error) {
	c, _, err := o.target(a)
	if err != nil {
		return nil, err
	}
	if err := o.registry.BeginDisposal(c); err != nil {
		return nil, err
	}
	eff := Effect{Kind: EffectDispose, Subject: c.ID(), From: models.LocationTray.String(), To: models.LocationTrash.String()}
	return o.issue(eff, func() error {
		if err := o.registry.CompleteDisposal(c); err != nil {
			return err
		}
		o.seq.Advance()
		return nil
	}), nil
}
