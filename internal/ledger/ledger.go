// Package ledger records the weighings of each experiment round and derives
// the soil moisture content from them.
//
// Moisture content follows the oven-drying method:
//
//	w = (m1 - m2) / (m2 - m0) * 100
//
// where m0 is the empty container, m1 the container with wet sample and m2
// the container with the sample after drying.
package ledger

import (
	"fmt"

	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/observe"
)

// Rounds is the number of rounds in a session.
const Rounds = 2

// WeightKind selects which weighing of a round is being recorded.
type WeightKind string

const (
	WeightEmpty WeightKind = "empty"
	WeightWet   WeightKind = "wet"
	WeightDry   WeightKind = "dry"
)

// RoundRecord holds the measurements of one round. Weights are grams,
// MoistureContent is a percentage.
type RoundRecord struct {
	EmptyWeight     float64         `json:"empty_weight"`
	WetWeight       float64         `json:"wet_weight"`
	DryWeight       float64         `json:"dry_weight"`
	MoistureContent float64         `json:"moisture_content"`
	Complete        bool            `json:"complete"`
	SoilType        models.SoilType `json:"soil_type"`
	ContainerID     string          `json:"container_id,omitempty"`
}

func (r *RoundRecord) reset() {
	*r = RoundRecord{SoilType: models.SoilNone}
}

// ComputeMoisture derives the moisture content of r from its weights.
//
// A dry weight at or below the empty weight is physically impossible: the
// record is left incomplete with a zero moisture content and false is
// returned. Otherwise the content is stored, the record marked complete and
// true returned.
func ComputeMoisture(r *RoundRecord) bool {
	if r.DryWeight <= r.EmptyWeight {
		r.MoistureContent = 0
		r.Complete = false
		return false
	}
	r.MoistureContent = (r.WetWeight - r.DryWeight) / (r.DryWeight - r.EmptyWeight) * 100
	r.Complete = true
	return true
}

// Update is published whenever a round record changes.
type Update struct {
	Round  int
	Record RoundRecord
	// Valid is false when a dry weight was recorded that cannot produce a
	// moisture content.
	Valid bool
}

// Ledger owns the round records of a session.
type Ledger struct {
	rounds  [Rounds]RoundRecord
	updates observe.Feed[Update]
}

// New creates a ledger with empty records for both rounds.
func New() *Ledger {
	l := &Ledger{}
	l.Reset()
	return l
}

// OnUpdate subscribes fn to record changes.
func (l *Ledger) OnUpdate(fn func(Update)) (unsubscribe func()) {
	return l.updates.Subscribe(fn)
}

// Reset clears both round records.
func (l *Ledger) Reset() {
	for i := range l.rounds {
		l.rounds[i].reset()
	}
}

// Round returns a copy of the record for round (1-based).
func (l *Ledger) Round(round int) (RoundRecord, error) {
	r, err := l.record(round)
	if err != nil {
		return RoundRecord{}, err
	}
	return *r, nil
}

func (l *Ledger) record(round int) (*RoundRecord, error) {
	if round < 1 || round > Rounds {
		return nil, fmt.Errorf("round %d out of range [1,%d]", round, Rounds)
	}
	return &l.rounds[round-1], nil
}

// RecordWeight stores value (grams) as the given weighing of round.
// Recording the dry weight recomputes the moisture content.
func (l *Ledger) RecordWeight(round int, kind WeightKind, value float64) error {
	r, err := l.record(round)
	if err != nil {
		return err
	}

	valid := true
	switch kind {
	case WeightEmpty:
		r.EmptyWeight = value
	case WeightWet:
		r.WetWeight = value
	case WeightDry:
		r.DryWeight = value
		valid = ComputeMoisture(r)
	default:
		return fmt.Errorf("unknown weight kind: %q", kind)
	}

	l.updates.Emit(Update{Round: round, Record: *r, Valid: valid})
	return nil
}

// SetSoilType records which sample was taken for round.
func (l *Ledger) SetSoilType(round int, soil models.SoilType) error {
	r, err := l.record(round)
	if err != nil {
		return err
	}
	r.SoilType = soil
	return nil
}

// SetContainer records which container carried the sample of round.
func (l *Ledger) SetContainer(round int, containerID string) error {
	r, err := l.record(round)
	if err != nil {
		return err
	}
	r.ContainerID = containerID
	return nil
}

// RecordText renders both rounds with lb.
func (l *Ledger) RecordText(lb Labels) string {
	return lb.Render(l.rounds[0], l.rounds[1])
}

// Records returns copies of both round records.
func (l *Ledger) Records() (round1, round2 RoundRecord) {
	return l.rounds[0], l.rounds[1]
}
