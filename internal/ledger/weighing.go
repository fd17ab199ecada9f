package ledger

import (
	"math/rand/v2"

	"github.com/nvandessel/soillab/internal/models"
)

// Nominal masses in grams.
const (
	EmptyContainerWeight = 25.00
	DrySoilWeight        = 50.00
	WetSoilWeight        = 60.00
	DrySoilMoistureLoss  = 1.50
	WetSoilMoistureLoss  = 10.00
)

// BaseSoilWeight returns the nominal mass of a freshly taken sample.
// Anything other than wet soil weighs as dry soil.
func BaseSoilWeight(soil models.SoilType) float64 {
	if soil == models.SoilWet {
		return WetSoilWeight
	}
	return DrySoilWeight
}

// MoistureLoss returns the mass a sample loses in the oven.
func MoistureLoss(soil models.SoilType) float64 {
	if soil == models.SoilWet {
		return WetSoilMoistureLoss
	}
	return DrySoilMoistureLoss
}

// NominalWeight is the noiseless balance reading for a container in the
// given state.
func NominalWeight(hasSample bool, soil models.SoilType, dried bool) float64 {
	w := EmptyContainerWeight
	if !hasSample || soil == models.SoilNone {
		return w
	}
	w += BaseSoilWeight(soil)
	if dried {
		w -= MoistureLoss(soil)
	}
	return w
}

// Source yields uniform values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Weigher produces the reading for a weighing of a round. prior carries the
// weights recorded so far in that round.
type Weigher interface {
	Weigh(prior RoundRecord, kind WeightKind, soil models.SoilType) float64
}

// Simulator produces plausible noisy readings:
//
//	empty: 25.00 + U(-0.5, 0.5)
//	wet:   empty + base(soil) + U(0, 2)
//	dry:   wet - loss(soil) - U(0, 1)
type Simulator struct {
	src Source
}

// NewSimulator creates a simulator drawing noise from src. A nil src uses
// a generator seeded with seed.
func NewSimulator(src Source, seed uint64) *Simulator {
	if src == nil {
		src = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &Simulator{src: src}
}

// ResolveSeed returns seed, or a random non-zero seed when seed is 0.
func ResolveSeed(seed uint64) uint64 {
	for seed == 0 {
		seed = rand.Uint64()
	}
	return seed
}

func (s *Simulator) uniform(a, b float64) float64 {
	return a + (b-a)*s.src.Float64()
}

// Weigh implements Weigher.
func (s *Simulator) Weigh(prior RoundRecord, kind WeightKind, soil models.SoilType) float64 {
	switch kind {
	case WeightEmpty:
		return EmptyContainerWeight + s.uniform(-0.5, 0.5)
	case WeightWet:
		return prior.EmptyWeight + BaseSoilWeight(soil) + s.uniform(0, 2)
	case WeightDry:
		return prior.WetWeight - MoistureLoss(soil) - s.uniform(0, 1)
	}
	return 0
}

// FixedWeigher returns preset readings regardless of state.
type FixedWeigher struct {
	Empty, Wet, Dry float64
}

// Weigh implements Weigher.
func (f FixedWeigher) Weigh(_ RoundRecord, kind WeightKind, _ models.SoilType) float64 {
	switch kind {
	case WeightEmpty:
		return f.Empty
	case WeightWet:
		return f.Wet
	case WeightDry:
		return f.Dry
	}
	return 0
}

// SimulateWeighing takes a reading of round with w and records it. The soil
// type is the one recorded for the round unless soil overrides it.
func (l *Ledger) SimulateWeighing(w Weigher, round int, kind WeightKind, soil models.SoilType) (float64, error) {
	r, err := l.record(round)
	if err != nil {
		return 0, err
	}
	if soil == models.SoilNone {
		soil = r.SoilType
	}
	value := w.Weigh(*r, kind, soil)
	if err := l.RecordWeight(round, kind, value); err != nil {
		return 0, err
	}
	return value, nil
}
