package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/steps"
)

// ErrRejected is returned by a Runner with StopOnReject set when an action
// of the script is refused.
var ErrRejected = errors.New("script action rejected")

// Rejection is an action of the script the orchestrator refused.
type Rejection struct {
	Index  int               `json:"index"` // 1-based position in the script
	Action experiment.Action `json:"action"`
	Step   string            `json:"step"`
	Reason string            `json:"reason"`
}

// Measurement is a balance reading recorded during the run.
type Measurement struct {
	Round int               `json:"round"`
	Kind  ledger.WeightKind `json:"kind"`
	Grams float64           `json:"grams"`
}

// Result captures everything a scripted session produced.
type Result struct {
	Name         string                            `json:"name"`
	Seed         uint64                            `json:"seed"`
	Language     string                            `json:"language"`
	Performed    int                               `json:"performed"`
	Effects      int                               `json:"effects"`
	Rejections   []Rejection                       `json:"rejections,omitempty"`
	Measurements []Measurement                     `json:"measurements"`
	Rounds       [ledger.Rounds]ledger.RoundRecord `json:"rounds"`
	RecordText   string                            `json:"record_text"`
	Final        experiment.Snapshot               `json:"final"`
	// Events is every event emitted, in order. Not serialized.
	Events []experiment.Event `json:"-"`
}

// Ended reports whether the script carried the session to its end.
func (r Result) Ended() bool { return r.Final.State == experiment.StateEnded }

// Runner replays scripts against fresh orchestrators.
type Runner struct {
	opts experiment.Options

	// StopOnReject aborts the run at the first refused action. Otherwise
	// refused actions are collected and the script continues.
	StopOnReject bool
}

// NewRunner creates a runner whose sessions start from opts. Fields set in
// a script take precedence.
func NewRunner(opts experiment.Options) *Runner {
	return &Runner{opts: opts}
}

// Run starts a session, performs every action of script and acknowledges
// each requested effect, including automatic follow-ups, as soon as it is
// issued. The partial result is returned together with any error.
func (r *Runner) Run(ctx context.Context, script Script) (Result, error) {
	opts := r.options(script)
	res := Result{Name: script.Name, Seed: opts.Seed, Language: opts.Language}
	if res.Language == "" {
		res.Language = "en"
	}

	o, err := experiment.New(opts)
	if err != nil {
		return res, err
	}
	unsubscribe := o.OnEvent(func(e experiment.Event) {
		res.Events = append(res.Events, e)
		if e.Kind == experiment.EventMeasurementTaken {
			res.Measurements = append(res.Measurements, Measurement{Round: e.Round, Kind: e.WeightKind, Grams: e.Weight})
		}
	})
	defer unsubscribe()

	if err := o.Start(); err != nil {
		return res, err
	}

	for i, a := range script.Actions {
		if err := ctx.Err(); err != nil {
			r.finish(&res, o)
			return res, err
		}
		if o.State() != experiment.StateRunning {
			r.finish(&res, o)
			return res, fmt.Errorf("action %d %s: session already %s", i+1, a, o.State())
		}

		step := o.CurrentStep()
		eff, err := o.ReportAction(a)
		if err != nil {
			res.Rejections = append(res.Rejections, Rejection{Index: i + 1, Action: a, Step: step.String(), Reason: err.Error()})
			if r.StopOnReject {
				r.finish(&res, o)
				return res, fmt.Errorf("%w: action %d %s at %s: %v", ErrRejected, i+1, a, step, err)
			}
			continue
		}
		res.Performed++

		if err := acknowledgeAll(o, eff, &res.Effects); err != nil {
			r.finish(&res, o)
			return res, fmt.Errorf("action %d %s: %w", i+1, a, err)
		}
	}

	r.finish(&res, o)
	return res, nil
}

// acknowledgeAll completes eff and every follow-up it triggers.
func acknowledgeAll(o *experiment.Orchestrator, eff *experiment.Effect, count *int) error {
	for eff != nil {
		next, err := o.AcknowledgeEffectComplete(eff.Handle)
		if err != nil {
			return err
		}
		*count++
		eff = next
	}
	return nil
}

func (r *Runner) options(script Script) experiment.Options {
	opts := r.opts
	if script.Seed != 0 {
		opts.Seed = script.Seed
	}
	if script.Language != "" {
		opts.Language = script.Language
	}
	if len(script.Containers) > 0 {
		opts.ContainerIDs = script.Containers
	}
	for i, s := range script.RoundSoils {
		if i < ledger.Rounds && s != "" {
			opts.RoundSoils[i] = s
		}
	}
	if opts.Weigher == nil {
		opts.Seed = ledger.ResolveSeed(opts.Seed)
	}
	return opts
}

func (r *Runner) finish(res *Result, o *experiment.Orchestrator) {
	r1, r2 := o.Records()
	res.Rounds = [ledger.Rounds]ledger.RoundRecord{r1, r2}
	res.RecordText = o.RecordText()
	res.Final = o.Snapshot()
}

// StepsVisited returns the distinct steps the run entered, in order.
func (r Result) StepsVisited() []steps.Step {
	var visited []steps.Step
	for _, e := range r.Events {
		if e.Kind == experiment.EventStepChanged && e.Step != steps.NotStarted {
			visited = append(visited, e.Step)
		}
	}
	return visited
}

// SoilFor returns the soil sampled in round.
func (r Result) SoilFor(round int) models.SoilType {
	if round < 1 || round > ledger.Rounds {
		return models.SoilNone
	}
	return r.Rounds[round-1].SoilType
}
