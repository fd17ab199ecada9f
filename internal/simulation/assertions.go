package simulation

import (
	"strings"
	"testing"

	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
)

// AssertEnded asserts that the session reached its end.
func AssertEnded(t *testing.T, result Result) {
	t.Helper()
	if !result.Ended() {
		t.Errorf("AssertEnded: session is %s at step %s, want ended", result.Final.State, result.Final.Step)
	}
}

// AssertNoRejections asserts that every scripted action was accepted.
func AssertNoRejections(t *testing.T, result Result) {
	t.Helper()
	for _, r := range result.Rejections {
		t.Errorf("AssertNoRejections: action %d %s at %s rejected: %s", r.Index, r.Action, r.Step, r.Reason)
	}
}

// AssertRejectedAt asserts that the action at 1-based index was refused
// with a reason containing substr.
func AssertRejectedAt(t *testing.T, result Result, index int, substr string) {
	t.Helper()
	for _, r := range result.Rejections {
		if r.Index == index {
			if !strings.Contains(r.Reason, substr) {
				t.Errorf("AssertRejectedAt: action %d rejected with %q, want it to mention %q", index, r.Reason, substr)
			}
			return
		}
	}
	t.Errorf("AssertRejectedAt: action %d was not rejected", index)
}

// AssertMoistureWithin asserts that round completed with a moisture content
// in [min, max].
func AssertMoistureWithin(t *testing.T, result Result, round int, min, max float64) {
	t.Helper()
	if round < 1 || round > ledger.Rounds {
		t.Fatalf("AssertMoistureWithin: no round %d", round)
	}
	rec := result.Rounds[round-1]
	if !rec.Complete {
		t.Errorf("AssertMoistureWithin: round %d incomplete: %+v", round, rec)
		return
	}
	if rec.MoistureContent < min || rec.MoistureContent > max {
		t.Errorf("AssertMoistureWithin: round %d moisture %.4f not in [%.2f, %.2f]", round, rec.MoistureContent, min, max)
	}
}

// AssertWeightsOrdered asserts the physical ordering of every complete
// round: empty < dry <= wet.
func AssertWeightsOrdered(t *testing.T, result Result) {
	t.Helper()
	for i, rec := range result.Rounds {
		if !rec.Complete {
			continue
		}
		if !(rec.EmptyWeight < rec.DryWeight && rec.DryWeight <= rec.WetWeight) {
			t.Errorf("AssertWeightsOrdered: round %d weights empty=%.2f wet=%.2f dry=%.2f out of order",
				i+1, rec.EmptyWeight, rec.WetWeight, rec.DryWeight)
		}
	}
}

// AssertDistinctContainers asserts that the two rounds used different
// containers.
func AssertDistinctContainers(t *testing.T, result Result) {
	t.Helper()
	a, b := result.Rounds[0].ContainerID, result.Rounds[1].ContainerID
	if a == "" || b == "" || a == b {
		t.Errorf("AssertDistinctContainers: rounds used %q and %q", a, b)
	}
}

// AssertEventOrder asserts that the kinds appear in the event stream in
// the given relative order.
func AssertEventOrder(t *testing.T, result Result, kinds ...experiment.EventKind) {
	t.Helper()
	next := 0
	for _, e := range result.Events {
		if next < len(kinds) && e.Kind == kinds[next] {
			next++
		}
	}
	if next < len(kinds) {
		t.Errorf("AssertEventOrder: event %s (position %d) not found in order", kinds[next], next)
	}
}
