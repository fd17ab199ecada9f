// Package simulation drives complete experiment sessions from scripts of
// learner interactions.
//
// A Script lists the interactions a learner performs, optionally with the
// seed, containers and soils of the session. Run replays it against a real
// Orchestrator, acknowledging every requested effect immediately, and
// collects the events, measurements and rejections into a Result. Scripts
// are Go values (see StandardScript) or YAML files (see LoadScript).
//
// The same harness backs the `soillab run` command and the end-to-end tests.
//
// Usage:
//
//	func TestTwoRounds(t *testing.T) {
//	    script := simulation.StandardScript("A", "B")
//	    script.Seed = 7
//	    result := simulation.MustRun(t, script, experiment.Options{})
//	    simulation.AssertEnded(t, result)
//	    simulation.AssertMoistureWithin(t, result, 1, 0.5, 6.5)
//	}
package simulation
