package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/soillab/internal/experiment"
)

// MustRun replays script with a sandboxed HOME and fails the test on any
// error other than collected rejections.
func MustRun(t *testing.T, script Script, opts experiment.Options) Result {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	result, err := NewRunner(opts).Run(context.Background(), script)
	if err != nil {
		t.Fatalf("MustRun(%s): %v", script.Name, err)
	}
	return result
}

// WithAction returns a copy of script with a inserted before the action at
// 1-based index.
func WithAction(script Script, index int, a experiment.Action) Script {
	actions := make([]experiment.Action, 0, len(script.Actions)+1)
	actions = append(actions, script.Actions[:index-1]...)
	actions = append(actions, a)
	actions = append(actions, script.Actions[index-1:]...)
	script.Actions = actions
	return script
}

// Truncate returns a copy of script keeping only its first n actions.
func Truncate(script Script, n int) Script {
	if n < len(script.Actions) {
		script.Actions = append([]experiment.Action(nil), script.Actions[:n]...)
	}
	return script
}
