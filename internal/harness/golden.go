package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sharedstore/internal/ir"
)

// Snapshot is the deterministic record of a scenario run compared against
// golden files.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        map[string][]ir.Object
}

// canonical renders the snapshot as an ir.Object so it serializes through
// ir.MarshalCanonical. Empty fields are omitted.
func (s *Snapshot) canonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.Object{
			"seq":    ir.Int(event.Seq),
			"launch": ir.Int(event.Launch),
			"action": ir.String(event.Action),
		}
		if event.Entity != "" {
			obj["entity"] = ir.String(event.Entity)
		}
		if len(event.Args) > 0 {
			obj["args"] = event.Args
		}
		if event.Outcome != "" {
			obj["outcome"] = ir.String(event.Outcome)
		}
		trace[i] = obj
	}

	state := ir.Object{}
	for entity, objs := range s.State {
		arr := make(ir.Array, len(objs))
		for i, o := range objs {
			arr[i] = o
		}
		state[entity] = arr
	}

	return ir.Object{
		"scenario": ir.String(s.ScenarioName),
		"trace":    trace,
		"state":    state,
	}
}

// MarshalSnapshot serializes a result for golden comparison.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	return ir.MarshalCanonical(snapshot.canonical())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
