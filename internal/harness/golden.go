package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// Snapshot returns the canonical JSON form of a run: scenario name,
// persisted trace and final document. It is what golden files store.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, e := range result.Trace {
		trace[i] = e.record()
	}

	docJSON, err := result.Document.MarshalJSON()
	if err != nil {
		return nil, err
	}
	doc, err := ir.ParseValue(docJSON)
	if err != nil {
		return nil, err
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario_name": ir.String(scenarioName),
		"trace":         trace,
		"document":      doc,
	})
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

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
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
