package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipeql/internal/ir"
)

// Snapshot renders a scenario outcome as indented canonical JSON. Members
// appear in a fixed order and absent parts are omitted.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	obj := ir.JSONObject{{Key: "scenario", Value: ir.JSONString(scenario.Name)}}
	if scenario.Query != "" {
		obj = append(obj, ir.JSONMember{Key: "query", Value: ir.JSONString(scenario.Query)})
	}
	if result.Err != "" {
		obj = append(obj, ir.JSONMember{Key: "error", Value: ir.JSONString(result.Err)})
	}
	if result.ID != "" {
		obj = append(obj, ir.JSONMember{Key: "id", Value: ir.JSONString(result.ID)})
	}
	if result.Pipeline != "" {
		v, err := ir.ParseJSON([]byte(result.Pipeline))
		if err != nil {
			return nil, err
		}
		obj = append(obj, ir.JSONMember{Key: "pipeline", Value: v})
	}
	if result.Output != "" {
		v, err := ir.ParseJSON([]byte(result.Output))
		if err != nil {
			return nil, err
		}
		obj = append(obj, ir.JSONMember{Key: "output", Value: v})
	}
	if len(result.Problems) > 0 {
		problems := make(ir.JSONArray, len(result.Problems))
		for i, p := range result.Problems {
			problems[i] = ir.JSONString(p)
		}
		obj = append(obj, ir.JSONMember{Key: "problems", Value: problems})
	}
	return ir.MarshalIndent(obj, "  ")
}

// RunWithGolden executes a scenario and compares its outcome against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcome doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
