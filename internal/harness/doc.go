// Package harness provides conformance testing for the query compiler.
//
// The harness loads scenarios, compiles their query (or decodes their
// pipeline document), optionally type-checks the result against an input
// schema, and compares everything against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	query: "SELECT AVG(price) AS avgPrice FROM orders GROUP BY customerId"
//	schema_file: orders.yaml      # or schema: '{"price":"number"}'
//	expect:
//	  pipeline: '[{"@":"reduce", ...}]'
//	  output: '{"_id":"string","avgPrice":"number"}'
//	assertions:
//	  - type: stage_count
//	    count: 1
//	  - type: stage_order
//	    stages: [reduce]
//
// A scenario either expects a pipeline (and optionally an output schema or
// a list of type problems) or expects an error, never both.
//
// # Assertion Types
//
//   - stage_count: The pipeline has exactly N stages
//   - stage_order: The given stage operators appear in this order
//   - stage_contains: A stage equal to the given canonical JSON is present
//
// # Golden Files
//
// RunWithGolden snapshots the scenario outcome as indented canonical JSON
// under testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/avg_by_customer.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
