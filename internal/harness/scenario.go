package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the statement to compile. Exactly one of Query and Pipeline
	// is set.
	Query string `yaml:"query,omitempty"`

	// Pipeline is a pipeline JSON document to decode instead of compiling
	// a query.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Schema is an inline input schema in its canonical JSON encoding.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile points to a .json, .yaml or .cue schema document.
	// Relative paths are resolved against the scenario's directory by
	// LoadScenarioWithBasePath.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Expect holds the expected outcome.
	Expect Expect `yaml:"expect"`

	// Assertions are structural checks on the compiled pipeline.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect specifies the expected compilation outcome.
type Expect struct {
	// Pipeline is the expected pipeline JSON. It is canonicalized before
	// comparison, so it may be written with any key order or spacing.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Output is the expected output schema JSON. Requires an input schema.
	Output string `yaml:"output,omitempty"`

	// Error is a substring the compile error must contain.
	Error string `yaml:"error,omitempty"`

	// Problems lists the expected type problems, in order.
	Problems []string `yaml:"problems,omitempty"`
}

func (e Expect) empty() bool {
	return e.Pipeline == "" && e.Output == "" && e.Error == "" && len(e.Problems) == 0
}

// Assertion validates the structure of the compiled pipeline.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stage_count": Check the pipeline has exactly Count stages
	// - "stage_order": Check the Stages operators appear in order
	// - "stage_contains": Check a stage equal to Stage is present
	Type string `yaml:"type"`

	// Count is the expected number of stages (used by stage_count).
	Count int `yaml:"count,omitempty"`

	// Stages is the expected operator order (used by stage_order).
	Stages []string `yaml:"stages,omitempty"`

	// Stage is the JSON of one stage (used by stage_contains).
	Stage string `yaml:"stage,omitempty"`
}

// Assertion type constants.
const (
	AssertStageCount    = "stage_count"
	AssertStageOrder    = "stage_order"
	AssertStageContains = "stage_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema_file relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by file
// name. Schema files are resolved relative to dir.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenarioWithBasePath(path, dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Query == "" && s.Pipeline == "":
		return fmt.Errorf("one of query or pipeline is required")
	case s.Query != "" && s.Pipeline != "":
		return fmt.Errorf("query and pipeline are mutually exclusive")
	}

	if s.Schema != "" && s.SchemaFile != "" {
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	}
	if s.SchemaFile != "" {
		if _, err := os.Stat(s.SchemaFile); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.SchemaFile)
		}
	}

	if s.Expect.empty() && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	if s.Expect.Error != "" {
		if s.Expect.Pipeline != "" || s.Expect.Output != "" || len(s.Expect.Problems) > 0 {
			return fmt.Errorf("expect.error cannot be combined with other expectations")
		}
		if len(s.Assertions) > 0 {
			return fmt.Errorf("expect.error cannot be combined with assertions")
		}
	}

	hasSchema := s.Schema != "" || s.SchemaFile != ""
	if (s.Expect.Output != "" || len(s.Expect.Problems) > 0) && !hasSchema {
		return fmt.Errorf("expect.output and expect.problems require a schema")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStageCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stage_count", index)
		}
	case AssertStageOrder:
		if len(a.Stages) == 0 {
			return fmt.Errorf("assertions[%d]: stages list is required for stage_order", index)
		}
	case AssertStageContains:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for stage_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
