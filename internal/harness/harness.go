package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/ir"
)

// Runner executes scenarios against a compiler.
type Runner struct {
	compiler *compiler.Compiler
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used by the runner and its compiler.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner returns a Runner. Logs are discarded unless WithLogger is given.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(r)
	}
	r.compiler = compiler.New(compiler.WithLogger(r.logger))
	return r
}

// Run executes a scenario with a default Runner.
func Run(scenario *Scenario) (*Result, error) {
	return NewRunner().Run(scenario)
}

// Run executes a scenario and returns the result.
//
// Expectation mismatches are reported through Result.Errors. The returned
// error is reserved for scenarios that cannot be run at all, such as an
// unreadable schema file or an expectation that is not valid JSON.
func (r *Runner) Run(scenario *Scenario) (*Result, error) {
	schema, err := loadScenarioSchema(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	compiled, err := r.compile(scenario)
	if err != nil {
		result.Err = err.Error()
		switch {
		case scenario.Expect.Error == "":
			result.AddError(fmt.Sprintf("unexpected error: %v", err))
		case !strings.Contains(result.Err, scenario.Expect.Error):
			result.AddError(fmt.Sprintf("error %q does not contain %q", result.Err, scenario.Expect.Error))
		}
		r.finish(scenario, result)
		return result, nil
	}

	result.Pipeline = string(compiled.JSON)
	result.ID = compiled.ID
	if scenario.Expect.Error != "" {
		result.AddError(fmt.Sprintf("expected error containing %q, compiled successfully", scenario.Expect.Error))
	}

	if scenario.Expect.Pipeline != "" {
		want, err := canonicalPipeline(scenario.Expect.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: expect.pipeline: %w", scenario.Name, err)
		}
		if want != result.Pipeline {
			result.AddError(fmt.Sprintf("pipeline mismatch:\n  expected: %s\n  actual:   %s", want, result.Pipeline))
		}
	}

	if schema != nil {
		if err := r.check(scenario, compiled, schema, result); err != nil {
			return nil, err
		}
	}

	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(compiled.Pipeline, a); err != nil {
			result.AddError(err.Error())
		}
	}

	r.finish(scenario, result)
	return result, nil
}

func (r *Runner) compile(scenario *Scenario) (*compiler.Result, error) {
	if scenario.Pipeline != "" {
		return r.compiler.Decode([]byte(scenario.Pipeline))
	}
	return r.compiler.Compile(scenario.Query)
}

func (r *Runner) check(scenario *Scenario, compiled *compiler.Result, schema ir.Schema, result *Result) error {
	_, err := r.compiler.CheckPipeline(compiled, schema)
	var ce *compiler.CheckError
	switch {
	case errors.As(err, &ce):
		for _, p := range ce.Problems {
			result.Problems = append(result.Problems, p.String())
		}
	case err != nil:
		return err
	}

	if compiled.Output != nil {
		out, err := ir.MarshalSchema(compiled.Output)
		if err != nil {
			return fmt.Errorf("scenario %s: encode output schema: %w", scenario.Name, err)
		}
		result.Output = string(out)
	}

	if !slices.Equal(result.Problems, scenario.Expect.Problems) {
		result.AddError(fmt.Sprintf("type problems mismatch:\n  expected: %q\n  actual:   %q", scenario.Expect.Problems, result.Problems))
	}

	if scenario.Expect.Output != "" {
		want, err := canonicalSchema(scenario.Expect.Output)
		if err != nil {
			return fmt.Errorf("scenario %s: expect.output: %w", scenario.Name, err)
		}
		if want != result.Output {
			result.AddError(fmt.Sprintf("output schema mismatch:\n  expected: %s\n  actual:   %s", want, result.Output))
		}
	}
	return nil
}

func (r *Runner) finish(scenario *Scenario, result *Result) {
	if result.Pass {
		r.logger.Info("scenario passed", "name", scenario.Name, "id", result.ID)
		return
	}
	r.logger.Warn("scenario failed", "name", scenario.Name, "errors", len(result.Errors))
}

func loadScenarioSchema(scenario *Scenario) (ir.Schema, error) {
	switch {
	case scenario.Schema != "":
		s, err := compiler.LoadSchemaJSON([]byte(scenario.Schema))
		if err != nil {
			return nil, fmt.Errorf("scenario %s: schema: %w", scenario.Name, err)
		}
		return s, nil
	case scenario.SchemaFile != "":
		s, err := compiler.LoadSchemaFile(scenario.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: schema_file: %w", scenario.Name, err)
		}
		return s, nil
	default:
		return nil, nil
	}
}

func canonicalPipeline(text string) (string, error) {
	p, err := ir.UnmarshalPipeline([]byte(text))
	if err != nil {
		return "", err
	}
	data, err := ir.MarshalPipeline(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func canonicalSchema(text string) (string, error) {
	s, err := ir.UnmarshalSchema([]byte(text))
	if err != nil {
		return "", err
	}
	data, err := ir.MarshalSchema(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
