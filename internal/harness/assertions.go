package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pipeql/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Stages   []string // Canonical JSON of every stage, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nPipeline:\n")
	for i, s := range e.Stages {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, s)
	}

	return buf.String()
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(p ir.Pipeline, a Assertion) error {
	stages, err := stageTexts(p)
	if err != nil {
		return err
	}
	switch a.Type {
	case AssertStageCount:
		return assertStageCount(stages, a)
	case AssertStageOrder:
		return assertStageOrder(p, stages, a)
	case AssertStageContains:
		return assertStageContains(stages, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertStageCount checks the pipeline has exactly a.Count stages.
func assertStageCount(stages []string, a Assertion) error {
	if len(stages) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStageCount,
		Expected: fmt.Sprintf("%d stages", a.Count),
		Actual:   fmt.Sprintf("%d stages", len(stages)),
		Stages:   stages,
	}
}

// assertStageOrder checks that the operators in a.Stages appear in order.
// They don't need to be consecutive.
func assertStageOrder(p ir.Pipeline, stages []string, a Assertion) error {
	ops := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		ops[i] = stageOp(s)
	}

	next := 0
	for _, op := range ops {
		if next < len(a.Stages) && op == a.Stages[next] {
			next++
		}
	}
	if next == len(a.Stages) {
		return nil
	}

	return &AssertionError{
		Type:     AssertStageOrder,
		Expected: fmt.Sprintf("stages in order %v", a.Stages),
		Actual:   fmt.Sprintf("%v (missing %q)", ops, a.Stages[next]),
		Stages:   stages,
	}
}

// assertStageContains checks that some stage equals a.Stage after
// canonicalization.
func assertStageContains(stages []string, a Assertion) error {
	want, err := ir.UnmarshalStage([]byte(a.Stage))
	if err != nil {
		return fmt.Errorf("%s: %w", AssertStageContains, err)
	}
	data, err := ir.MarshalStage(want)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertStageContains, err)
	}
	for _, s := range stages {
		if s == string(data) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertStageContains,
		Expected: fmt.Sprintf("stage %s", data),
		Actual:   "not found in pipeline",
		Stages:   stages,
	}
}

func stageTexts(p ir.Pipeline) ([]string, error) {
	texts := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		data, err := ir.MarshalStage(s)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		texts[i] = string(data)
	}
	return texts, nil
}

// stageOp returns the canonical operator tag of a stage.
func stageOp(s ir.Stage) string {
	switch s.(type) {
	case ir.MapStage:
		return ir.TagMap
	case ir.ReduceStage:
		return ir.TagReduce
	case ir.MatchStage:
		return ir.TagMatch
	case ir.SortStage:
		return ir.TagSort
	case ir.DistinctStage:
		return ir.TagDistinct
	case ir.SkipStage:
		return ir.TagSkip
	case ir.LimitStage:
		return ir.TagLimit
	default:
		return fmt.Sprintf("%T", s)
	}
}
