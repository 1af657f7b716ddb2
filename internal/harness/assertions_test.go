package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/ir"
)

func samplePipeline() ir.Pipeline {
	return ir.NewPipeline(
		ir.MatchStage{Where: ir.Compare{Left: ir.Field{Path: "price"}, Op: ir.Gt, Right: ir.NumberConst{Value: mustDecimal("100")}}},
		ir.SortStage{Key: ir.Field{Path: "price"}, Desc: true},
		ir.SkipStage{Count: 5},
		ir.LimitStage{Count: 10},
	)
}

func TestAssertStageCount(t *testing.T) {
	p := samplePipeline()

	assert.NoError(t, evaluateAssertion(p, Assertion{Type: AssertStageCount, Count: 4}))

	err := evaluateAssertion(p, Assertion{Type: AssertStageCount, Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 stages", ae.Expected)
	assert.Equal(t, "4 stages", ae.Actual)
	assert.Len(t, ae.Stages, 4)
}

func TestAssertStageOrder(t *testing.T) {
	p := samplePipeline()

	tests := []struct {
		name   string
		stages []string
		ok     bool
	}{
		{"exact", []string{"match", "sort", "skip", "limit"}, true},
		{"gaps allowed", []string{"match", "limit"}, true},
		{"single", []string{"sort"}, true},
		{"wrong order", []string{"limit", "match"}, false},
		{"absent", []string{"reduce"}, false},
		{"repeated", []string{"limit", "limit"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluateAssertion(p, Assertion{Type: AssertStageOrder, Stages: tt.stages})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertStageOrder, ae.Type)
		})
	}
}

func TestAssertStageOrder_ReportsMissingStage(t *testing.T) {
	err := evaluateAssertion(samplePipeline(), Assertion{Type: AssertStageOrder, Stages: []string{"sort", "match"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `[match sort skip limit] (missing "match")`)
}

func TestAssertStageContains(t *testing.T) {
	p := samplePipeline()

	// Key order does not matter.
	assert.NoError(t, evaluateAssertion(p, Assertion{Type: AssertStageContains, Stage: `{"#":"desc","=":{"=":"price","@":"field"},"@":"sort"}`}))

	err := evaluateAssertion(p, Assertion{Type: AssertStageContains, Stage: `{"@":"limit","=":11}`})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `stage {"@":"limit","=":11}`, ae.Expected)

	err = evaluateAssertion(p, Assertion{Type: AssertStageContains, Stage: `{"@":"unwind"}`})
	require.Error(t, err)
	assert.True(t, ir.IsDecodeError(err))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertStageCount,
		Expected: "1 stages",
		Actual:   "2 stages",
		Stages:   []string{`{"@":"distinct"}`, `{"@":"limit","=":1}`},
	}

	want := "Assertion failed: stage_count\n" +
		"  Expected: 1 stages\n" +
		"  Actual: 2 stages\n" +
		"\nPipeline:\n" +
		"  [0] {\"@\":\"distinct\"}\n" +
		"  [1] {\"@\":\"limit\",\"=\":1}\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertion_UnknownType(t *testing.T) {
	err := evaluateAssertion(samplePipeline(), Assertion{Type: "trace_count"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "trace_count"`)
}
