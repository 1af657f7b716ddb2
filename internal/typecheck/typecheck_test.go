package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/parser"
)

func ordersSchema() ir.JObject {
	return ir.MustObject(
		ir.P("customerId", ir.JString{}),
		ir.P("price", ir.JNumber{}),
		ir.P("vip", ir.JBoolean{}),
		ir.P("customer", ir.MustObject(ir.P("name", ir.JString{}))),
		ir.P("items", ir.JArray{Elem: ir.MustObject(
			ir.P("sku", ir.JString{}),
			ir.P("qty", ir.JNumber{}),
			ir.P("tags", ir.JArray{Elem: ir.JString{}}),
		)}),
	)
}

func check(t *testing.T, query string) Result {
	t.Helper()
	p, err := parser.Parse(query)
	require.NoError(t, err)
	return Check(p, ordersSchema())
}

func TestCheckEndToEndExample(t *testing.T) {
	result := check(t, "SELECT AVG(price) AS avgPrice FROM orders GROUP BY customerId")

	assert.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, ir.MustObject(
		ir.P("_id", ir.JString{}),
		ir.P("avgPrice", ir.JNumber{}),
	), result.Output)
}

func TestCheckMapOutput(t *testing.T) {
	result := check(t, `SELECT customer.name, price AS cost, "web" AS channel, MAX(items.qty) AS most, MIN(items.sku) AS firstSku FROM orders`)

	require.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, ir.MustObject(
		ir.P("customer.name", ir.JString{}),
		ir.P("cost", ir.JNumber{}),
		ir.P("channel", ir.JString{}),
		ir.P("most", ir.JNumber{}),
		ir.P("firstSku", ir.JString{}),
	), result.Output)
}

func TestCheckStagesSeePreviousOutput(t *testing.T) {
	ok := check(t, "SELECT price AS cost FROM orders ORDER BY cost DESC")
	assert.True(t, ok.OK(), "problems: %v", ok.Problems)

	bad := check(t, "SELECT price AS cost FROM orders ORDER BY price")
	require.Len(t, bad.Problems, 1)
	assert.Equal(t, 1, bad.Problems[0].Stage)
	assert.Equal(t, "price", bad.Problems[0].Path)
}

func TestCheckPassThroughStages(t *testing.T) {
	result := check(t, "SELECT * FROM orders WHERE price > 10 LIMIT 5 OFFSET 1")
	require.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, ordersSchema(), result.Output)
}

func TestCheckProblems(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		path    string
		message string
	}{
		{
			name:    "unknown field",
			query:   "SELECT missing FROM orders",
			path:    "missing",
			message: "unknown field",
		},
		{
			name:    "unknown nested field",
			query:   "SELECT customer.age FROM orders",
			path:    "customer.age",
			message: `unknown field "age" in customer`,
		},
		{
			name:    "field of scalar",
			query:   "SELECT price.cents FROM orders",
			path:    "price.cents",
			message: `price is a number and has no field "cents"`,
		},
		{
			name:    "avg of string",
			query:   "SELECT AVG(customerId) AS a FROM orders GROUP BY vip",
			path:    "customerId",
			message: "AVG requires a number, found string",
		},
		{
			name:    "min of boolean",
			query:   "SELECT MIN(vip) AS a FROM orders GROUP BY customerId",
			path:    "vip",
			message: "MIN requires a number or string, found boolean",
		},
		{
			name:    "inject over scalar",
			query:   "SELECT SUM(price) AS s FROM orders",
			path:    "price",
			message: "SUM requires an array, found number",
		},
		{
			name:    "compare mismatched kinds",
			query:   `SELECT * FROM orders WHERE price = "ten"`,
			path:    "price",
			message: "cannot compare number with string",
		},
		{
			name:    "ordering on boolean",
			query:   "SELECT * FROM orders WHERE vip > false",
			path:    "vip",
			message: "operator > does not apply to boolean",
		},
		{
			name:    "compare object",
			query:   `SELECT * FROM orders WHERE customer = "x"`,
			path:    "customer",
			message: "cannot compare object with string",
		},
		{
			name:    "sort by object",
			query:   "SELECT * FROM orders ORDER BY customer",
			path:    "customer",
			message: "cannot sort by object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := check(t, tt.query)
			require.Len(t, result.Problems, 1, "problems: %v", result.Problems)
			assert.Equal(t, tt.path, result.Problems[0].Path)
			assert.Equal(t, tt.message, result.Problems[0].Message)
			assert.False(t, result.OK())
		})
	}
}

func TestCheckArrayElementComparison(t *testing.T) {
	result := check(t, `SELECT * FROM orders WHERE items.tags = "gift" AND items.qty >= 2`)
	assert.True(t, result.OK(), "problems: %v", result.Problems)
}

func TestCheckAccumulatesProblems(t *testing.T) {
	result := check(t, "SELECT a, b, price FROM orders")
	require.Len(t, result.Problems, 2)
	assert.Equal(t, "a", result.Problems[0].Path)
	assert.Equal(t, "b", result.Problems[1].Path)

	// Failed fields are left out of the output.
	assert.Equal(t, ir.MustObject(ir.P("price", ir.JNumber{})), result.Output)
}

func TestCheckInputMustBeObject(t *testing.T) {
	result := Check(ir.NewPipeline(), ir.JString{})
	require.Len(t, result.Problems, 1)
	assert.Equal(t, "stage 0: input schema must be an object, got string", result.Problems[0].String())
}

func TestCheckCountStar(t *testing.T) {
	result := check(t, "SELECT COUNT(*) AS n FROM orders GROUP BY vip")
	require.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, ir.MustObject(ir.P("_id", ir.JBoolean{}), ir.P("n", ir.JNumber{})), result.Output)
}

func TestResolve(t *testing.T) {
	s := ordersSchema()

	got, err := Resolve(s, "items.tags")
	require.NoError(t, err)
	assert.Equal(t, ir.JArray{Elem: ir.JArray{Elem: ir.JString{}}}, got)

	got, err = Resolve(s, "items")
	require.NoError(t, err)
	assert.IsType(t, ir.JArray{}, got)

	_, err = Resolve(s, "")
	assert.Error(t, err)
}

func TestProblemString(t *testing.T) {
	p := Problem{Stage: 1, Path: "price", Message: "unknown field"}
	assert.Equal(t, "stage 1: price: unknown field", p.String())
}

func TestCheckGroupedSortOnKey(t *testing.T) {
	result := check(t, "SELECT customerId, AVG(price) AS avgPrice FROM orders GROUP BY customerId ORDER BY customerId")

	require.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, ir.MustObject(
		ir.P("_id", ir.JString{}),
		ir.P("avgPrice", ir.JNumber{}),
	), result.Output)
}

func TestCheckReduceReservedGroupKeyName(t *testing.T) {
	p := ir.NewPipeline(ir.ReduceStage{
		Key:    ir.Field{Path: "customerId"},
		Fields: []ir.ReduceField{{Name: "_id", Op: ir.Count{}}},
	})

	result := Check(p, ordersSchema())
	require.Len(t, result.Problems, 1)
	assert.Equal(t, "stage 0: _id: output field is reserved for the group key", result.Problems[0].String())
	assert.Equal(t, ir.MustObject(ir.P("_id", ir.JString{})), result.Output)

	_, err := ir.MarshalSchema(result.Output)
	assert.NoError(t, err)
}

func TestCheckDuplicateMapOutput(t *testing.T) {
	p := ir.NewPipeline(ir.MapStage{Fields: []ir.MapField{
		{Name: "a", Entry: ir.Project{Value: ir.Field{Path: "price"}}},
		{Name: "a", Entry: ir.Project{Value: ir.Field{Path: "vip"}}},
	}})

	result := Check(p, ordersSchema())
	require.Len(t, result.Problems, 1)
	assert.Equal(t, "stage 0: a: duplicate output field", result.Problems[0].String())
	assert.Equal(t, ir.MustObject(ir.P("a", ir.JNumber{})), result.Output)
}
