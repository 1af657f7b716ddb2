package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ordersSchema() ir.Schema {
	return ir.MustObject(
		ir.P("customerId", ir.JString{}),
		ir.P("price", ir.JNumber{}),
		ir.P("items", ir.JArray{Elem: ir.MustObject(
			ir.P("sku", ir.JString{}),
			ir.P("gift", ir.JBoolean{}),
		)}),
	)
}

func TestLoadSchemaFileFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "json",
			file:    "orders.json",
			content: `{"customerId":"string","price":"number","items":[{"sku":"string","gift":"boolean"}]}`,
		},
		{
			name: "yaml",
			file: "orders.yaml",
			content: `customerId: string
price: number
items:
  - sku: string
    gift: boolean
`,
		},
		{
			name: "cue",
			file: "orders.cue",
			content: `customerId: "string"
price:      "number"
items: [{
	sku:  "string"
	gift: "boolean"
}]
`,
		},
		{
			name: "cue with schema field",
			file: "wrapped.cue",
			content: `#Item: {
	sku:  "string"
	gift: "boolean"
}

schema: {
	customerId: "string"
	price:      "number"
	items: [#Item]
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadSchemaFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, ordersSchema(), s)
		})
	}
}

func TestLoadSchemaYAMLKeepsOrder(t *testing.T) {
	s, err := LoadSchemaYAML([]byte("zeta: string\nalpha: number\n"))
	require.NoError(t, err)

	obj, ok := s.(ir.JObject)
	require.True(t, ok)
	require.Len(t, obj.Properties, 2)
	assert.Equal(t, "zeta", obj.Properties[0].Name)
	assert.Equal(t, "alpha", obj.Properties[1].Name)
}

func TestLoadSchemaYAMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"number leaf", "a: 5\n"},
		{"null leaf", "a: ~\n"},
		{"two element array", "a: [string, number]\n"},
		{"unknown type", "a: integer\n"},
		{"duplicate key", "a: string\na: number\n"},
		{"malformed", "a: [\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchemaYAML([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSchemaCUEErrors(t *testing.T) {
	// Not concrete.
	_, err := LoadSchemaFile(writeFile(t, "open.cue", "a: string\n"))
	require.Error(t, err)

	// Syntax error carries a position.
	_, err = LoadSchemaFile(writeFile(t, "broken.cue", "a: {\n"))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())

	// Valid CUE, invalid schema.
	_, err = LoadSchemaFile(writeFile(t, "num.cue", "a: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema node: number")
}

func TestLoadSchemaFileErrors(t *testing.T) {
	_, err := LoadSchemaFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))

	_, err = LoadSchemaFile(writeFile(t, "schema.toml", "a = 1"))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "file", ce.Field)

	_, err = LoadSchemaFile(writeFile(t, "bad.json", `{"a": 5}`))
	assert.True(t, ir.IsDecodeError(err))
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "yaml", Message: "line 1 column 4: boom"}
	assert.Equal(t, "yaml: line 1 column 4: boom", err.Error())
}
