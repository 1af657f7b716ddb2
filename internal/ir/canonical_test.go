package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/decimal"
)

func num(s string) JSONNumber {
	return JSONNumber{Value: decimal.MustParse(s)}
}

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    JSONValue
		expected string
	}{
		{"string", JSONString("hello"), `"hello"`},
		{"empty string", JSONString(""), `""`},
		{"integer", num("42"), "42"},
		{"negative", num("-100"), "-100"},
		{"decimal", num("19.99"), "19.99"},
		{"trailing zero", num("1.50"), "1.50"},
		{"bool true", JSONBool(true), "true"},
		{"bool false", JSONBool(false), "false"},
		{"null", JSONNull{}, "null"},
		{"empty array", JSONArray{}, "[]"},
		{"empty object", JSONObject{}, "{}"},
		{"array", JSONArray{num("1"), num("2"), num("3")}, "[1,2,3]"},
		{"simple object", JSONObject{{Key: "a", Value: num("1")}}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalKeepsMemberOrder(t *testing.T) {
	obj := JSONObject{
		{Key: "zebra", Value: num("1")},
		{Key: "alpha", Value: num("2")},
		{Key: "@", Value: JSONString("x")},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"alpha":2,"@":"x"}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(JSONString("<script>a && b</script>"))
	require.NoError(t, err)
	assert.Equal(t, `"<script>a && b</script>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	result, err := MarshalCanonical(JSONString("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(JSONString("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(JSONString(`a\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(JSONString("tab\there\nquote\""))
	require.NoError(t, err)
	assert.Equal(t, `"tab\there\nquote\""`, string(result))
}

func TestMarshalCanonicalRejectsMissing(t *testing.T) {
	_, err := MarshalCanonical(JSONArray{nil})
	assert.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	obj := JSONObject{{Key: "b", Value: num("1.0")}, {Key: "a", Value: JSONArray{JSONBool(true)}}}

	result, err := MarshalIndent(obj, "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1.0,\n  \"a\": [\n    true\n  ]\n}", string(result))
}

func TestCanonicalParseRoundTrip(t *testing.T) {
	inputs := []string{
		`{"@":"reduce","=":{"avgPrice":{"@":"avg","=":{"@":"field","=":"price"}}},"#":{"@":"field","=":"customerId"}}`,
		`[1,2.50,"x",true,null,{}]`,
		`{"z":{"y":{"x":[]}}}`,
	}

	for _, input := range inputs {
		v, err := ParseJSON([]byte(input))
		require.NoError(t, err)
		out, err := MarshalCanonical(v)
		require.NoError(t, err)
		assert.Equal(t, input, string(out))
	}
}
