package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/decimal"
)

func TestJSONValueSealed(t *testing.T) {
	var _ JSONValue = JSONNull{}
	var _ JSONValue = JSONString("test")
	var _ JSONValue = JSONNumber{Value: decimal.FromInt64(42)}
	var _ JSONValue = JSONBool(true)
	var _ JSONValue = JSONArray{JSONString("a")}
	var _ JSONValue = JSONObject{{Key: "key", Value: JSONString("value")}}
}

func TestParseJSONKeepsMemberOrder(t *testing.T) {
	v, err := ParseJSON([]byte(`{"zebra":1,"apple":2,"mango":{"b":true,"a":null}}`))
	require.NoError(t, err)

	obj, ok := v.(JSONObject)
	require.True(t, ok)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, obj.Keys())

	inner, ok := obj.Get("mango")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, inner.(JSONObject).Keys())

	null, _ := inner.(JSONObject).Get("a")
	assert.Equal(t, JSONNull{}, null)
}

func TestParseJSONExactNumbers(t *testing.T) {
	v, err := ParseJSON([]byte(`[19.99, 1.50, 12345678901234567890123]`))
	require.NoError(t, err)

	arr := v.(JSONArray)
	require.Len(t, arr, 3)
	assert.Equal(t, "19.99", arr[0].(JSONNumber).Value.String())
	assert.Equal(t, "1.50", arr[1].(JSONNumber).Value.String())
	assert.Equal(t, "12345678901234567890123", arr[2].(JSONNumber).Value.String())
}

func TestParseJSONScalars(t *testing.T) {
	tests := []struct {
		input string
		want  JSONValue
	}{
		{`"hi"`, JSONString("hi")},
		{`true`, JSONBool(true)},
		{`false`, JSONBool(false)},
		{`null`, JSONNull{}},
		{`[]`, JSONArray{}},
		{`{}`, JSONObject{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseJSON([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"duplicate key", `{"a":1,"a":2}`},
		{"trailing value", `{} {}`},
		{"trailing garbage", `[1]x`},
		{"unterminated", `{"a":`},
		{"bare word", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "null", KindOf(JSONNull{}))
	assert.Equal(t, "string", KindOf(JSONString("")))
	assert.Equal(t, "number", KindOf(JSONNumber{}))
	assert.Equal(t, "boolean", KindOf(JSONBool(false)))
	assert.Equal(t, "array", KindOf(JSONArray{}))
	assert.Equal(t, "object", KindOf(JSONObject{}))
	assert.Equal(t, "missing", KindOf(nil))
}

func TestJSONObjectLookup(t *testing.T) {
	obj := JSONObject{{Key: "@", Value: JSONString("field")}, {Key: "=", Value: JSONString("price")}}

	assert.True(t, obj.Has("@"))
	assert.False(t, obj.Has("#"))
	v, ok := obj.Get("=")
	require.True(t, ok)
	assert.Equal(t, JSONString("price"), v)
}
