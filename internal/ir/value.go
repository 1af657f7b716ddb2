package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pipeql/internal/decimal"
)

// JSONValue is a sealed interface over parsed JSON documents.
// Only JSONNull, JSONString, JSONNumber, JSONBool, JSONArray and JSONObject
// implement this.
//
// Unlike encoding/json's any-based decoding, objects keep their member order
// and numbers keep their exact decimal value.
type JSONValue interface {
	jsonValue() // Sealed - only these types implement it
}

// JSONNull is the JSON null literal.
type JSONNull struct{}

// JSONString is a JSON string.
type JSONString string

// JSONNumber is a JSON number held exactly.
type JSONNumber struct {
	Value decimal.Decimal
}

// JSONBool is a JSON boolean.
type JSONBool bool

// JSONArray is a JSON array.
type JSONArray []JSONValue

// JSONMember is one key/value pair of a JSONObject.
type JSONMember struct {
	Key   string
	Value JSONValue
}

// JSONObject is a JSON object with members in document order.
// Keys are unique; ParseJSON rejects duplicates.
type JSONObject []JSONMember

func (JSONNull) jsonValue()   {}
func (JSONString) jsonValue() {}
func (JSONNumber) jsonValue() {}
func (JSONBool) jsonValue()   {}
func (JSONArray) jsonValue()  {}
func (JSONObject) jsonValue() {}

// Get returns the value stored under key.
func (obj JSONObject) Get(key string) (JSONValue, bool) {
	for _, m := range obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (obj JSONObject) Has(key string) bool {
	_, ok := obj.Get(key)
	return ok
}

// Keys returns the member keys in document order.
func (obj JSONObject) Keys() []string {
	keys := make([]string, len(obj))
	for i, m := range obj {
		keys[i] = m.Key
	}
	return keys
}

// KindOf names the JSON kind of v ("null", "string", "number", "boolean",
// "array", "object").
func KindOf(v JSONValue) string {
	switch v.(type) {
	case JSONNull:
		return "null"
	case JSONString:
		return "string"
	case JSONNumber:
		return "number"
	case JSONBool:
		return "boolean"
	case JSONArray:
		return "array"
	case JSONObject:
		return "object"
	case nil:
		return "missing"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ParseJSON decodes exactly one JSON document.
// Object member order and number text are preserved; duplicate keys and
// trailing data are rejected.
func ParseJSON(data []byte) (JSONValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseJSONValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return v, nil
}

// parseJSONValue reads the next complete value from dec.
func parseJSONValue(dec *json.Decoder) (JSONValue, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unexpected end of JSON input")
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseJSONObject(dec)
		case '[':
			return parseJSONArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q at offset %d", rune(t), dec.InputOffset())
	case string:
		return JSONString(t), nil
	case json.Number:
		d, err := decimal.Parse(string(t))
		if err != nil {
			return nil, err
		}
		return JSONNumber{Value: d}, nil
	case bool:
		return JSONBool(t), nil
	case nil:
		return JSONNull{}, nil
	default:
		return nil, fmt.Errorf("unsupported JSON token %T", tok)
	}
}

func parseJSONObject(dec *json.Decoder) (JSONValue, error) {
	obj := JSONObject{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string at offset %d", dec.InputOffset())
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate object key %q", key)
		}
		seen[key] = true

		val, err := parseJSONValue(dec)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", key, err)
		}
		obj = append(obj, JSONMember{Key: key, Value: val})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseJSONArray(dec *json.Decoder) (JSONValue, error) {
	arr := JSONArray{}
	for dec.More() {
		val, err := parseJSONValue(dec)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", len(arr), err)
		}
		arr = append(arr, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
