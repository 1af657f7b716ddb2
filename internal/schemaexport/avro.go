// Package schemaexport translates document schemas into the schema
// languages of columnar and row-oriented storage formats, so a pipeline's
// output shape can be handed to Avro and Parquet writers.
package schemaexport

import (
	"fmt"
	"regexp"

	goavro "github.com/linkedin/goavro/v2"

	"github.com/roach88/pipeql/internal/decimal"
	"github.com/roach88/pipeql/internal/ir"
)

// Avro numbers are exact decimals with this precision and scale.
const (
	AvroDecimalPrecision = 38
	AvroDecimalScale     = 9
)

var avroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Avro compiles the schema into an Avro codec. The root must be an object;
// it becomes a record called name. Nested objects become records named
// after their path, numbers become bytes with the decimal logical type.
func Avro(name string, s ir.Schema) (*goavro.Codec, error) {
	text, err := AvroSchema(name, s)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(string(text))
	if err != nil {
		return nil, fmt.Errorf("avro: %w", err)
	}
	return codec, nil
}

// AvroSchema returns the Avro schema document for s.
func AvroSchema(name string, s ir.Schema) ([]byte, error) {
	obj, ok := s.(ir.JObject)
	if !ok {
		return nil, fmt.Errorf("avro: root schema must be an object, got %s", ir.SchemaKind(s))
	}
	if !avroName.MatchString(name) {
		return nil, fmt.Errorf("avro: invalid record name %q", name)
	}
	v, err := avroRecord(name, obj)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(v)
}

func avroRecord(name string, obj ir.JObject) (ir.JSONValue, error) {
	fields := make(ir.JSONArray, 0, len(obj.Properties))
	for _, p := range obj.Properties {
		if !avroName.MatchString(p.Name) {
			return nil, fmt.Errorf("avro: field %q of %s is not a valid Avro name", p.Name, name)
		}
		t, err := avroType(name+"_"+p.Name, p.Schema)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.JSONObject{
			{Key: "name", Value: ir.JSONString(p.Name)},
			{Key: "type", Value: t},
		})
	}
	return ir.JSONObject{
		{Key: "type", Value: ir.JSONString("record")},
		{Key: "name", Value: ir.JSONString(name)},
		{Key: "fields", Value: fields},
	}, nil
}

// avroType maps one schema node. path names any record it creates.
func avroType(path string, s ir.Schema) (ir.JSONValue, error) {
	switch schema := s.(type) {
	case ir.JObject:
		return avroRecord(path, schema)
	case ir.JArray:
		items, err := avroType(path+"_item", schema.Elem)
		if err != nil {
			return nil, err
		}
		return ir.JSONObject{
			{Key: "type", Value: ir.JSONString("array")},
			{Key: "items", Value: items},
		}, nil
	case ir.JString:
		return ir.JSONString("string"), nil
	case ir.JBoolean:
		return ir.JSONString("boolean"), nil
	case ir.JNumber:
		return ir.JSONObject{
			{Key: "type", Value: ir.JSONString("bytes")},
			{Key: "logicalType", Value: ir.JSONString("decimal")},
			{Key: "precision", Value: ir.JSONNumber{Value: decimal.FromInt64(AvroDecimalPrecision)}},
			{Key: "scale", Value: ir.JSONNumber{Value: decimal.FromInt64(AvroDecimalScale)}},
		}, nil
	default:
		return nil, fmt.Errorf("avro: unsupported schema %T at %s", s, path)
	}
}
