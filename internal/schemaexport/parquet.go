package schemaexport

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/roach88/pipeql/internal/ir"
)

// Parquet builds a Parquet message schema. The root must be an object.
// Numbers map to DOUBLE, strings to UTF-8 byte arrays, arrays to repeated
// fields. Every field is required.
func Parquet(name string, s ir.Schema) (*parquet.Schema, error) {
	obj, ok := s.(ir.JObject)
	if !ok {
		return nil, fmt.Errorf("parquet: root schema must be an object, got %s", ir.SchemaKind(s))
	}
	root, err := parquetGroup(obj)
	if err != nil {
		return nil, err
	}
	return parquet.NewSchema(name, root), nil
}

func parquetGroup(obj ir.JObject) (parquet.Group, error) {
	group := make(parquet.Group, len(obj.Properties))
	for _, p := range obj.Properties {
		node, err := parquetNode(p.Schema)
		if err != nil {
			return nil, fmt.Errorf("parquet: field %q: %w", p.Name, err)
		}
		group[p.Name] = node
	}
	return group, nil
}

func parquetNode(s ir.Schema) (parquet.Node, error) {
	switch schema := s.(type) {
	case ir.JObject:
		return parquetGroup(schema)
	case ir.JArray:
		elem, err := parquetNode(schema.Elem)
		if err != nil {
			return nil, err
		}
		// A repeated field cannot repeat again directly.
		if elem.Repeated() {
			elem = parquet.Group{"element": elem}
		}
		return parquet.Repeated(elem), nil
	case ir.JString:
		return parquet.String(), nil
	case ir.JNumber:
		return parquet.Leaf(parquet.DoubleType), nil
	case ir.JBoolean:
		return parquet.Leaf(parquet.BooleanType), nil
	default:
		return nil, fmt.Errorf("unsupported schema %T", s)
	}
}
