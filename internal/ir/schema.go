package ir

import "fmt"

// Schema describes the shape of a document: an object with named, typed
// properties, a homogeneous array, or one of the three JSON scalar kinds.
//
// This is a sealed interface - only JObject, JArray, JString, JNumber and
// JBoolean implement it.
type Schema interface {
	schemaNode()
}

// Property is one named member of a JObject.
type Property struct {
	Name   string
	Schema Schema
}

// JObject is an object schema. Property order follows the declaration.
type JObject struct {
	Properties []Property
}

// JArray is an array whose elements all match Elem.
type JArray struct {
	Elem Schema
}

// JString matches JSON strings.
type JString struct{}

// JNumber matches JSON numbers.
type JNumber struct{}

// JBoolean matches JSON booleans.
type JBoolean struct{}

func (JObject) schemaNode()  {}
func (JArray) schemaNode()   {}
func (JString) schemaNode()  {}
func (JNumber) schemaNode()  {}
func (JBoolean) schemaNode() {}

// NewObject builds a JObject from properties in declaration order,
// rejecting duplicate property names.
func NewObject(props ...Property) (JObject, error) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p.Name] {
			return JObject{}, fmt.Errorf("duplicate property %q", p.Name)
		}
		seen[p.Name] = true
	}
	return JObject{Properties: props}, nil
}

// MustObject is like NewObject but panics on duplicate names.
// Use only with literal property lists.
func MustObject(props ...Property) JObject {
	obj, err := NewObject(props...)
	if err != nil {
		panic(err)
	}
	return obj
}

// P is a shorthand for Property.
// Example: MustObject(P("price", JNumber{}), P("tags", JArray{Elem: JString{}}))
func P(name string, s Schema) Property {
	return Property{Name: name, Schema: s}
}

// Lookup returns the schema of the named property.
func (o JObject) Lookup(name string) (Schema, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

// SchemaKind names the kind of a schema node ("object", "array", "string",
// "number", "boolean").
func SchemaKind(s Schema) string {
	switch s.(type) {
	case JObject:
		return "object"
	case JArray:
		return "array"
	case JString:
		return "string"
	case JNumber:
		return "number"
	case JBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}
