package ir

import (
	"fmt"
	"slices"
)

const rootPath = "$"

func childPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// taggedObject checks that v is an object carrying a string "@" tag.
func taggedObject(node, path string, v JSONValue) (JSONObject, string, error) {
	obj, ok := v.(JSONObject)
	if !ok {
		return nil, "", decodeErr(node, path, "expected a tagged object, got %s", KindOf(v))
	}
	tagVal, ok := obj.Get(KeyOp)
	if !ok {
		return nil, "", decodeErr(node, path, "missing key %q", KeyOp)
	}
	tag, ok := tagVal.(JSONString)
	if !ok {
		return nil, "", decodeErr(node, path, "key %q must be a string, got %s", KeyOp, KindOf(tagVal))
	}
	return obj, string(tag), nil
}

// onlyKeys rejects any member besides "@" and the allowed keys, so that every
// accepted document re-encodes to itself.
func onlyKeys(node, path, tag string, obj JSONObject, allowed ...string) error {
	for _, m := range obj {
		if m.Key == KeyOp || slices.Contains(allowed, m.Key) {
			continue
		}
		return decodeErr(node, path, "unexpected key %q for %q", m.Key, tag)
	}
	return nil
}

func required(node, path string, obj JSONObject, key string) (JSONValue, error) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, decodeErr(node, path, "missing key %q", key)
	}
	return v, nil
}

// DecodeTerminal decodes {"@":"field"|"constant","=":...}.
// A constant's variant is chosen by the JSON kind of its operand.
func DecodeTerminal(v JSONValue) (Terminal, error) {
	return decodeTerminal(v, rootPath)
}

func decodeTerminal(v JSONValue, path string) (Terminal, error) {
	obj, tag, err := taggedObject(NodeTerminal, path, v)
	if err != nil {
		return nil, err
	}
	if tag != TagField && tag != TagConstant {
		return nil, unknownOperator(NodeTerminal, path, tag)
	}
	if err := onlyKeys(NodeTerminal, path, tag, obj, KeyOperand); err != nil {
		return nil, err
	}
	operand, err := required(NodeTerminal, path, obj, KeyOperand)
	if err != nil {
		return nil, err
	}
	opPath := childPath(path, KeyOperand)

	if tag == TagField {
		s, ok := operand.(JSONString)
		if !ok {
			return nil, decodeErr(NodeTerminal, opPath, "field path must be a string, got %s", KindOf(operand))
		}
		if s == "" {
			return nil, decodeErr(NodeTerminal, opPath, "field path must not be empty")
		}
		return Field{Path: string(s)}, nil
	}

	switch c := operand.(type) {
	case JSONString:
		return StringConst{Value: string(c)}, nil
	case JSONBool:
		return BoolConst{Value: bool(c)}, nil
	case JSONNumber:
		return NumberConst{Value: c.Value}, nil
	default:
		return nil, decodeErr(NodeTerminal, opPath, "constant must be a string, boolean or number, got %s", KindOf(operand))
	}
}

// DecodeReduce decodes {"@":"avg"|"min"|"max"|"sum"|"count","=":<terminal>}.
func DecodeReduce(v JSONValue) (Reduce, error) {
	return decodeReduce(v, rootPath)
}

func decodeReduce(v JSONValue, path string) (Reduce, error) {
	obj, tag, err := taggedObject(NodeReduce, path, v)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagAvg, TagMin, TagMax, TagSum, TagCount:
	default:
		return nil, unknownOperator(NodeReduce, path, tag)
	}
	if err := onlyKeys(NodeReduce, path, tag, obj, KeyOperand); err != nil {
		return nil, err
	}

	var operand Terminal
	if raw, ok := obj.Get(KeyOperand); ok {
		operand, err = decodeTerminal(raw, childPath(path, KeyOperand))
		if err != nil {
			return nil, err
		}
	} else if tag != TagCount {
		return nil, decodeErr(NodeReduce, path, "missing key %q", KeyOperand)
	}

	switch tag {
	case TagAvg:
		return Avg{Of: operand}, nil
	case TagMin:
		return Min{Of: operand}, nil
	case TagMax:
		return Max{Of: operand}, nil
	case TagSum:
		return Sum{Of: operand}, nil
	default:
		return Count{Of: operand}, nil
	}
}

// DecodeMapEntry decodes a MapStage entry. Absence of the "[]" key means
// Project (decoded with the Terminal tags); presence means Inject.
func DecodeMapEntry(v JSONValue) (MapEntry, error) {
	return decodeMapEntry(v, rootPath)
}

func decodeMapEntry(v JSONValue, path string) (MapEntry, error) {
	obj, tag, err := taggedObject(NodeMap, path, v)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagField, TagConstant, TagInject:
	default:
		return nil, unknownOperator(NodeMap, path, tag)
	}

	if !obj.Has(KeySource) {
		if tag == TagInject {
			return nil, decodeErr(NodeMap, path, "missing key %q", KeySource)
		}
		t, err := decodeTerminal(obj, path)
		if err != nil {
			return nil, err
		}
		return Project{Value: t}, nil
	}

	if tag != TagInject {
		return nil, decodeErr(NodeMap, path, "unexpected key %q for %q", KeySource, tag)
	}
	if err := onlyKeys(NodeMap, path, tag, obj, KeySource, KeyOperand); err != nil {
		return nil, err
	}
	rawOp, err := required(NodeMap, path, obj, KeyOperand)
	if err != nil {
		return nil, err
	}
	rawSrc, _ := obj.Get(KeySource)

	src, err := decodeTerminal(rawSrc, childPath(path, KeySource))
	if err != nil {
		return nil, err
	}
	op, err := decodeReduce(rawOp, childPath(path, KeyOperand))
	if err != nil {
		return nil, err
	}
	return Inject{Source: src, Op: op}, nil
}

// DecodePredicate decodes a MatchStage predicate.
func DecodePredicate(v JSONValue) (Predicate, error) {
	return decodePredicate(v, rootPath)
}

func decodePredicate(v JSONValue, path string) (Predicate, error) {
	obj, tag, err := taggedObject(NodePredicate, path, v)
	if err != nil {
		return nil, err
	}
	op, isCompare := binaryOpFromTag(tag)
	if !isCompare && tag != TagNot && tag != TagAnd && tag != TagOr {
		return nil, unknownOperator(NodePredicate, path, tag)
	}
	if err := onlyKeys(NodePredicate, path, tag, obj, KeyOperand); err != nil {
		return nil, err
	}
	operand, err := required(NodePredicate, path, obj, KeyOperand)
	if err != nil {
		return nil, err
	}
	opPath := childPath(path, KeyOperand)

	if tag == TagNot {
		inner, err := decodePredicate(operand, opPath)
		if err != nil {
			return nil, err
		}
		return Not{Operand: inner}, nil
	}

	pair, ok := operand.(JSONArray)
	if !ok || len(pair) != 2 {
		return nil, decodeErr(NodePredicate, opPath, "%q expects an array of exactly two operands", tag)
	}

	if isCompare {
		left, err := decodeTerminal(pair[0], indexPath(opPath, 0))
		if err != nil {
			return nil, err
		}
		right, err := decodeTerminal(pair[1], indexPath(opPath, 1))
		if err != nil {
			return nil, err
		}
		return Compare{Op: op, Left: left, Right: right}, nil
	}

	left, err := decodePredicate(pair[0], indexPath(opPath, 0))
	if err != nil {
		return nil, err
	}
	right, err := decodePredicate(pair[1], indexPath(opPath, 1))
	if err != nil {
		return nil, err
	}
	if tag == TagAnd {
		return And{Left: left, Right: right}, nil
	}
	return Or{Left: left, Right: right}, nil
}

// DecodeStage decodes one pipeline stage.
func DecodeStage(v JSONValue) (Stage, error) {
	return decodeStage(v, rootPath)
}

func decodeStage(v JSONValue, path string) (Stage, error) {
	obj, tag, err := taggedObject(NodeStage, path, v)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagMap:
		if err := onlyKeys(NodeStage, path, tag, obj, KeyOperand); err != nil {
			return nil, err
		}
		fields, fieldsPath, err := stageFields(obj, path)
		if err != nil {
			return nil, err
		}
		out := make([]MapField, 0, len(fields))
		for _, m := range fields {
			entry, err := decodeMapEntry(m.Value, childPath(fieldsPath, m.Key))
			if err != nil {
				return nil, err
			}
			out = append(out, MapField{Name: m.Key, Entry: entry})
		}
		stage, err := NewMapStage(out...)
		if err != nil {
			return nil, decodeErr(NodeStage, fieldsPath, "%v", err)
		}
		return stage, nil

	case TagReduce:
		if err := onlyKeys(NodeStage, path, tag, obj, KeyOperand, KeyTertiary); err != nil {
			return nil, err
		}
		fields, fieldsPath, err := stageFields(obj, path)
		if err != nil {
			return nil, err
		}
		out := make([]ReduceField, 0, len(fields))
		for _, m := range fields {
			op, err := decodeReduce(m.Value, childPath(fieldsPath, m.Key))
			if err != nil {
				return nil, err
			}
			out = append(out, ReduceField{Name: m.Key, Op: op})
		}
		var key Terminal
		if raw, ok := obj.Get(KeyTertiary); ok {
			key, err = decodeTerminal(raw, childPath(path, KeyTertiary))
			if err != nil {
				return nil, err
			}
		}
		stage, err := NewReduceStage(key, out...)
		if err != nil {
			return nil, decodeErr(NodeStage, fieldsPath, "%v", err)
		}
		return stage, nil

	case TagMatch:
		if err := onlyKeys(NodeStage, path, tag, obj, KeyOperand); err != nil {
			return nil, err
		}
		raw, err := required(NodeStage, path, obj, KeyOperand)
		if err != nil {
			return nil, err
		}
		pred, err := decodePredicate(raw, childPath(path, KeyOperand))
		if err != nil {
			return nil, err
		}
		return MatchStage{Where: pred}, nil

	case TagSort:
		if err := onlyKeys(NodeStage, path, tag, obj, KeyOperand, KeyTertiary); err != nil {
			return nil, err
		}
		raw, err := required(NodeStage, path, obj, KeyOperand)
		if err != nil {
			return nil, err
		}
		key, err := decodeTerminal(raw, childPath(path, KeyOperand))
		if err != nil {
			return nil, err
		}
		stage := SortStage{Key: key}
		if dir, ok := obj.Get(KeyTertiary); ok {
			if s, isStr := dir.(JSONString); !isStr || s != sortDescText {
				return nil, decodeErr(NodeStage, childPath(path, KeyTertiary), "sort direction must be %q", sortDescText)
			}
			stage.Desc = true
		}
		return stage, nil

	case TagDistinct:
		if err := onlyKeys(NodeStage, path, tag, obj); err != nil {
			return nil, err
		}
		return DistinctStage{}, nil

	case TagSkip, TagLimit:
		if err := onlyKeys(NodeStage, path, tag, obj, KeyOperand); err != nil {
			return nil, err
		}
		raw, err := required(NodeStage, path, obj, KeyOperand)
		if err != nil {
			return nil, err
		}
		n, err := decodeCount(raw, childPath(path, KeyOperand))
		if err != nil {
			return nil, err
		}
		if tag == TagSkip {
			return SkipStage{Count: n}, nil
		}
		return LimitStage{Count: n}, nil

	default:
		return nil, unknownOperator(NodeStage, path, tag)
	}
}

// stageFields returns the "=" object of a map or reduce stage.
func stageFields(obj JSONObject, path string) (JSONObject, string, error) {
	raw, err := required(NodeStage, path, obj, KeyOperand)
	if err != nil {
		return nil, "", err
	}
	fieldsPath := childPath(path, KeyOperand)
	fields, ok := raw.(JSONObject)
	if !ok {
		return nil, "", decodeErr(NodeStage, fieldsPath, "expected an object of output fields, got %s", KindOf(raw))
	}
	return fields, fieldsPath, nil
}

func decodeCount(v JSONValue, path string) (int64, error) {
	num, ok := v.(JSONNumber)
	if !ok {
		return 0, decodeErr(NodeStage, path, "expected a number, got %s", KindOf(v))
	}
	if num.Value.Sign() < 0 {
		return 0, decodeErr(NodeStage, path, "count must not be negative")
	}
	n, err := num.Value.Int64()
	if err != nil {
		return 0, decodeErr(NodeStage, path, "count must be an integer: %v", err)
	}
	return n, nil
}

// DecodePipeline decodes a JSON array of stages.
func DecodePipeline(v JSONValue) (Pipeline, error) {
	arr, ok := v.(JSONArray)
	if !ok {
		return Pipeline{}, decodeErr(NodePipeline, rootPath, "expected an array of stages, got %s", KindOf(v))
	}
	stages := make([]Stage, 0, len(arr))
	for i, elem := range arr {
		s, err := decodeStage(elem, indexPath(rootPath, i))
		if err != nil {
			return Pipeline{}, err
		}
		stages = append(stages, s)
	}
	return Pipeline{Stages: stages}, nil
}

// DecodeSchema decodes a schema document. Only objects, one-element arrays
// and the strings "string", "number" and "boolean" are valid; null,
// booleans and numbers are never valid schema nodes.
func DecodeSchema(v JSONValue) (Schema, error) {
	return decodeSchema(v, rootPath)
}

func decodeSchema(v JSONValue, path string) (Schema, error) {
	switch val := v.(type) {
	case JSONObject:
		props := make([]Property, 0, len(val))
		for _, m := range val {
			s, err := decodeSchema(m.Value, childPath(path, m.Key))
			if err != nil {
				return nil, err
			}
			props = append(props, Property{Name: m.Key, Schema: s})
		}
		obj, err := NewObject(props...)
		if err != nil {
			return nil, decodeErr(NodeSchema, path, "%v", err)
		}
		return obj, nil
	case JSONArray:
		if len(val) != 1 {
			return nil, decodeErr(NodeSchema, path, "exactly one element is expected, got %d", len(val))
		}
		elem, err := decodeSchema(val[0], indexPath(path, 0))
		if err != nil {
			return nil, err
		}
		return JArray{Elem: elem}, nil
	case JSONString:
		switch string(val) {
		case SchemaString:
			return JString{}, nil
		case SchemaNumber:
			return JNumber{}, nil
		case SchemaBoolean:
			return JBoolean{}, nil
		}
		return nil, &DecodeError{Node: NodeSchema, Path: path, Tag: string(val), Message: "unknown schema type"}
	default:
		return nil, decodeErr(NodeSchema, path, "invalid schema node: %s", KindOf(v))
	}
}

// parseForDecode wraps JSON syntax errors as DecodeErrors.
func parseForDecode(data []byte) (JSONValue, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return nil, &DecodeError{Node: NodeJSON, Path: rootPath, Message: err.Error()}
	}
	return v, nil
}

// UnmarshalPipeline decodes canonical pipeline JSON bytes.
func UnmarshalPipeline(data []byte) (Pipeline, error) {
	v, err := parseForDecode(data)
	if err != nil {
		return Pipeline{}, err
	}
	return DecodePipeline(v)
}

// UnmarshalStage decodes canonical stage JSON bytes.
func UnmarshalStage(data []byte) (Stage, error) {
	v, err := parseForDecode(data)
	if err != nil {
		return nil, err
	}
	return DecodeStage(v)
}

// UnmarshalSchema decodes schema JSON bytes.
func UnmarshalSchema(data []byte) (Schema, error) {
	v, err := parseForDecode(data)
	if err != nil {
		return nil, err
	}
	return DecodeSchema(v)
}
