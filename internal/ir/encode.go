package ir

import (
	"fmt"

	"github.com/roach88/pipeql/internal/decimal"
)

// Reserved keys of the canonical tagged encoding.
const (
	KeyOp        = "@"  // operator / node kind
	KeyOperand   = "="  // primary operand
	KeySource    = "[]" // Inject source terminal
	KeyTertiary  = "#"  // ReduceStage group key, SortStage direction
	sortDescText = "desc"
)

// Operator tags.
const (
	TagField    = "field"
	TagConstant = "constant"
	TagAvg      = "avg"
	TagMin      = "min"
	TagMax      = "max"
	TagSum      = "sum"
	TagCount    = "count"
	TagInject   = "inject"
	TagMap      = "map"
	TagReduce   = "reduce"
	TagMatch    = "match"
	TagSort     = "sort"
	TagDistinct = "distinct"
	TagSkip     = "skip"
	TagLimit    = "limit"
	TagNot      = "not"
	TagAnd      = "and"
	TagOr       = "or"
)

// Schema leaf names.
const (
	SchemaString  = "string"
	SchemaNumber  = "number"
	SchemaBoolean = "boolean"
)

// tagged builds {"@": tag, ...members}.
func tagged(tag string, members ...JSONMember) JSONObject {
	obj := make(JSONObject, 0, len(members)+1)
	obj = append(obj, JSONMember{Key: KeyOp, Value: JSONString(tag)})
	return append(obj, members...)
}

func member(key string, v JSONValue) JSONMember {
	return JSONMember{Key: key, Value: v}
}

// EncodeTerminal encodes a Terminal as {"@":"field"|"constant","=":...}.
func EncodeTerminal(t Terminal) (JSONValue, error) {
	switch term := t.(type) {
	case Field:
		return tagged(TagField, member(KeyOperand, JSONString(term.Path))), nil
	case StringConst:
		return tagged(TagConstant, member(KeyOperand, JSONString(term.Value))), nil
	case BoolConst:
		return tagged(TagConstant, member(KeyOperand, JSONBool(term.Value))), nil
	case NumberConst:
		return tagged(TagConstant, member(KeyOperand, JSONNumber{Value: term.Value})), nil
	case nil:
		return nil, fmt.Errorf("encode terminal: nil terminal")
	default:
		return nil, fmt.Errorf("encode terminal: unsupported type %T", t)
	}
}

// EncodeReduce encodes a Reduce operator as {"@":"avg"|...,"=":<terminal>}.
// COUNT(*) encodes as {"@":"count"}.
func EncodeReduce(r Reduce) (JSONValue, error) {
	var tag string
	switch r.(type) {
	case Avg:
		tag = TagAvg
	case Min:
		tag = TagMin
	case Max:
		tag = TagMax
	case Sum:
		tag = TagSum
	case Count:
		tag = TagCount
	case nil:
		return nil, fmt.Errorf("encode reduce: nil operator")
	default:
		return nil, fmt.Errorf("encode reduce: unsupported type %T", r)
	}

	operand := r.Operand()
	if operand == nil {
		if tag != TagCount {
			return nil, fmt.Errorf("encode reduce: %s requires an operand", tag)
		}
		return tagged(tag), nil
	}
	term, err := EncodeTerminal(operand)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return tagged(tag, member(KeyOperand, term)), nil
}

// EncodeMapEntry encodes a Project with its terminal's own tags and an
// Inject as {"@":"inject","[]":<terminal>,"=":<reduce>}.
func EncodeMapEntry(e MapEntry) (JSONValue, error) {
	switch entry := e.(type) {
	case Project:
		return EncodeTerminal(entry.Value)
	case Inject:
		src, err := EncodeTerminal(entry.Source)
		if err != nil {
			return nil, fmt.Errorf("encode inject source: %w", err)
		}
		op, err := EncodeReduce(entry.Op)
		if err != nil {
			return nil, fmt.Errorf("encode inject: %w", err)
		}
		return tagged(TagInject, member(KeySource, src), member(KeyOperand, op)), nil
	case nil:
		return nil, fmt.Errorf("encode map entry: nil entry")
	default:
		return nil, fmt.Errorf("encode map entry: unsupported type %T", e)
	}
}

// EncodePredicate encodes a MatchStage predicate.
func EncodePredicate(p Predicate) (JSONValue, error) {
	switch pred := p.(type) {
	case Compare:
		tag := pred.Op.Tag()
		if tag == "" {
			return nil, fmt.Errorf("encode predicate: unknown operator %d", int(pred.Op))
		}
		left, err := EncodeTerminal(pred.Left)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tag, err)
		}
		right, err := EncodeTerminal(pred.Right)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tag, err)
		}
		return tagged(tag, member(KeyOperand, JSONArray{left, right})), nil
	case Not:
		inner, err := EncodePredicate(pred.Operand)
		if err != nil {
			return nil, err
		}
		return tagged(TagNot, member(KeyOperand, inner)), nil
	case And:
		return encodeJunction(TagAnd, pred.Left, pred.Right)
	case Or:
		return encodeJunction(TagOr, pred.Left, pred.Right)
	case nil:
		return nil, fmt.Errorf("encode predicate: nil predicate")
	default:
		return nil, fmt.Errorf("encode predicate: unsupported type %T", p)
	}
}

func encodeJunction(tag string, left, right Predicate) (JSONValue, error) {
	l, err := EncodePredicate(left)
	if err != nil {
		return nil, err
	}
	r, err := EncodePredicate(right)
	if err != nil {
		return nil, err
	}
	return tagged(tag, member(KeyOperand, JSONArray{l, r})), nil
}

// EncodeStage encodes one pipeline stage.
func EncodeStage(s Stage) (JSONValue, error) {
	switch stage := s.(type) {
	case MapStage:
		fields := make(JSONObject, 0, len(stage.Fields))
		for _, f := range stage.Fields {
			entry, err := EncodeMapEntry(f.Entry)
			if err != nil {
				return nil, fmt.Errorf("map field %q: %w", f.Name, err)
			}
			fields = append(fields, member(f.Name, entry))
		}
		return tagged(TagMap, member(KeyOperand, fields)), nil

	case ReduceStage:
		fields := make(JSONObject, 0, len(stage.Fields))
		for _, f := range stage.Fields {
			op, err := EncodeReduce(f.Op)
			if err != nil {
				return nil, fmt.Errorf("reduce field %q: %w", f.Name, err)
			}
			fields = append(fields, member(f.Name, op))
		}
		obj := tagged(TagReduce, member(KeyOperand, fields))
		// No group key: "#" is omitted entirely, never null.
		if stage.Key != nil {
			key, err := EncodeTerminal(stage.Key)
			if err != nil {
				return nil, fmt.Errorf("reduce group key: %w", err)
			}
			obj = append(obj, member(KeyTertiary, key))
		}
		return obj, nil

	case MatchStage:
		pred, err := EncodePredicate(stage.Where)
		if err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}
		return tagged(TagMatch, member(KeyOperand, pred)), nil

	case SortStage:
		key, err := EncodeTerminal(stage.Key)
		if err != nil {
			return nil, fmt.Errorf("sort key: %w", err)
		}
		obj := tagged(TagSort, member(KeyOperand, key))
		if stage.Desc {
			obj = append(obj, member(KeyTertiary, JSONString(sortDescText)))
		}
		return obj, nil

	case DistinctStage:
		return tagged(TagDistinct), nil

	case SkipStage:
		return encodeCount(TagSkip, stage.Count)

	case LimitStage:
		return encodeCount(TagLimit, stage.Count)

	case nil:
		return nil, fmt.Errorf("encode stage: nil stage")
	default:
		return nil, fmt.Errorf("encode stage: unsupported type %T", s)
	}
}

func encodeCount(tag string, n int64) (JSONValue, error) {
	if n < 0 {
		return nil, fmt.Errorf("%s: count must not be negative, got %d", tag, n)
	}
	return tagged(tag, member(KeyOperand, JSONNumber{Value: decimal.FromInt64(n)})), nil
}

// EncodePipeline encodes a pipeline as a JSON array of stages.
func EncodePipeline(p Pipeline) (JSONValue, error) {
	arr := make(JSONArray, 0, len(p.Stages))
	for i, s := range p.Stages {
		v, err := EncodeStage(s)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		arr = append(arr, v)
	}
	return arr, nil
}

// EncodeSchema encodes a Schema: objects as plain objects of encoded
// properties, arrays as a one-element array, scalars as their type name.
func EncodeSchema(s Schema) (JSONValue, error) {
	switch schema := s.(type) {
	case JObject:
		obj := make(JSONObject, 0, len(schema.Properties))
		seen := make(map[string]bool, len(schema.Properties))
		for _, p := range schema.Properties {
			if seen[p.Name] {
				return nil, fmt.Errorf("encode schema: duplicate property %q", p.Name)
			}
			seen[p.Name] = true
			v, err := EncodeSchema(p.Schema)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", p.Name, err)
			}
			obj = append(obj, member(p.Name, v))
		}
		return obj, nil
	case JArray:
		elem, err := EncodeSchema(schema.Elem)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return JSONArray{elem}, nil
	case JString:
		return JSONString(SchemaString), nil
	case JNumber:
		return JSONString(SchemaNumber), nil
	case JBoolean:
		return JSONString(SchemaBoolean), nil
	case nil:
		return nil, fmt.Errorf("encode schema: nil schema")
	default:
		return nil, fmt.Errorf("encode schema: unsupported type %T", s)
	}
}

// MarshalPipeline returns the canonical JSON bytes of p.
func MarshalPipeline(p Pipeline) ([]byte, error) {
	v, err := EncodePipeline(p)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// MarshalStage returns the canonical JSON bytes of s.
func MarshalStage(s Stage) ([]byte, error) {
	v, err := EncodeStage(s)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// MarshalSchema returns the canonical JSON bytes of s.
func MarshalSchema(s Schema) ([]byte, error) {
	v, err := EncodeSchema(s)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}
