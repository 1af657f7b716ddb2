// Package typecheck walks a Pipeline's terminals against a document schema.
//
// Every stage is checked against the output schema of the stage before it;
// the first stage sees the input schema. Problems are accumulated rather
// than returned on first sight so a caller can report all of them at once.
//
// Check is a pure function with no side effects.
package typecheck

import (
	"fmt"
	"strings"

	"github.com/roach88/pipeql/internal/ir"
)

// Problem is one type error.
type Problem struct {
	// Stage is the index of the offending stage in the pipeline.
	Stage int

	// Path is the field path involved, when there is one.
	Path string

	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return fmt.Sprintf("stage %d: %s", p.Stage, p.Message)
	}
	return fmt.Sprintf("stage %d: %s: %s", p.Stage, p.Path, p.Message)
}

// Result is the outcome of Check.
type Result struct {
	// Output is the schema of the documents the pipeline emits. Fields that
	// failed to check are left out.
	Output ir.Schema

	// Problems lists every type error found. Empty when the pipeline is
	// well typed.
	Problems []Problem
}

// OK reports whether no problems were found.
func (r Result) OK() bool {
	return len(r.Problems) == 0
}

// Check walks p against the input document schema.
func Check(p ir.Pipeline, input ir.Schema) Result {
	c := &checker{problems: []Problem{}}

	current, ok := input.(ir.JObject)
	if !ok {
		c.add("", "input schema must be an object, got %s", ir.SchemaKind(input))
		return Result{Output: input, Problems: c.problems}
	}

	for i, s := range p.Stages {
		c.stage = i
		current = c.checkStage(s, current)
	}
	return Result{Output: current, Problems: c.problems}
}

// checker accumulates problems during traversal.
type checker struct {
	stage    int
	problems []Problem
}

func (c *checker) add(path, format string, args ...any) {
	c.problems = append(c.problems, Problem{
		Stage:   c.stage,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// checkStage returns the schema of the documents s emits.
func (c *checker) checkStage(s ir.Stage, in ir.JObject) ir.JObject {
	switch stage := s.(type) {
	case ir.MapStage:
		out := make([]ir.Property, 0, len(stage.Fields))
		for _, f := range stage.Fields {
			if schema, ok := c.mapEntry(f.Entry, in); ok {
				out = c.output(out, f.Name, schema)
			}
		}
		return ir.JObject{Properties: out}

	case ir.ReduceStage:
		out := make([]ir.Property, 0, len(stage.Fields)+1)
		if stage.Key != nil {
			if key, ok := c.terminal(stage.Key, in); ok {
				out = append(out, ir.P(ir.GroupKeyField, key))
			}
		}
		for _, f := range stage.Fields {
			if stage.Key != nil && f.Name == ir.GroupKeyField {
				c.add(f.Name, "output field is reserved for the group key")
				continue
			}
			operand, ok := c.reduceOperand(f.Op, in, false)
			if !ok {
				continue
			}
			if schema, ok := c.reduce(f.Op, operand); ok {
				out = c.output(out, f.Name, schema)
			}
		}
		return ir.JObject{Properties: out}

	case ir.MatchStage:
		c.predicate(stage.Where, in)
		return in

	case ir.SortStage:
		if key, ok := c.terminal(stage.Key, in); ok {
			if !isScalar(key) {
				c.add(terminalPath(stage.Key), "cannot sort by %s", ir.SchemaKind(key))
			}
		}
		return in

	case ir.DistinctStage, ir.SkipStage, ir.LimitStage:
		return in

	default:
		c.add("", "unsupported stage %T", s)
		return in
	}
}

// output appends the property name unless it is already present.
func (c *checker) output(out []ir.Property, name string, s ir.Schema) []ir.Property {
	for _, p := range out {
		if p.Name == name {
			c.add(name, "duplicate output field")
			return out
		}
	}
	return append(out, ir.P(name, s))
}

// mapEntry returns the output schema of one MapStage entry.
func (c *checker) mapEntry(e ir.MapEntry, in ir.JObject) (ir.Schema, bool) {
	switch entry := e.(type) {
	case ir.Project:
		return c.terminal(entry.Value, in)
	case ir.Inject:
		src, ok := c.terminal(entry.Source, in)
		if !ok {
			return nil, false
		}
		if _, isArray := src.(ir.JArray); !isArray {
			c.add(terminalPath(entry.Source), "%s requires an array, found %s", reduceName(entry.Op), ir.SchemaKind(src))
			return nil, false
		}
		operand, ok := c.reduceOperand(entry.Op, in, true)
		if !ok {
			return nil, false
		}
		return c.reduce(entry.Op, operand)
	default:
		c.add("", "unsupported map entry %T", e)
		return nil, false
	}
}

// reduceOperand resolves the operand of r. Inside an Inject the operand
// ranges over array elements, so one array level is removed. A nil operand
// (COUNT(*)) yields a nil schema.
func (c *checker) reduceOperand(r ir.Reduce, in ir.JObject, elementwise bool) (ir.Schema, bool) {
	if r == nil {
		c.add("", "missing aggregate operator")
		return nil, false
	}
	operand := r.Operand()
	if operand == nil {
		return nil, true
	}
	schema, ok := c.terminal(operand, in)
	if !ok {
		return nil, false
	}
	if arr, isArray := schema.(ir.JArray); isArray && elementwise {
		return arr.Elem, true
	}
	return schema, true
}

// reduce checks an aggregate's operand kind and returns its result schema.
func (c *checker) reduce(r ir.Reduce, operand ir.Schema) (ir.Schema, bool) {
	path := terminalPath(r.Operand())
	switch r.(type) {
	case ir.Count:
		return ir.JNumber{}, true
	case ir.Avg, ir.Sum:
		if _, ok := operand.(ir.JNumber); !ok {
			c.add(path, "%s requires a number, found %s", reduceName(r), ir.SchemaKind(operand))
			return nil, false
		}
		return ir.JNumber{}, true
	case ir.Min, ir.Max:
		switch operand.(type) {
		case ir.JNumber, ir.JString:
			return operand, true
		}
		c.add(path, "%s requires a number or string, found %s", reduceName(r), ir.SchemaKind(operand))
		return nil, false
	default:
		c.add(path, "unsupported aggregate %T", r)
		return nil, false
	}
}

func (c *checker) predicate(p ir.Predicate, in ir.JObject) {
	switch pred := p.(type) {
	case ir.Compare:
		left, lok := c.terminal(pred.Left, in)
		right, rok := c.terminal(pred.Right, in)
		if !lok || !rok {
			return
		}
		// A comparison against an array field matches any element.
		left, right = elementOf(left), elementOf(right)
		path := terminalPath(pred.Left)
		if path == "" {
			path = terminalPath(pred.Right)
		}
		if !isScalar(left) || !isScalar(right) {
			c.add(path, "cannot compare %s with %s", ir.SchemaKind(left), ir.SchemaKind(right))
			return
		}
		if ir.SchemaKind(left) != ir.SchemaKind(right) {
			c.add(path, "cannot compare %s with %s", ir.SchemaKind(left), ir.SchemaKind(right))
			return
		}
		if _, isBool := left.(ir.JBoolean); isBool && pred.Op.Ordering() {
			c.add(path, "operator %s does not apply to boolean", pred.Op)
		}
	case ir.Not:
		c.predicate(pred.Operand, in)
	case ir.And:
		c.predicate(pred.Left, in)
		c.predicate(pred.Right, in)
	case ir.Or:
		c.predicate(pred.Left, in)
		c.predicate(pred.Right, in)
	default:
		c.add("", "unsupported predicate %T", p)
	}
}

// terminal returns the schema of a field reference or constant.
func (c *checker) terminal(t ir.Terminal, in ir.JObject) (ir.Schema, bool) {
	switch term := t.(type) {
	case ir.Field:
		s, err := Resolve(in, term.Path)
		if err != nil {
			c.add(term.Path, "%v", err)
			return nil, false
		}
		return s, true
	case ir.StringConst:
		return ir.JString{}, true
	case ir.NumberConst:
		return ir.JNumber{}, true
	case ir.BoolConst:
		return ir.JBoolean{}, true
	default:
		c.add("", "unsupported terminal %T", t)
		return nil, false
	}
}

// Resolve looks up a dotted field path in an object schema. Arrays are
// traversed transparently: a path that crosses an array resolves to an
// array of whatever lies beneath it.
func Resolve(s ir.Schema, path string) (ir.Schema, error) {
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}
	current := s
	depth := 0
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		for {
			arr, ok := current.(ir.JArray)
			if !ok {
				break
			}
			current = arr.Elem
			depth++
		}
		obj, ok := current.(ir.JObject)
		if !ok {
			return nil, fmt.Errorf("%s is a %s and has no field %q",
				strings.Join(segments[:i], "."), ir.SchemaKind(current), seg)
		}
		next, ok := obj.Lookup(seg)
		if !ok {
			if i == 0 {
				return nil, fmt.Errorf("unknown field")
			}
			return nil, fmt.Errorf("unknown field %q in %s", seg, strings.Join(segments[:i], "."))
		}
		current = next
	}
	for ; depth > 0; depth-- {
		current = ir.JArray{Elem: current}
	}
	return current, nil
}

func elementOf(s ir.Schema) ir.Schema {
	for {
		arr, ok := s.(ir.JArray)
		if !ok {
			return s
		}
		s = arr.Elem
	}
}

func isScalar(s ir.Schema) bool {
	switch s.(type) {
	case ir.JString, ir.JNumber, ir.JBoolean:
		return true
	}
	return false
}

func terminalPath(t ir.Terminal) string {
	if f, ok := t.(ir.Field); ok {
		return f.Path
	}
	return ""
}

func reduceName(r ir.Reduce) string {
	switch r.(type) {
	case ir.Avg:
		return "AVG"
	case ir.Min:
		return "MIN"
	case ir.Max:
		return "MAX"
	case ir.Sum:
		return "SUM"
	case ir.Count:
		return "COUNT"
	default:
		return fmt.Sprintf("%T", r)
	}
}
