package ir

import (
	"fmt"

	"github.com/roach88/pipeql/internal/decimal"
)

// Terminal is a leaf expression: a field reference or a constant.
//
// This is a sealed interface - only Field, StringConst, BoolConst and
// NumberConst implement it.
type Terminal interface {
	terminalNode()
}

// Field references a document field by dotted path (e.g. "customer.id").
type Field struct {
	Path string
}

func (Field) terminalNode() {}

// StringConst is a string constant.
type StringConst struct {
	Value string
}

func (StringConst) terminalNode() {}

// BoolConst is a boolean constant.
type BoolConst struct {
	Value bool
}

func (BoolConst) terminalNode() {}

// NumberConst is an exact-decimal constant.
type NumberConst struct {
	Value decimal.Decimal
}

func (NumberConst) terminalNode() {}

// TerminalEqual reports whether two terminals denote the same leaf.
// Numbers compare by value, so 1.0 equals 1.00.
func TerminalEqual(a, b Terminal) bool {
	switch x := a.(type) {
	case Field:
		y, ok := b.(Field)
		return ok && x.Path == y.Path
	case StringConst:
		y, ok := b.(StringConst)
		return ok && x.Value == y.Value
	case BoolConst:
		y, ok := b.(BoolConst)
		return ok && x.Value == y.Value
	case NumberConst:
		y, ok := b.(NumberConst)
		return ok && x.Value.Equal(y.Value)
	case nil:
		return b == nil
	}
	return false
}

// Reduce is an aggregation operator applied to a Terminal.
//
// Avg, Min and Max are the core algebra. Sum and Count back the SUM and
// COUNT function names; a Count with a nil operand is COUNT(*).
type Reduce interface {
	reduceNode()
	// Operand returns the aggregated terminal (nil only for COUNT(*)).
	Operand() Terminal
}

// Avg is the arithmetic mean of its operand.
type Avg struct{ Of Terminal }

// Min is the smallest value of its operand.
type Min struct{ Of Terminal }

// Max is the largest value of its operand.
type Max struct{ Of Terminal }

// Sum is the total of its operand.
type Sum struct{ Of Terminal }

// Count counts values of its operand, or documents when Of is nil.
type Count struct{ Of Terminal }

func (Avg) reduceNode()   {}
func (Min) reduceNode()   {}
func (Max) reduceNode()   {}
func (Sum) reduceNode()   {}
func (Count) reduceNode() {}

func (r Avg) Operand() Terminal   { return r.Of }
func (r Min) Operand() Terminal   { return r.Of }
func (r Max) Operand() Terminal   { return r.Of }
func (r Sum) Operand() Terminal   { return r.Of }
func (r Count) Operand() Terminal { return r.Of }

// MapEntry is one output field of a MapStage.
type MapEntry interface {
	mapEntryNode()
}

// Project passes a field or constant through to the output document.
type Project struct {
	Value Terminal
}

func (Project) mapEntryNode() {}

// Inject computes Op over the array-valued Source as part of a
// per-document transform.
type Inject struct {
	Source Terminal
	Op     Reduce
}

func (Inject) mapEntryNode() {}

// MapField names one MapStage output.
type MapField struct {
	Name  string
	Entry MapEntry
}

// ReduceField names one ReduceStage output.
type ReduceField struct {
	Name string
	Op   Reduce
}

// Stage is one step of a Pipeline.
//
// MapStage and ReduceStage are the core algebra. MatchStage, SortStage,
// DistinctStage, SkipStage and LimitStage carry the WHERE, ORDER BY,
// DISTINCT, OFFSET and LIMIT clauses.
type Stage interface {
	stageNode()
}

// MapStage is a per-document projection. Field order is the emission order.
type MapStage struct {
	Fields []MapField
}

// GroupKeyField is the output field carrying a keyed ReduceStage's group
// key. No aggregate of a keyed ReduceStage may use it.
const GroupKeyField = "_id"

// ReduceStage groups documents by Key (nil groups everything together) and
// computes one aggregate per output field.
type ReduceStage struct {
	Key    Terminal
	Fields []ReduceField
}

// MatchStage keeps documents satisfying Where.
type MatchStage struct {
	Where Predicate
}

// SortStage orders documents by Key.
type SortStage struct {
	Key  Terminal
	Desc bool
}

// DistinctStage drops duplicate documents.
type DistinctStage struct{}

// SkipStage drops the first Count documents.
type SkipStage struct {
	Count int64
}

// LimitStage keeps at most Count documents.
type LimitStage struct {
	Count int64
}

func (MapStage) stageNode()      {}
func (ReduceStage) stageNode()   {}
func (MatchStage) stageNode()    {}
func (SortStage) stageNode()     {}
func (DistinctStage) stageNode() {}
func (SkipStage) stageNode()     {}
func (LimitStage) stageNode()    {}

// NewMapStage builds a MapStage, rejecting duplicate output names.
func NewMapStage(fields ...MapField) (MapStage, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return MapStage{}, fmt.Errorf("duplicate output field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return MapStage{Fields: fields}, nil
}

// NewReduceStage builds a ReduceStage, rejecting duplicate output names and,
// when key is set, outputs named GroupKeyField.
func NewReduceStage(key Terminal, fields ...ReduceField) (ReduceStage, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if key != nil && f.Name == GroupKeyField {
			return ReduceStage{}, fmt.Errorf("output field %q is reserved for the group key", f.Name)
		}
		if seen[f.Name] {
			return ReduceStage{}, fmt.Errorf("duplicate output field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return ReduceStage{Key: key, Fields: fields}, nil
}

// Pipeline is an ordered sequence of stages. Each stage consumes the output
// of the previous one; the first consumes the raw document stream.
type Pipeline struct {
	Stages []Stage
}

// NewPipeline returns a pipeline over the given stages.
func NewPipeline(stages ...Stage) Pipeline {
	return Pipeline{Stages: stages}
}

// Len returns the number of stages.
func (p Pipeline) Len() int {
	return len(p.Stages)
}

// Append returns a new pipeline with s added at the end. p is unchanged.
func (p Pipeline) Append(s Stage) Pipeline {
	stages := make([]Stage, 0, len(p.Stages)+1)
	stages = append(stages, p.Stages...)
	return Pipeline{Stages: append(stages, s)}
}
