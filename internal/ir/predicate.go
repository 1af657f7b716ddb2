package ir

import "fmt"

// BinaryOp is a comparison operator.
type BinaryOp int

const (
	Eq BinaryOp = iota
	Neq
	Lt
	Gt
	Lte
	Gte
)

var binaryOps = []struct {
	symbol string
	tag    string
}{
	Eq:  {"=", "eq"},
	Neq: {"!=", "neq"},
	Lt:  {"<", "lt"},
	Gt:  {">", "gt"},
	Lte: {"<=", "lte"},
	Gte: {">=", "gte"},
}

// Symbol returns the query-language spelling ("!=").
func (op BinaryOp) Symbol() string {
	if op < 0 || int(op) >= len(binaryOps) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOps[op].symbol
}

// Tag returns the canonical encoding tag ("neq").
func (op BinaryOp) Tag() string {
	if op < 0 || int(op) >= len(binaryOps) {
		return ""
	}
	return binaryOps[op].tag
}

// Ordering reports whether op compares by order rather than equality.
func (op BinaryOp) Ordering() bool {
	return op == Lt || op == Gt || op == Lte || op == Gte
}

func (op BinaryOp) String() string {
	return op.Symbol()
}

// binaryOpFromTag is the inverse of Tag.
func binaryOpFromTag(tag string) (BinaryOp, bool) {
	for i, op := range binaryOps {
		if op.tag == tag {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// Predicate is a filter condition of a MatchStage.
//
// This is a sealed interface - only Compare, Not, And and Or implement it.
type Predicate interface {
	predicateNode()
}

// Compare is <Left> <Op> <Right>.
type Compare struct {
	Op    BinaryOp
	Left  Terminal
	Right Terminal
}

// Not negates its operand.
type Not struct {
	Operand Predicate
}

// And holds when both sides hold.
type And struct {
	Left  Predicate
	Right Predicate
}

// Or holds when either side holds.
type Or struct {
	Left  Predicate
	Right Predicate
}

func (Compare) predicateNode() {}
func (Not) predicateNode()     {}
func (And) predicateNode()     {}
func (Or) predicateNode()      {}
