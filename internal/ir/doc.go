// Package ir provides the pipeline intermediate representation produced by
// the query compiler, together with its canonical tagged-JSON codec.
//
// This package contains type definitions and the codec only. All other
// internal packages import ir; ir imports nothing internal except decimal.
// This keeps the IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every sum type is a sealed interface (marker method), so consumers can
//     switch exhaustively over Terminal, Reduce, MapEntry, Stage, Predicate
//     and Schema.
//   - Nodes are values and are never mutated after construction. Rewrites
//     build a new Pipeline.
//   - Numbers are exact decimals (internal/decimal), never float64.
//   - The canonical encoding uses the reserved keys "@" (operator),
//     "=" (primary operand), "[]" (Inject source) and "#" (group key or sort
//     direction). Keys are emitted in that order; user field names keep
//     their insertion order.
package ir
