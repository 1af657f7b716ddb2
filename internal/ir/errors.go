package ir

import (
	"errors"
	"fmt"
)

// Node kinds reported by DecodeError.
const (
	NodeJSON      = "json"
	NodeTerminal  = "terminal"
	NodeReduce    = "reduce"
	NodeMap       = "map"
	NodeStage     = "stage"
	NodePredicate = "predicate"
	NodePipeline  = "pipeline"
	NodeSchema    = "schema"
)

// DecodeError reports a JSON fragment that matches no tagged shape of the
// node kind expected at Path.
type DecodeError struct {
	// Node is the IR node kind being decoded (NodeTerminal, NodeSchema, ...).
	Node string

	// Path locates the fragment, e.g. `$[0].=.avgPrice`.
	Path string

	// Tag is the offending operator tag or schema name, when there is one.
	Tag string

	// Message is a human-readable cause.
	Message string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("decode %s at %s: %s %q", e.Node, e.Path, e.Message, e.Tag)
	}
	return fmt.Sprintf("decode %s at %s: %s", e.Node, e.Path, e.Message)
}

// IsDecodeError returns true if err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErr(node, path, format string, args ...any) *DecodeError {
	return &DecodeError{Node: node, Path: path, Message: fmt.Sprintf(format, args...)}
}

func unknownOperator(node, path, tag string) *DecodeError {
	return &DecodeError{
		Node:    node,
		Path:    path,
		Tag:     tag,
		Message: fmt.Sprintf("unknown %s operator", node),
	}
}
