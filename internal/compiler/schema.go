package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeql/internal/decimal"
	"github.com/roach88/pipeql/internal/ir"
)

// CompileError represents a schema document error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadSchemaFile reads a schema document. The format follows the file
// extension: .json, .yaml/.yml or .cue.
func LoadSchemaFile(path string) (ir.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadSchemaJSON(data)
	case ".yaml", ".yml":
		return LoadSchemaYAML(data)
	case ".cue":
		return LoadSchemaCUE(path, data)
	default:
		return nil, &CompileError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported schema format %q (want .json, .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
}

// LoadSchemaJSON decodes a schema from its canonical JSON encoding.
func LoadSchemaJSON(data []byte) (ir.Schema, error) {
	return ir.UnmarshalSchema(data)
}

// LoadSchemaYAML decodes a schema written in YAML. Mapping key order is
// kept, so property order matches the document.
func LoadSchemaYAML(data []byte) (ir.Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}
	v, err := yamlToJSON(&doc)
	if err != nil {
		return nil, err
	}
	return ir.DecodeSchema(v)
}

// yamlToJSON converts a YAML node tree into the ordered JSON value model.
func yamlToJSON(n *yaml.Node) (ir.JSONValue, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, &CompileError{Field: "yaml", Message: "empty document"}
		}
		return yamlToJSON(n.Content[0])
	case yaml.AliasNode:
		return yamlToJSON(n.Alias)
	case yaml.MappingNode:
		obj := make(ir.JSONObject, 0, len(n.Content)/2)
		seen := make(map[string]bool, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if seen[key] {
				return nil, yamlError(n.Content[i], "duplicate key %q", key)
			}
			seen[key] = true
			v, err := yamlToJSON(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = append(obj, ir.JSONMember{Key: key, Value: v})
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make(ir.JSONArray, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlToJSON(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return ir.JSONNull{}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, yamlError(n, "%v", err)
			}
			return ir.JSONBool(b), nil
		case "!!int", "!!float":
			d, err := decimal.Parse(n.Value)
			if err != nil {
				return nil, yamlError(n, "%v", err)
			}
			return ir.JSONNumber{Value: d}, nil
		default:
			return ir.JSONString(n.Value), nil
		}
	default:
		return nil, yamlError(n, "unsupported YAML node")
	}
}

func yamlError(n *yaml.Node, format string, args ...any) *CompileError {
	return &CompileError{
		Field:   "yaml",
		Message: fmt.Sprintf("line %d column %d: %s", n.Line, n.Column, fmt.Sprintf(format, args...)),
	}
}

// LoadSchemaCUE evaluates a CUE document and decodes the result as a schema.
// If the document has a top-level "schema" field only that field is used,
// which lets a file carry definitions next to the schema itself.
func LoadSchemaCUE(filename string, data []byte) (ir.Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if sub := v.LookupPath(cue.ParsePath("schema")); sub.Exists() {
		v = sub
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	s, err := ir.UnmarshalSchema(data)
	if err != nil {
		return nil, &CompileError{Field: "schema", Message: err.Error(), Pos: v.Pos()}
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
