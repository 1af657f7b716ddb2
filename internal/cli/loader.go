package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/lexer"
	"github.com/roach88/pipeql/internal/parser"
	"github.com/roach88/pipeql/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // File or catalog entry not found
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeLexical    = "E201" // Query tokenization failed
	ErrCodeGrammar    = "E202" // Query parse failed
	ErrCodeDecode     = "E203" // Pipeline JSON decode failed
	ErrCodeTypeCheck  = "E204" // Pipeline ill-typed for the schema
	ErrCodeSchemaLoad = "E205" // Schema document invalid
	ErrCodeStore      = "E206" // Catalog database error
)

// LoadError carries an explicit error code for failures the error type
// alone does not classify.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// classify maps an error to its CLI error code and exit code.
func classify(err error) (string, int) {
	var checkErr *compiler.CheckError
	var loadErr *LoadError
	var compileErr *compiler.CompileError

	switch {
	case errors.As(err, &checkErr):
		return ErrCodeTypeCheck, ExitFailure
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	case lexer.IsLexical(err):
		return ErrCodeLexical, ExitCommandError
	case parser.IsGrammar(err):
		return ErrCodeGrammar, ExitCommandError
	case ir.IsDecodeError(err):
		return ErrCodeDecode, ExitCommandError
	case errors.As(err, &compileErr):
		return ErrCodeSchemaLoad, ExitCommandError
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}

// errorDetails extracts machine-readable context from err, or nil.
func errorDetails(err error) any {
	var (
		lexErr     *lexer.LexicalError
		grammarErr *parser.GrammarError
		decodeErr  *ir.DecodeError
		checkErr   *compiler.CheckError
		compileErr *compiler.CompileError
	)
	switch {
	case errors.As(err, &checkErr):
		problems := make([]string, len(checkErr.Problems))
		for i, p := range checkErr.Problems {
			problems[i] = p.String()
		}
		return map[string]any{"problems": problems}
	case errors.As(err, &lexErr):
		return map[string]any{"offset": lexErr.Offset}
	case errors.As(err, &grammarErr):
		return map[string]any{"offset": grammarErr.Offset, "found": grammarErr.Found}
	case errors.As(err, &decodeErr):
		return map[string]any{"node": decodeErr.Node, "path": decodeErr.Path}
	case errors.As(err, &compileErr) && compileErr.Pos.IsValid():
		return map[string]any{
			"file":   compileErr.Pos.Filename(),
			"line":   compileErr.Pos.Line(),
			"column": compileErr.Pos.Column(),
		}
	}
	return nil
}

// readInput reads a file argument; "-" reads r instead.
func readInput(path string, r io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}

// loadSchema reads a schema document and tags any failure as a schema
// load error.
func loadSchema(path string) (ir.Schema, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	s, err := compiler.LoadSchemaFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchemaLoad, Message: fmt.Sprintf("schema %s", path), Err: err}
	}
	return s, nil
}

// openStore opens the catalog database, tagging failures as store errors.
func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("open catalog %s", path), Err: err}
	}
	return st, nil
}

// writeFile writes data to path, tagging failures as write errors.
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("write %s", path), Err: err}
	}
	return nil
}
