// Package compiler ties the query pipeline together: text is tokenized,
// parsed into a Pipeline, encoded canonically and content-addressed.
// It also loads schema documents and type-checks pipelines against them.
package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/lexer"
	"github.com/roach88/pipeql/internal/parser"
	"github.com/roach88/pipeql/internal/typecheck"
)

// Compiler compiles queries. The zero value is not usable; call New.
// A Compiler holds no per-query state and may be shared between goroutines.
type Compiler struct {
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New returns a Compiler. Without WithLogger nothing is logged.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a compiled query.
type Result struct {
	// Query is the source text; empty for decoded pipelines.
	Query string

	// Source is the FROM collection, if any.
	Source string

	Tokens   []lexer.Positioned
	Pipeline ir.Pipeline

	// JSON is the canonical encoding of Pipeline.
	JSON []byte

	// ID is the content hash of JSON.
	ID string

	// Output is the schema of the emitted documents, set by Check.
	Output ir.Schema
}

// Compile turns a query into a canonical pipeline.
func (c *Compiler) Compile(query string) (*Result, error) {
	toks, err := lexer.Tokenize(query)
	if err != nil {
		return nil, err
	}
	stmt, err := parser.ParseTokens(toks)
	if err != nil {
		return nil, err
	}

	res, err := c.finish(stmt.Pipeline)
	if err != nil {
		return nil, err
	}
	res.Query = query
	res.Source = stmt.Source
	res.Tokens = toks

	c.logger.Debug("compiled query",
		"tokens", len(toks),
		"stages", stmt.Pipeline.Len(),
		"source", stmt.Source,
		"id", res.ID)
	return res, nil
}

// Decode loads a pipeline from its JSON encoding. Key order in data does
// not matter; the result carries the canonical form.
func (c *Compiler) Decode(data []byte) (*Result, error) {
	p, err := ir.UnmarshalPipeline(data)
	if err != nil {
		return nil, err
	}
	res, err := c.finish(p)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("decoded pipeline", "stages", p.Len(), "id", res.ID)
	return res, nil
}

func (c *Compiler) finish(p ir.Pipeline) (*Result, error) {
	data, err := ir.MarshalPipeline(p)
	if err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	id, err := ir.PipelineID(p)
	if err != nil {
		return nil, err
	}
	return &Result{Pipeline: p, JSON: data, ID: id}, nil
}

// CheckError lists the type problems of a pipeline.
type CheckError struct {
	Problems []typecheck.Problem
}

func (e *CheckError) Error() string {
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("%d type problem(s): %s", len(e.Problems), strings.Join(lines, "; "))
}

// Check compiles a query and type-checks it against the input schema.
// When the pipeline is ill-typed the Result is still returned, together
// with a *CheckError.
func (c *Compiler) Check(query string, schema ir.Schema) (*Result, error) {
	res, err := c.Compile(query)
	if err != nil {
		return nil, err
	}
	return c.CheckPipeline(res, schema)
}

// CheckPipeline type-checks an already compiled or decoded pipeline and
// records its output schema on res.
func (c *Compiler) CheckPipeline(res *Result, schema ir.Schema) (*Result, error) {
	checked := typecheck.Check(res.Pipeline, schema)
	res.Output = checked.Output
	if !checked.OK() {
		c.logger.Debug("type check failed", "id", res.ID, "problems", len(checked.Problems))
		return res, &CheckError{Problems: checked.Problems}
	}
	return res, nil
}
