package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Pretty bool
}

// CompilationResult is the JSON payload of compile and decode.
type CompilationResult struct {
	Query    string          `json:"query,omitempty"`
	Source   string          `json:"source,omitempty"`
	ID       string          `json:"id"`
	Stages   int             `json:"stages"`
	Pipeline json.RawMessage `json:"pipeline"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile a query to a canonical pipeline",
		Long: `Compile a SQL query to its aggregation pipeline.

The pipeline is printed as canonical JSON: the same query always yields the
same bytes and the same content ID. With --output the JSON is written to a
file instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the pipeline JSON")

	return cmd
}

func runCompile(opts *CompileOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	c := compiler.New(compiler.WithLogger(opts.Logger(cmd.ErrOrStderr())))

	res, err := c.Compile(query)
	if err != nil {
		return formatter.Fail("compile", err)
	}
	formatter.VerboseLog("Compiled %d stage(s), id %s", res.Pipeline.Len(), res.ID)

	return outputPipeline(formatter, res, opts.Output, opts.Pretty)
}

// outputPipeline prints or writes a compiled pipeline. Text mode prints the
// JSON alone so it can be piped into decode.
func outputPipeline(formatter *OutputFormatter, res *compiler.Result, outputFile string, pretty bool) error {
	data := res.JSON
	if pretty {
		v, err := ir.ParseJSON(res.JSON)
		if err != nil {
			return formatter.Fail("format pipeline", err)
		}
		if data, err = ir.MarshalIndent(v, "  "); err != nil {
			return formatter.Fail("format pipeline", err)
		}
	}

	if outputFile != "" {
		if err := writeFile(outputFile, append(data, '\n')); err != nil {
			return formatter.Fail("write pipeline", err)
		}
	}

	result := CompilationResult{
		Query:    res.Query,
		Source:   res.Source,
		ID:       res.ID,
		Stages:   res.Pipeline.Len(),
		Pipeline: json.RawMessage(res.JSON),
	}
	if outputFile != "" {
		return formatter.Success(result, fmt.Sprintf("✓ Wrote pipeline %s to %s", res.ID, outputFile))
	}
	return formatter.Success(result, string(data))
}
